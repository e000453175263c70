package cfg

import (
	"flag"
	"math"
	"strings"
	"testing"
)

// validBase returns a Config with all fields set to valid values.
func validBase() Config {
	return Config{
		DrainSeconds:          60,
		ShutdownBudgetSeconds: 90,
		APIPort:               8080,
		TopN:                  10,
		MaxBodyBytes:          1 << 20,
		FeedIntervalMS:        500,
	}
}

// with returns validBase modified by fn.
func with(fn func(c *Config)) Config {
	c := validBase()
	fn(&c)
	return c
}

func TestRegisterFlags_Defaults(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parse empty args: %v", err)
	}

	if c != validBase() {
		t.Errorf("defaults = %+v, want %+v", c, validBase())
	}
	if err := c.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestRegisterFlags_Override(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	args := []string{
		"-drain-seconds", "30",
		"-shutdown-budget-seconds", "120",
		"-http-port", "9090",
		"-database-url", "postgres://localhost/alertdash",
		"-data-file", "/srv/alerts.json",
		"-top-n", "25",
		"-api-token", "tok",
		"-max-body-bytes", "4096",
		"-feed-interval-ms", "250",
		"-slow-query-ms", "100",
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse args: %v", err)
	}

	want := Config{
		DrainSeconds:          30,
		ShutdownBudgetSeconds: 120,
		APIPort:               9090,
		DatabaseURL:           "postgres://localhost/alertdash",
		DataFile:              "/srv/alerts.json",
		TopN:                  25,
		APIToken:              "tok",
		MaxBodyBytes:          4096,
		FeedIntervalMS:        250,
		SlowQueryMS:           100,
	}
	if c != want {
		t.Errorf("parsed = %+v, want %+v", c, want)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		cfg       Config
		wantErr   bool
		errSubstr []string // substrings that must appear in error message
	}{
		{
			name:    "defaults are valid",
			cfg:     validBase(),
			wantErr: false,
		},
		{
			name: "minimum valid values",
			cfg: Config{
				DrainSeconds: 1, ShutdownBudgetSeconds: 2, APIPort: 1,
				TopN: 1, MaxBodyBytes: MinMaxBodyBytes, FeedIntervalMS: MinFeedIntervalMS,
			},
			wantErr: false,
		},
		{
			name: "maximum valid values",
			cfg: Config{
				DrainSeconds: 299, ShutdownBudgetSeconds: 300, APIPort: 65535,
				TopN: MaxTopN, MaxBodyBytes: MaxMaxBodyBytes, FeedIntervalMS: MaxFeedIntervalMS, SlowQueryMS: math.MaxInt32,
			},
			wantErr: false,
		},
		// DrainSeconds boundaries
		{
			name:      "drain zero",
			cfg:       with(func(c *Config) { c.DrainSeconds = 0 }),
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS"},
		},
		{
			name:      "drain negative",
			cfg:       with(func(c *Config) { c.DrainSeconds = -1 }),
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS"},
		},
		{
			name:      "drain above max",
			cfg:       with(func(c *Config) { c.DrainSeconds, c.ShutdownBudgetSeconds = 301, 302 }),
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS"},
		},
		{
			name:    "drain at upper bound",
			cfg:     with(func(c *Config) { c.DrainSeconds, c.ShutdownBudgetSeconds = 300, 300 }),
			wantErr: true, // budget must be greater than drain
		},
		// ShutdownBudgetSeconds boundaries
		{
			name:      "budget zero",
			cfg:       with(func(c *Config) { c.ShutdownBudgetSeconds = 0 }),
			wantErr:   true,
			errSubstr: []string{"SHUTDOWN_BUDGET_SECONDS"},
		},
		{
			name:      "budget above max",
			cfg:       with(func(c *Config) { c.ShutdownBudgetSeconds = 301 }),
			wantErr:   true,
			errSubstr: []string{"SHUTDOWN_BUDGET_SECONDS"},
		},
		// Cross-field: budget vs drain
		{
			name:      "budget equals drain",
			cfg:       with(func(c *Config) { c.ShutdownBudgetSeconds = 60 }),
			wantErr:   true,
			errSubstr: []string{"must be greater than"},
		},
		{
			name:    "budget is drain plus one",
			cfg:     with(func(c *Config) { c.ShutdownBudgetSeconds = 61 }),
			wantErr: false,
		},
		// APIPort boundaries
		{
			name:      "port zero",
			cfg:       with(func(c *Config) { c.APIPort = 0 }),
			wantErr:   true,
			errSubstr: []string{"HTTP_PORT"},
		},
		{
			name:      "port above max",
			cfg:       with(func(c *Config) { c.APIPort = 65536 }),
			wantErr:   true,
			errSubstr: []string{"HTTP_PORT"},
		},
		// Dataset source
		{
			name:    "database only",
			cfg:     with(func(c *Config) { c.DatabaseURL = "postgres://db/alertdash" }),
			wantErr: false,
		},
		{
			name:    "data file only",
			cfg:     with(func(c *Config) { c.DataFile = "alerts.yaml" }),
			wantErr: false,
		},
		{
			name: "data file and database",
			cfg: with(func(c *Config) {
				c.DataFile = "alerts.yaml"
				c.DatabaseURL = "postgres://db/alertdash"
			}),
			wantErr:   true,
			errSubstr: []string{"mutually exclusive"},
		},
		// Dashboard tuning
		{
			name:      "top n zero",
			cfg:       with(func(c *Config) { c.TopN = 0 }),
			wantErr:   true,
			errSubstr: []string{"TOP_N"},
		},
		{
			name:      "top n above max",
			cfg:       with(func(c *Config) { c.TopN = MaxTopN + 1 }),
			wantErr:   true,
			errSubstr: []string{"TOP_N"},
		},
		{
			name:      "body limit too small",
			cfg:       with(func(c *Config) { c.MaxBodyBytes = MinMaxBodyBytes - 1 }),
			wantErr:   true,
			errSubstr: []string{"MAX_BODY_BYTES"},
		},
		{
			name:      "body limit too large",
			cfg:       with(func(c *Config) { c.MaxBodyBytes = MaxMaxBodyBytes + 1 }),
			wantErr:   true,
			errSubstr: []string{"MAX_BODY_BYTES"},
		},
		{
			name:      "feed interval too small",
			cfg:       with(func(c *Config) { c.FeedIntervalMS = MinFeedIntervalMS - 1 }),
			wantErr:   true,
			errSubstr: []string{"FEED_INTERVAL_MS"},
		},
		{
			name:      "feed interval too large",
			cfg:       with(func(c *Config) { c.FeedIntervalMS = MaxFeedIntervalMS + 1 }),
			wantErr:   true,
			errSubstr: []string{"FEED_INTERVAL_MS"},
		},
		{
			name:      "negative slow query threshold",
			cfg:       with(func(c *Config) { c.SlowQueryMS = -1 }),
			wantErr:   true,
			errSubstr: []string{"SLOW_QUERY_MS"},
		},
		// Error accumulation: all fields invalid
		{
			name:      "all fields invalid",
			cfg:       Config{DataFile: "f", DatabaseURL: "d", SlowQueryMS: -1},
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS", "SHUTDOWN_BUDGET_SECONDS", "HTTP_PORT", "mutually exclusive", "TOP_N", "MAX_BODY_BYTES", "FEED_INTERVAL_MS", "SLOW_QUERY_MS"},
		},
		// Extreme values
		{
			name:      "extreme negative values",
			cfg:       Config{DrainSeconds: math.MinInt32, ShutdownBudgetSeconds: math.MinInt32, APIPort: math.MinInt32, TopN: math.MinInt32, MaxBodyBytes: math.MinInt64},
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS", "SHUTDOWN_BUDGET_SECONDS", "HTTP_PORT", "TOP_N", "MAX_BODY_BYTES"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				errMsg := err.Error()
				for _, sub := range tt.errSubstr {
					if !strings.Contains(errMsg, sub) {
						t.Errorf("error %q does not contain %q", errMsg, sub)
					}
				}
			}
		})
	}
}

func FuzzValidate(f *testing.F) {
	// Seeds: defaults, boundaries, extremes
	seeds := []struct {
		drain, budget, port, topN, feed int
		body                            int64
		dataFile, dbURL                 string
	}{
		{60, 90, 8080, 10, 500, 1 << 20, "", ""},
		{1, 2, 1, 1, MinFeedIntervalMS, MinMaxBodyBytes, "a.json", ""},
		{299, 300, 65535, MaxTopN, MaxFeedIntervalMS, MaxMaxBodyBytes, "", "postgres://x"},
		{0, 0, 0, 0, 0, 0, "", ""},
		{-1, -1, -1, -1, -1, -1, "a", "b"},
		{300, 300, 65535, 10, 500, 1 << 20, "", ""},
		{150, 100, 8080, 10, 500, 1 << 20, "", ""},
		{math.MinInt32, math.MinInt32, math.MinInt32, math.MinInt32, math.MinInt32, math.MinInt64, "", ""},
		{math.MaxInt32, math.MaxInt32, math.MaxInt32, math.MaxInt32, math.MaxInt32, math.MaxInt64, "", ""},
	}
	for _, s := range seeds {
		f.Add(s.drain, s.budget, s.port, s.topN, s.feed, s.body, s.dataFile, s.dbURL)
	}

	f.Fuzz(func(t *testing.T, drain, budget, port, topN, feed int, body int64, dataFile, dbURL string) {
		c := Config{
			DrainSeconds:          drain,
			ShutdownBudgetSeconds: budget,
			APIPort:               port,
			TopN:                  topN,
			FeedIntervalMS:        feed,
			MaxBodyBytes:          body,
			DataFile:              dataFile,
			DatabaseURL:           dbURL,
		}
		err := c.Validate()

		drainOK := drain >= 1 && drain <= 300
		budgetOK := budget >= 1 && budget <= 300
		portOK := port >= 1 && port <= 65535
		crossOK := budget > drain
		topOK := topN >= 1 && topN <= MaxTopN
		feedOK := feed >= MinFeedIntervalMS && feed <= MaxFeedIntervalMS
		bodyOK := body >= MinMaxBodyBytes && body <= MaxMaxBodyBytes
		sourceOK := dataFile == "" || dbURL == ""

		allValid := drainOK && budgetOK && portOK && crossOK && topOK && feedOK && bodyOK && sourceOK

		if allValid && err != nil {
			t.Errorf("expected no error for valid config %+v, got: %v", c, err)
		}
		if !allValid && err == nil {
			t.Errorf("expected error for invalid config %+v, got nil", c)
		}
	})
}
