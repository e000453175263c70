package cfg

import (
	"errors"
	"flag"
	"fmt"
)

// Limits enforced by Validate.
const (
	MaxTopN           = 1000
	MinMaxBodyBytes   = 1 << 10
	MaxMaxBodyBytes   = 64 << 20
	MinFeedIntervalMS = 10
	MaxFeedIntervalMS = 60_000
)

// Config adds app-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	DatabaseURL           string
	DataFile              string
	TopN                  int
	APIToken              string
	MaxBodyBytes          int64
	FeedIntervalMS        int
	SlowQueryMS           int
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.StringVar(&c.DataFile, "data-file", "", "serve a read-only dataset from this JSON or YAML file instead of a store")
	fs.IntVar(&c.TopN, "top-n", 10, fmt.Sprintf("length of the top source/destination address tables (1..%d)", MaxTopN))
	fs.StringVar(&c.APIToken, "api-token", "", "bearer token required to ingest alerts (empty = no auth)")
	fs.Int64Var(&c.MaxBodyBytes, "max-body-bytes", 1<<20, fmt.Sprintf("maximum request body size (%d..%d)", MinMaxBodyBytes, MaxMaxBodyBytes))
	fs.IntVar(&c.FeedIntervalMS, "feed-interval-ms", 500, fmt.Sprintf("minimum milliseconds between live feed pushes (%d..%d)", MinFeedIntervalMS, MaxFeedIntervalMS))
	fs.IntVar(&c.SlowQueryMS, "slow-query-ms", 0, "log successful database queries at or above this many milliseconds (0 = log all)")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	// Data file and database are alternative dataset sources
	if c.DataFile != "" && c.DatabaseURL != "" {
		errs = append(errs, errors.New("DATA_FILE and DATABASE_URL are mutually exclusive"))
	}

	if c.TopN <= 0 || c.TopN > MaxTopN {
		errs = append(errs, fmt.Errorf("invalid TOP_N %d (must be 1..%d)", c.TopN, MaxTopN))
	}

	if c.MaxBodyBytes < MinMaxBodyBytes || c.MaxBodyBytes > MaxMaxBodyBytes {
		errs = append(errs, fmt.Errorf("invalid MAX_BODY_BYTES %d (must be %d..%d)", c.MaxBodyBytes, MinMaxBodyBytes, MaxMaxBodyBytes))
	}

	if c.FeedIntervalMS < MinFeedIntervalMS || c.FeedIntervalMS > MaxFeedIntervalMS {
		errs = append(errs, fmt.Errorf("invalid FEED_INTERVAL_MS %d (must be %d..%d)", c.FeedIntervalMS, MinFeedIntervalMS, MaxFeedIntervalMS))
	}

	if c.SlowQueryMS < 0 {
		errs = append(errs, fmt.Errorf("invalid SLOW_QUERY_MS %d (must be >= 0)", c.SlowQueryMS))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
