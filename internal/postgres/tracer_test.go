package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestShortenFuncName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"full path", "github.com/linnemanlabs/alertdash/internal/dashboard/pgstore.(*Store).Get", "(*Store).Get"},
		{"already short", "(*Store).Get", "Get"},
		{"empty string", "", ""},
		{"no dots", "main", "main"},
		{"no slashes", "pgstore.(*Store).Records", "(*Store).Records"},
		{"trailing dot", "foo.", "foo."},
		{"single segment", "foo.Bar", "Bar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := shortenFuncName(tt.in)
			if got != tt.want {
				t.Errorf("shortenFuncName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSkipFrame(t *testing.T) {
	t.Parallel()

	tests := []struct {
		fn   string
		want bool
	}{
		{"", true},
		{"runtime.goexit", true},
		{"github.com/jackc/pgx/v5/pgxpool.(*Pool).Query", true},
		{"github.com/exaring/otelpgx.(*Tracer).TraceQueryStart", true},
		{"github.com/linnemanlabs/alertdash/internal/postgres.queryTracer.TraceQueryStart", true},
		{"github.com/linnemanlabs/alertdash/internal/dashboard/pgstore.(*Store).Records", false},
		{"github.com/linnemanlabs/alertdash/internal/dashboard.(*Service).Summarize", false},
	}

	for _, tt := range tests {
		if got := skipFrame(tt.fn); got != tt.want {
			t.Errorf("skipFrame(%q) = %v, want %v", tt.fn, got, tt.want)
		}
	}
}

func TestReqDBStats_AddQuery(t *testing.T) {
	t.Parallel()

	s := &ReqDBStats{}

	s.AddQuery(10*time.Millisecond, nil)
	s.AddQuery(20*time.Millisecond, errors.New("timeout"))
	s.AddQuery(5*time.Millisecond, nil)

	count, total, errs := s.Snapshot()
	if count != 3 {
		t.Errorf("QueryCount = %d, want 3", count)
	}
	if total != 35*time.Millisecond {
		t.Errorf("TotalDuration = %v, want 35ms", total)
	}
	if errs != 1 {
		t.Errorf("ErrorCount = %d, want 1", errs)
	}
}

func TestReqDBStatsContext_RoundTrip(t *testing.T) {
	t.Parallel()

	ctx := NewReqDBStatsContext(context.Background())
	got, ok := ReqDBStatsFromContext(ctx)
	if !ok || got == nil {
		t.Fatal("expected stats in context")
	}

	got.AddQuery(time.Millisecond, nil)
	got2, _ := ReqDBStatsFromContext(ctx)
	if got2.QueryCount != 1 {
		t.Errorf("QueryCount = %d, want 1 (same pointer)", got2.QueryCount)
	}
}

func TestReqDBStatsFromContext_Missing(t *testing.T) {
	t.Parallel()

	if _, ok := ReqDBStatsFromContext(context.Background()); ok {
		t.Error("expected ok=false for plain context")
	}
}

func TestHTTPMethodFromContext(t *testing.T) {
	t.Parallel()

	if got := httpMethodFromContext(WithHTTPMethod(context.Background(), "POST")); got != "POST" {
		t.Errorf("method = %q, want POST", got)
	}
	if got := httpMethodFromContext(WithHTTPMethod(context.Background(), "")); got != "UNKNOWN" {
		t.Errorf("method = %q, want UNKNOWN", got)
	}
}

func TestRoutePatternFromContext_NoRouter(t *testing.T) {
	t.Parallel()

	if got := routePatternFromContext(context.Background()); got != "unknown" {
		t.Errorf("route = %q, want unknown", got)
	}
}

func TestQueryLogFields(t *testing.T) {
	t.Parallel()

	qi := &queryInfo{sql: "SELECT 1", args: []any{1, 2}, caller: "(*Store).Get", handler: "(*Service).Get"}
	fields := queryLogFields(qi, 2*time.Millisecond, pgx.TraceQueryEndData{
		CommandTag: pgconn.NewCommandTag("SELECT 1"),
		Err:        &pgconn.PgError{Code: "23505", ConstraintName: "alert_records_id_key"},
	})

	got := make(map[string]any, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		got[fields[i].(string)] = fields[i+1]
	}

	want := map[string]any{
		"db.statement":        "SELECT 1",
		"db.args":             2,
		"db.operation.name":   "SELECT",
		"pg.command_tag":      "SELECT 1",
		"db.rows":             int64(1),
		"db.caller":           "(*Store).Get",
		"db.handler":          "(*Service).Get",
		"db.error_code":       "23505",
		"db.error_constraint": "alert_records_id_key",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}
}

// Not parallel: mutates the global observer.
func TestTraceQueryEnd_ObservesAndCountsStats(t *testing.T) {
	defer SetQueryObserver(nil)

	var (
		gotMethod, gotRoute, gotOutcome string
		calls                           int
	)
	SetQueryObserver(QueryObserverFunc(func(_ context.Context, method, route, outcome string, _ time.Duration) {
		calls++
		gotMethod, gotRoute, gotOutcome = method, route, outcome
	}))

	ctx := NewReqDBStatsContext(WithHTTPMethod(context.Background(), "GET"))
	tr := wrapQueryTracer(nil)
	ctx = tr.TraceQueryStart(ctx, nil, pgx.TraceQueryStartData{SQL: "SELECT count(*) FROM alert_records"})
	time.Sleep(time.Millisecond)
	tr.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{Err: errors.New("boom")})

	if calls != 1 {
		t.Fatalf("observer calls = %d, want 1", calls)
	}
	if gotMethod != "GET" || gotRoute != "unknown" || gotOutcome != "error" {
		t.Errorf("observed (%q, %q, %q), want (GET, unknown, error)", gotMethod, gotRoute, gotOutcome)
	}

	stats, _ := ReqDBStatsFromContext(ctx)
	count, _, errs := stats.Snapshot()
	if count != 1 || errs != 1 {
		t.Errorf("stats = (%d, %d), want (1, 1)", count, errs)
	}
}

// Not parallel: mutates the global observer.
func TestSetQueryObserver(t *testing.T) {
	defer SetQueryObserver(nil)

	called := false
	SetQueryObserver(QueryObserverFunc(func(_ context.Context, _, _, _ string, _ time.Duration) {
		called = true
	}))
	got := getQueryObserver()
	if got == nil {
		t.Fatal("expected non-nil observer after Set")
	}
	got.ObserveQuery(context.Background(), "GET", "/test", "ok", time.Millisecond)
	if !called {
		t.Error("observer was not called")
	}

	SetQueryObserver(nil)
	if got := getQueryObserver(); got != nil {
		t.Errorf("expected nil observer after Set(nil), got %v", got)
	}
}
