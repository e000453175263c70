package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/alertdash/internal/alert"
	"github.com/linnemanlabs/alertdash/internal/summary"
)

var tracer = otel.Tracer("github.com/linnemanlabs/alertdash/internal/dashboard")

// ErrReadOnly is returned by Ingest when the dataset is not writable, for
// example when it is served from a data file.
var ErrReadOnly = errors.New("dataset is read-only")

// Ingest results, used as the "result" metric label.
const (
	IngestAccepted = "accepted"
	IngestRejected = "rejected"
	IngestReadOnly = "read_only"
	IngestFailed   = "failed"
)

// Hooks observe service operations. Nil funcs are skipped.
type Hooks struct {
	OnIngest  func(result string, records int)
	OnSummary func(source string, records int, duration float64, err error)
}

// IngestResult is the outcome of storing a batch of records.
type IngestResult struct {
	IDs []string `json:"accepted"`
}

// Service is the business boundary for dashboard operations.
type Service struct {
	source Source
	store  Store // nil when the source is read-only
	topN   int
	logger log.Logger
	hooks  Hooks

	mu        sync.RWMutex
	listeners []func()
}

// NewService creates a dashboard service over src. Ingest is enabled when
// src also implements Store. topN <= 0 selects summary.DefaultTopN.
func NewService(src Source, topN int, logger log.Logger, hooks Hooks) *Service {
	if src == nil {
		panic(xerrors.New("dashboard source is required"))
	}
	if logger == nil {
		logger = log.Nop()
	}
	if topN <= 0 {
		topN = summary.DefaultTopN
	}
	store, _ := src.(Store)
	return &Service{
		source: src,
		store:  store,
		topN:   topN,
		logger: logger,
		hooks:  hooks,
	}
}

// Writable reports whether Ingest can store records.
func (s *Service) Writable() bool {
	return s.store != nil
}

// OnChange registers fn to run after the dataset changes.
func (s *Service) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// NotifyChanged runs the OnChange listeners. Sources that change outside of
// Ingest, such as a reloaded data file, call this.
func (s *Service) NotifyChanged() {
	s.mu.RLock()
	listeners := s.listeners
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn()
	}
}

// Ingest validates and stores a batch. Validation covers the whole batch
// before anything is written, so a bad record or a repeated ID rejects the
// batch. Records without an ID get a fresh ULID. The batch is stored
// atomically through Store.PutBatch.
func (s *Service) Ingest(ctx context.Context, records []alert.Record) (*IngestResult, error) {
	ctx, span := tracer.Start(ctx, "dashboard.Ingest", trace.WithAttributes(
		attribute.Int("alertdash.ingest.records", len(records)),
	))
	defer span.End()

	if s.store == nil {
		s.ingested(IngestReadOnly, 0)
		return nil, ErrReadOnly
	}

	seen := make(map[string]int, len(records))
	for i := range records {
		err := records[i].Validate()
		if err == nil && records[i].ID != "" {
			if first, dup := seen[records[i].ID]; dup {
				err = fmt.Errorf("duplicate id %q (also record %d)", records[i].ID, first)
			}
			seen[records[i].ID] = i
		}
		if err != nil {
			err = fmt.Errorf("%w: record %d: %w", summary.ErrInvalidRecord, i, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.ingested(IngestRejected, 0)
			return nil, err
		}
	}

	batch := make([]alert.Record, len(records))
	ids := make([]string, len(records))
	for i := range records {
		batch[i] = records[i].Clone()
		if batch[i].ID == "" {
			batch[i].ID = ulid.Make().String()
		}
		ids[i] = batch[i].ID
	}

	if len(batch) > 0 {
		if err := s.store.PutBatch(ctx, batch); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.ingested(IngestFailed, 0)
			return nil, fmt.Errorf("store records: %w", err)
		}
	}

	s.ingested(IngestAccepted, len(ids))
	if len(ids) > 0 {
		s.NotifyChanged()
	}
	return &IngestResult{IDs: ids}, nil
}

// Get retrieves a stored record by ID.
func (s *Service) Get(ctx context.Context, id string) (*alert.Record, bool, error) {
	if s.store == nil {
		return nil, false, nil
	}
	return s.store.Get(ctx, id)
}

// Summarize aggregates the whole dataset.
func (s *Service) Summarize(ctx context.Context) (*summary.Result, error) {
	ctx, span := tracer.Start(ctx, "dashboard.Summarize", trace.WithAttributes(
		attribute.String("alertdash.summary.source", SourceDataset),
	))
	defer span.End()

	start := time.Now()
	records, err := s.source.Records(ctx)
	if err != nil {
		err = fmt.Errorf("read dataset: %w", err)
		s.summarized(span, SourceDataset, 0, start, err)
		return nil, err
	}

	res, err := summary.AggregateN(records, s.topN)
	s.summarized(span, SourceDataset, len(records), start, err)
	return res, err
}

// SummarizeRecords aggregates a caller-supplied batch without touching the
// dataset.
func (s *Service) SummarizeRecords(ctx context.Context, records []alert.Record) (*summary.Result, error) {
	_, span := tracer.Start(ctx, "dashboard.SummarizeRecords", trace.WithAttributes(
		attribute.String("alertdash.summary.source", SourceRequest),
	))
	defer span.End()

	start := time.Now()
	res, err := summary.AggregateN(records, s.topN)
	s.summarized(span, SourceRequest, len(records), start, err)
	return res, err
}

func (s *Service) summarized(span trace.Span, source string, records int, start time.Time, err error) {
	span.SetAttributes(attribute.Int("alertdash.summary.records", records))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if s.hooks.OnSummary != nil {
		s.hooks.OnSummary(source, records, time.Since(start).Seconds(), err)
	}
}

func (s *Service) ingested(result string, records int) {
	if s.hooks.OnIngest != nil {
		s.hooks.OnIngest(result, records)
	}
}
