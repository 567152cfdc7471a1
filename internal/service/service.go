// Package service coordinates query building, trace retrieval, assembly and export.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"tracepayload/internal/assembler"
	"tracepayload/internal/metrics"
	"tracepayload/internal/models"
	"tracepayload/internal/query"
)

// ErrNotFound is returned when no request or response rows exist for a transaction.
var ErrNotFound = errors.New("no payload found for transaction")

// Querier runs a KQL query against the trace store.
type Querier interface {
	Query(ctx context.Context, query string) ([]models.RawLogRow, error)
}

// Exporter persists an assembled payload and returns where it was written.
type Exporter interface {
	Export(payload *models.AssembledPayload, transactionID string) (string, error)
}

// Recorder keeps the export history.
type Recorder interface {
	RecordExport(ctx context.Context, rec models.ExportRecord) error
}

// Notifier announces completed exports.
type Notifier interface {
	NotifyExport(ctx context.Context, rec models.ExportRecord) error
}

// Result is the outcome of one download.
type Result struct {
	ExportID    string
	Query       string
	Payload     *models.AssembledPayload
	Diagnostics []assembler.Diagnostic
	ExportPath  string
}

// Service coordinates a download from correlation key to assembled payload
type Service struct {
	builder   *query.Builder
	querier   Querier
	assembler *assembler.Assembler
	exporter  Exporter
	recorder  Recorder
	notifier  Notifier
	logger    zerolog.Logger
}

// Option configures the optional side effects of a Service.
type Option func(*Service)

// WithExporter writes every successful download through e.
func WithExporter(e Exporter) Option {
	return func(s *Service) { s.exporter = e }
}

// WithRecorder records every successful download in r.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithNotifier announces every successful download through n.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// New creates a new download service
func New(b *query.Builder, q Querier, a *assembler.Assembler, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		builder:   b,
		querier:   q,
		assembler: a,
		logger:    logger.With().Str("component", "service").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BuildQuery returns the query text for key without running it.
func (s *Service) BuildQuery(key models.CorrelationKey) (string, error) {
	q, err := s.builder.Build(key)
	if err != nil {
		metrics.QueriesBuiltTotal.WithLabelValues("invalid").Inc()
		return "", err
	}
	metrics.QueriesBuiltTotal.WithLabelValues("ok").Inc()
	return q, nil
}

// Download retrieves the traces of key and assembles them into a payload.
// Export, history and notification failures are logged and do not fail the download.
func (s *Service) Download(ctx context.Context, key models.CorrelationKey) (*Result, error) {
	log := s.logger.With().
		Str("transaction_id", key.TransactionID).
		Str("transaction_date", key.Day().Format(models.DateLayout)).
		Logger()

	q, err := s.BuildQuery(key)
	if err != nil {
		metrics.DownloadsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	timer := prometheus.NewTimer(metrics.BackendQueryDuration)
	rows, err := s.querier.Query(ctx, q)
	timer.ObserveDuration()
	if err != nil {
		metrics.DownloadsTotal.WithLabelValues("backend_error").Inc()
		log.Error().Err(err).Msg("Trace query failed")
		return nil, fmt.Errorf("failed to query traces: %w", err)
	}
	metrics.BackendRowsReturned.Observe(float64(len(rows)))

	payload, diags, err := s.assembler.Assemble(rows)
	for _, d := range diags {
		metrics.DiagnosticsTotal.WithLabelValues(d.Kind).Inc()
	}
	if err != nil {
		metrics.DownloadsTotal.WithLabelValues("assembly_error").Inc()
		return nil, fmt.Errorf("failed to assemble payload: %w", err)
	}

	log.Info().
		Int("rows", len(rows)).
		Int("transaction_pairs", len(payload.Transaction)).
		Int("discount_pairs", len(payload.EvaluateDiscounts)).
		Int("diagnostics", len(diags)).
		Msg("Payload assembled")

	if payload.IsEmpty() {
		metrics.DownloadsTotal.WithLabelValues("not_found").Inc()
		return nil, ErrNotFound
	}

	res := &Result{
		ExportID:    uuid.NewString(),
		Query:       q,
		Payload:     payload,
		Diagnostics: diags,
	}

	if s.exporter != nil {
		path, err := s.exporter.Export(payload, key.TransactionID)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to export payload")
		} else {
			res.ExportPath = path
		}
	}

	rec := models.ExportRecord{
		ID:               res.ExportID,
		TransactionID:    key.TransactionID,
		ReferenceDate:    key.Day().Format(models.DateLayout),
		TransactionPairs: len(payload.Transaction),
		DiscountPairs:    len(payload.EvaluateDiscounts),
		Diagnostics:      len(diags),
		FilePath:         res.ExportPath,
		CreatedAt:        time.Now().UTC(),
	}

	if s.recorder != nil {
		if err := s.recorder.RecordExport(ctx, rec); err != nil {
			log.Warn().Err(err).Msg("Failed to record export")
		}
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyExport(ctx, rec); err != nil {
			log.Warn().Err(err).Msg("Failed to send export notification")
		}
	}

	metrics.DownloadsTotal.WithLabelValues("ok").Inc()
	return res, nil
}
