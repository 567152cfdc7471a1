package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracepayload/internal/assembler"
	"tracepayload/internal/models"
	"tracepayload/internal/query"
)

type fakeQuerier struct {
	rows    []models.RawLogRow
	err     error
	queries []string
}

func (f *fakeQuerier) Query(ctx context.Context, q string) ([]models.RawLogRow, error) {
	f.queries = append(f.queries, q)
	return f.rows, f.err
}

type fakeExporter struct {
	path string
	err  error
	ids  []string
}

func (f *fakeExporter) Export(payload *models.AssembledPayload, transactionID string) (string, error) {
	f.ids = append(f.ids, transactionID)
	return f.path, f.err
}

type fakeRecorder struct {
	records []models.ExportRecord
	err     error
}

func (f *fakeRecorder) RecordExport(ctx context.Context, rec models.ExportRecord) error {
	f.records = append(f.records, rec)
	return f.err
}

type fakeNotifier struct {
	records []models.ExportRecord
}

func (f *fakeNotifier) NotifyExport(ctx context.Context, rec models.ExportRecord) error {
	f.records = append(f.records, rec)
	return errors.New("webhook unavailable")
}

var refDate = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

func newService(q Querier, opts ...Option) *Service {
	return New(
		query.NewBuilder(query.DefaultOptions()),
		q,
		assembler.New(assembler.Options{}, zerolog.Nop()),
		zerolog.Nop(),
		opts...,
	)
}

func pairRows() []models.RawLogRow {
	return []models.RawLogRow{
		{Timestamp: refDate.Add(time.Second), Message: `-TX1-2024-03-15 Transaction Request: {"a":1}`},
		{Timestamp: refDate.Add(2 * time.Second), Message: `-TX1-2024-03-15 Transaction post success. Response - {"b":2}`},
		{Timestamp: refDate.Add(3 * time.Second), Message: `-TX1-2024-03-15 Evaluate Discounts Request: {oops`},
	}
}

func TestDownload(t *testing.T) {
	q := &fakeQuerier{rows: pairRows()}
	exp := &fakeExporter{path: "/exports/transaction_payload_TX1.json"}
	rec := &fakeRecorder{}
	notif := &fakeNotifier{}

	svc := newService(q, WithExporter(exp), WithRecorder(rec), WithNotifier(notif))
	res, err := svc.Download(context.Background(), models.CorrelationKey{TransactionID: "TX1", ReferenceDate: refDate})
	require.NoError(t, err)

	require.Len(t, q.queries, 1)
	assert.Equal(t, q.queries[0], res.Query)
	assert.Contains(t, res.Query, `message has "-TX1-"`)

	require.Len(t, res.Payload.Transaction, 1)
	assert.JSONEq(t, `{"a":1}`, string(res.Payload.Transaction[0].Request))
	assert.JSONEq(t, `{"b":2}`, string(res.Payload.Transaction[0].Response))
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, "MalformedFragment", res.Diagnostics[0].Kind)

	assert.Equal(t, []string{"TX1"}, exp.ids)
	assert.Equal(t, exp.path, res.ExportPath)
	assert.NotEmpty(t, res.ExportID)

	require.Len(t, rec.records, 1)
	assert.Equal(t, res.ExportID, rec.records[0].ID)
	assert.Equal(t, "2024-03-15", rec.records[0].ReferenceDate)
	assert.Equal(t, 1, rec.records[0].TransactionPairs)
	assert.Equal(t, 1, rec.records[0].DiscountPairs)
	assert.Equal(t, 1, rec.records[0].Diagnostics)
	assert.Equal(t, exp.path, rec.records[0].FilePath)

	// notification failures do not fail the download
	assert.Len(t, notif.records, 1)
}

func TestDownloadSideEffectFailures(t *testing.T) {
	exp := &fakeExporter{err: errors.New("disk full")}
	rec := &fakeRecorder{err: errors.New("db down")}

	svc := newService(&fakeQuerier{rows: pairRows()}, WithExporter(exp), WithRecorder(rec))
	res, err := svc.Download(context.Background(), models.CorrelationKey{TransactionID: "TX1", ReferenceDate: refDate})
	require.NoError(t, err)
	assert.Empty(t, res.ExportPath)
	require.Len(t, rec.records, 1)
	assert.Empty(t, rec.records[0].FilePath)
}

func TestDownloadNotFound(t *testing.T) {
	q := &fakeQuerier{rows: []models.RawLogRow{
		{Timestamp: refDate, Message: "-TX1- unrelated"},
	}}
	rec := &fakeRecorder{}

	_, err := newService(q, WithRecorder(rec)).Download(context.Background(),
		models.CorrelationKey{TransactionID: "TX1", ReferenceDate: refDate})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, rec.records)
}

func TestDownloadInvalidInput(t *testing.T) {
	q := &fakeQuerier{}

	_, err := newService(q).Download(context.Background(), models.CorrelationKey{ReferenceDate: refDate})
	assert.ErrorIs(t, err, query.ErrInvalidInput)
	assert.Empty(t, q.queries)
}

func TestDownloadBackendError(t *testing.T) {
	backendErr := errors.New("status 403")

	_, err := newService(&fakeQuerier{err: backendErr}).Download(context.Background(),
		models.CorrelationKey{TransactionID: "TX1", ReferenceDate: refDate})
	assert.ErrorIs(t, err, backendErr)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestDownloadOrphanFail(t *testing.T) {
	q := &fakeQuerier{rows: []models.RawLogRow{
		{Timestamp: refDate, Message: `-TX1- Transaction post success. Response - {"b":2}`},
	}}
	svc := New(
		query.NewBuilder(query.DefaultOptions()),
		q,
		assembler.New(assembler.Options{Orphans: assembler.OrphanFail}, zerolog.Nop()),
		zerolog.Nop(),
	)

	_, err := svc.Download(context.Background(), models.CorrelationKey{TransactionID: "TX1", ReferenceDate: refDate})
	assert.ErrorIs(t, err, assembler.ErrOutOfOrderPairing)
}

func TestBuildQuery(t *testing.T) {
	svc := newService(&fakeQuerier{})

	q, err := svc.BuildQuery(models.CorrelationKey{TransactionID: "TX1", ReferenceDate: refDate})
	require.NoError(t, err)
	assert.Contains(t, q, `todatetime("2024-03-14")`)

	_, err = svc.BuildQuery(models.CorrelationKey{TransactionID: "TX1"})
	assert.ErrorIs(t, err, query.ErrInvalidInput)
}
