package services

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	repositories "github.com/AmPepSoc/analytics-go/internal/infrastructure/persistence/analytics"
)

func newIngestionService(t *testing.T) (*IngestionService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newTestDB(t)
	logger := newTestLogger(t)
	customEvents := repositories.NewSQLCustomEventRepository(db, logger)
	return NewIngestionService(customEvents, nil, nil, logger), mock
}

func TestIngestBatchStoresEvents(t *testing.T) {
	svc, mock := newIngestionService(t)

	mock.ExpectExec("INSERT INTO custom_events").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO custom_events").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE custom_events").WillReturnResult(sqlmock.NewResult(0, 2))

	result := svc.IngestBatch(&BatchRequest{
		SessionID: "s1",
		Events: []IncomingEvent{
			{Name: "pdf_download", Category: "engagement"},
			{Name: "outbound_click"},
		},
	})

	assert.Equal(t, 2, result.EventsCreated)
	assert.Empty(t, result.Errors)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestBatchIsolatesFailures(t *testing.T) {
	svc, mock := newIngestionService(t)

	mock.ExpectExec("INSERT INTO custom_events").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO custom_events").WillReturnError(errors.New("disk I/O error"))
	mock.ExpectExec("INSERT INTO custom_events").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE custom_events").WillReturnResult(sqlmock.NewResult(0, 2))

	result := svc.IngestBatch(&BatchRequest{
		SessionID: "s1",
		Events: []IncomingEvent{
			{Name: "pdf_download"},
			{Name: "video_play"},
			{Name: "outbound_click"},
		},
	})

	assert.Equal(t, 2, result.EventsCreated)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestBatchRejectsNamelessEvents(t *testing.T) {
	svc, mock := newIngestionService(t)

	mock.ExpectExec("INSERT INTO custom_events").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE custom_events").WillReturnResult(sqlmock.NewResult(0, 1))

	result := svc.IngestBatch(&BatchRequest{
		SessionID: "s1",
		Events: []IncomingEvent{
			{Name: ""},
			{Name: "pdf_download"},
		},
	})

	assert.Equal(t, 1, result.EventsCreated)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "event name is required")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestBatchCapsOversizedBatches(t *testing.T) {
	svc, mock := newIngestionService(t)
	svc.maxBatch = 2

	mock.ExpectExec("INSERT INTO custom_events").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO custom_events").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE custom_events").WillReturnResult(sqlmock.NewResult(0, 2))

	result := svc.IngestBatch(&BatchRequest{
		SessionID: "s1",
		Events: []IncomingEvent{
			{Name: "first"},
			{Name: "second"},
			{Name: "third"},
		},
	})

	// Overflow past the cap is dropped, not reported as an error.
	assert.Equal(t, 2, result.EventsCreated)
	assert.Empty(t, result.Errors)
	assert.NoError(t, mock.ExpectationsWereMet())
}
