package shared_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/rowguard/internal/shared"
)

type execCall struct {
	sql  string
	args []any
}

type fakeExecer struct {
	calls []execCall
	err   error
}

func (f *fakeExecer) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, execCall{sql: sql, args: args})
	if f.err != nil {
		return pgconn.CommandTag{}, f.err
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func TestAuditLoggerRecord(t *testing.T) {
	db := &fakeExecer{}
	logger := shared.NewAuditLogger(db)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	err := logger.Record(context.Background(), shared.AuditLog{
		ActorID: 7,
		Action:  shared.AuditActionAccessDenied,
		Entity:  "documents.Document",
		Meta:    map[string]any{"operation": "update"},
		At:      at,
	})
	require.NoError(t, err)
	require.Len(t, db.calls, 1)

	args := db.calls[0].args
	require.Len(t, args, 6)
	assert.Equal(t, int64(7), args[0])
	assert.Equal(t, "access_denied", args[1])
	assert.Equal(t, "documents.Document", args[2])
	assert.Nil(t, args[3].(*string))

	var meta map[string]any
	require.NoError(t, json.Unmarshal(args[4].([]byte), &meta))
	assert.Equal(t, "update", meta["operation"])
	assert.Equal(t, at, *args[5].(*time.Time))
}

func TestAuditLoggerValidation(t *testing.T) {
	var nilLogger *shared.AuditLogger
	assert.ErrorIs(t, nilLogger.Record(context.Background(), shared.AuditLog{}), shared.ErrAuditNotConfigured)

	db := &fakeExecer{}
	logger := shared.NewAuditLogger(db)
	err := logger.Record(context.Background(), shared.AuditLog{Action: "x"})
	assert.ErrorIs(t, err, shared.ErrAuditIncomplete)
	assert.Empty(t, db.calls)
}

func TestAuditLoggerPropagatesExecError(t *testing.T) {
	boom := errors.New("boom")
	logger := shared.NewAuditLogger(&fakeExecer{err: boom})
	err := logger.Record(context.Background(), shared.AuditLog{Action: "a", Entity: "e", EntityID: "1"})
	assert.ErrorIs(t, err, boom)
}
