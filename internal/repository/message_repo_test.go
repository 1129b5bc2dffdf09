package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"sousvide_simulator/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
)

func ctx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return c
}

func TestAppend_FillsDefaultsAndPrunes(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	repo := NewMessageSQLite(db)

	// Generated id and timestamp are unknown; match shape and fixed args.
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO message_log")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(),
			models.DirectionInbound, "CMD_APC_START", "r1",
			`{"command":"CMD_APC_START"}`,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM message_log")).
		WithArgs(maxRetained).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.Append(ctx(t), models.LoggedMessage{
		// ID empty -> generated; Timestamp zero -> now
		Direction: models.DirectionInbound,
		Command:   "CMD_APC_START",
		RequestID: "r1",
		Raw:       `{"command":"CMD_APC_START"}`,
	})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAppend_EmptyCommandStoredAsNull(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	repo := NewMessageSQLite(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO message_log")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(),
			models.DirectionOutbound, nil, nil, "raw bytes",
		).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM message_log")).
		WithArgs(maxRetained).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.Append(ctx(t), models.LoggedMessage{
		Direction: models.DirectionOutbound,
		Raw:       "raw bytes",
	})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestList_ReturnsChronologicalOrder(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	repo := NewMessageSQLite(db)

	t1 := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Second)

	// The query returns newest first; the repo reverses.
	rows := sqlmock.NewRows([]string{"id", "recorded_at", "direction", "command", "request_id", "raw"}).
		AddRow("b", t2, models.DirectionOutbound, "RESPONSE", "r1", "second").
		AddRow("a", t1, models.DirectionInbound, "CMD_APC_STOP", "r1", "first")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, recorded_at, direction, command, request_id, raw")).
		WithArgs(10).
		WillReturnRows(rows)

	out, err := repo.List(ctx(t), 10, "")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if out[0].Raw != "first" || out[1].Raw != "second" {
		t.Fatalf("expected chronological order, got %q then %q", out[0].Raw, out[1].Raw)
	}
	if out[0].Command != "CMD_APC_STOP" || out[0].Direction != models.DirectionInbound {
		t.Fatalf("unexpected row: %+v", out[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestList_DirectionFilterAndLimitClamp(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	repo := NewMessageSQLite(db)

	rows := sqlmock.NewRows([]string{"id", "recorded_at", "direction", "command", "request_id", "raw"})
	mock.ExpectQuery(regexp.QuoteMeta("WHERE direction = ?")).
		WithArgs(models.DirectionInbound, maxRetained).
		WillReturnRows(rows)

	// Non-positive limit falls back to the retention cap.
	out, err := repo.List(ctx(t), 0, models.DirectionInbound)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("len = %d, want 0", len(out))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
