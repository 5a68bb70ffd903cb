package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestRebind(t *testing.T) {
	q := "SELECT * FROM t WHERE a = ? AND b IN (?, ?)"

	if got := Wrap(nil, SQLite).Rebind(q); got != q {
		t.Errorf("sqlite Rebind changed query: %q", got)
	}
	want := "SELECT * FROM t WHERE a = $1 AND b IN ($2, $3)"
	if got := Wrap(nil, Postgres).Rebind(q); got != want {
		t.Errorf("postgres Rebind = %q, want %q", got, want)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "oracle"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestOpen_PostgresRequiresDSN(t *testing.T) {
	if _, err := Open(Config{Driver: "postgres"}); err == nil {
		t.Fatal("expected error for missing dsn")
	}
}

func TestOpen_SQLiteMemory(t *testing.T) {
	db, err := Open(Config{Driver: "sqlite", Path: ":memory:"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if db.Dialect() != SQLite {
		t.Errorf("Dialect() = %v", db.Dialect())
	}
	if err := db.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestOpen_SQLiteFileCreatesDir(t *testing.T) {
	path := t.TempDir() + "/nested/flowise.sqlite"
	db, err := Open(Config{Driver: "sqlite", Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()
	if err := db.WaitForReady(context.Background(), time.Second); err != nil {
		t.Fatalf("WaitForReady: %v", err)
	}
}

func TestPing_Error(t *testing.T) {
	raw, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer raw.Close()

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	if err := Wrap(raw, Postgres).Ping(context.Background()); err == nil {
		t.Fatal("expected ping error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestInTx_RollsBackOnError(t *testing.T) {
	raw, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer raw.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM document_store").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	boom := errors.New("boom")
	err = Wrap(raw, Postgres).InTx(context.Background(), func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM document_store"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestInTx_Commits(t *testing.T) {
	raw, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer raw.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()

	if err := Wrap(raw, SQLite).InTx(context.Background(), func(_ *sql.Tx) error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
