package credentials

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/pressly/goose/v3"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

const (
	selectQ = `(?s)^\s*SELECT\s+user_id,\s*password_hash,\s*created_at,\s*updated_at\s+FROM\s+credentials\s+WHERE\s+user_id\s*=\s*\$1\s*$`
	upsertQ = `(?s)^\s*INSERT\s+INTO\s+credentials\s*\(user_id,\s*password_hash,\s*created_at,\s*updated_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4\)\s*ON\s+CONFLICT\s*\(user_id\)\s*DO\s+UPDATE.*$`
)

func TestGet_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	updated := created.Add(time.Hour)
	rows := sqlmock.NewRows([]string{"user_id", "password_hash", "created_at", "updated_at"}).
		AddRow("u1", "hash", created, updated)

	mock.ExpectQuery(selectQ).WithArgs("u1").WillReturnRows(rows)

	got, err := repo.Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.UserID != "u1" || got.PasswordHash != "hash" || !got.CreatedAt.Equal(created) || !got.UpdatedAt.Equal(updated) {
		t.Fatalf("unexpected row: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(selectQ).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "ghost")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want common.ErrNotFound, got %v", err)
	}
}

func TestGet_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(selectQ).WithArgs("u1").WillReturnError(errors.New("db err"))

	_, err := repo.Get(context.Background(), "u1")
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestPut_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(upsertQ).
		WithArgs("u1", "hash", now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Put(context.Background(), &Record{UserID: "u1", PasswordHash: "hash", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPut_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(upsertQ).
		WithArgs("u1", "hash", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(errors.New("db down"))

	err := repo.Put(context.Background(), &Record{UserID: "u1", PasswordHash: "hash"})
	if err == nil || !regexp.MustCompile(`error performing sql request: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestPut_EmptyUserID(t *testing.T) {
	repo, _, db := newRepoWithMock(t)
	defer db.Close()

	if err := repo.Put(context.Background(), &Record{}); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("want common.ErrValidation, got %v", err)
	}
}

func TestRunMigrations_Success(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	defer db.Close()

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		if dir != "." {
			return errors.New("unexpected dir")
		}
		if len(opts) != 0 {
			return errors.New("unexpected opts")
		}
		return nil
	}
	defer func() { gooseUpContext = orig }()

	if err := RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("RunMigrations error: %v", err)
	}
}

func TestRunMigrations_Error(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	defer db.Close()

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	defer func() { gooseUpContext = orig }()

	if err := RunMigrations(context.Background(), db); err == nil || err.Error() != "boom" {
		t.Fatalf("expected boom, got %v", err)
	}
}
