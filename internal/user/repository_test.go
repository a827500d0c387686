package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

func newMock(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewRepository(db), mock
}

func userRow(id, username, email string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "username", "email", "password_hash", "first_name", "last_name",
		"role_id", "is_active", "created_at", "updated_at",
	}).AddRow(id, username, email, "$2a$10$hash", "Test", "User", "role-1", true, now, now)
}

func TestGetByLogin(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs("someone@example.com").
		WillReturnRows(userRow("user-1", "someone", "someone@example.com"))

	found, err := repo.GetByLogin(context.Background(), "  Someone@Example.COM ")
	if err != nil {
		t.Fatalf("GetByLogin: %v", err)
	}
	if found.ID != "user-1" {
		t.Fatalf("id = %q, want user-1", found.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetByLoginNotFound(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByLogin(context.Background(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs("missing-id").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(context.Background(), "missing-id")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCreateNormalizesAndReturnsUser(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec("INSERT INTO users").
		WithArgs(sqlmock.AnyArg(), "newbie", "newbie@example.com", "$2a$10$hash",
			"New", "Person", "role-1", true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	created, err := repo.Create(context.Background(), UserInput{
		Username:  "  Newbie ",
		Email:     " NEWBIE@example.com",
		FirstName: " New ",
		LastName:  " Person ",
		RoleID:    "role-1",
	}, "$2a$10$hash")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Username != "newbie" || created.Email != "newbie@example.com" {
		t.Fatalf("normalization failed: %q / %q", created.Username, created.Email)
	}
	if !created.IsActive {
		t.Fatalf("new user should start active")
	}
	if created.ID == "" {
		t.Fatalf("missing generated id")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateConflictAndUnknownRole(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&pgconn.PgError{Code: uniqueViolation})
	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&pgconn.PgError{Code: foreignKeyViolation})

	input := UserInput{Username: "dup", Email: "dup@example.com", RoleID: "role-1"}

	if _, err := repo.Create(context.Background(), input, "$2a$10$hash"); !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	if _, err := repo.Create(context.Background(), input, "$2a$10$hash"); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("err = %v, want ErrUnknownRole", err)
	}
}

func TestUpdateRole(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery("UPDATE users").
		WithArgs("user-1", "role-2", sqlmock.AnyArg()).
		WillReturnRows(userRow("user-1", "someone", "someone@example.com"))

	updated, err := repo.UpdateRole(context.Background(), "user-1", "role-2")
	if err != nil {
		t.Fatalf("UpdateRole: %v", err)
	}
	if updated.ID != "user-1" {
		t.Fatalf("id = %q, want user-1", updated.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateRoleUnknownTargets(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery("UPDATE users").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("UPDATE users").
		WillReturnError(&pgconn.PgError{Code: foreignKeyViolation})

	if _, err := repo.UpdateRole(context.Background(), "missing", "role-2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := repo.UpdateRole(context.Background(), "user-1", "missing-role"); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("err = %v, want ErrUnknownRole", err)
	}
}

func TestDeactivate(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec("UPDATE users").
		WithArgs("user-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Deactivate(context.Background(), "user-1"); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeactivateMissingUser(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec("UPDATE users").
		WithArgs("missing", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Deactivate(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestList(t *testing.T) {
	repo, mock := newMock(t)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "username", "email", "password_hash", "first_name", "last_name",
		"role_id", "is_active", "created_at", "updated_at",
	}).
		AddRow("user-1", "first", "first@example.com", "h", "", "", "role-1", true, now, now).
		AddRow("user-2", "second", "second@example.com", "h", "", "", "role-1", false, now, now)

	mock.ExpectQuery("SELECT (.+) FROM users").WillReturnRows(rows)

	users, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("len = %d, want 2", len(users))
	}
	if users[1].IsActive {
		t.Fatalf("second user should be inactive")
	}
}
