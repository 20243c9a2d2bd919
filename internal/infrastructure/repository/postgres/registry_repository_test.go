package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/sergiocoding96/order-pipeline/internal/core/domain"
)

func newRegistryWithMock(t *testing.T) (*RegistryRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &RegistryRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestFindByCodeReturnsNotFound(t *testing.T) {
	repo, mock, done := newRegistryWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT code FROM clients").
		WithArgs("MISSING").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByCode(context.Background(), domain.KindClient, "MISSING")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFindByCodeWrapsOutageAsRegistryUnavailable(t *testing.T) {
	repo, mock, done := newRegistryWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT code FROM products").
		WithArgs("P001").
		WillReturnError(errors.New("connection refused"))

	_, err := repo.FindByCode(context.Background(), domain.KindProduct, "P001")
	if !domain.IsKind(err, domain.ErrRegistryUnavailable) {
		t.Fatalf("expected ErrRegistryUnavailable, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFindAliasResolvesOwningCode(t *testing.T) {
	repo, mock, done := newRegistryWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT code FROM product_aliases").
		WithArgs("tomate pera").
		WillReturnRows(sqlmock.NewRows([]string{"code"}).AddRow("P042"))

	code, err := repo.FindAlias(context.Background(), domain.KindProduct, "tomate pera")
	if err != nil {
		t.Fatalf("FindAlias() error = %v", err)
	}
	if code != "P042" {
		t.Fatalf("expected code P042, got %q", code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInsertAliasIgnoresConflict(t *testing.T) {
	repo, mock, done := newRegistryWithMock(t)
	defer done()

	// ON CONFLICT DO NOTHING reports zero rows affected for a lost race.
	mock.ExpectExec("INSERT INTO client_aliases").
		WithArgs("acme sl", "C001", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.InsertAlias(context.Background(), domain.KindClient, "acme sl", "C001"); err != nil {
		t.Fatalf("InsertAlias() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListCodesReturnsAllCodes(t *testing.T) {
	repo, mock, done := newRegistryWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT code FROM clients ORDER BY code").
		WillReturnRows(sqlmock.NewRows([]string{"code"}).AddRow("C001").AddRow("C002"))

	codes, err := repo.ListCodes(context.Background(), domain.KindClient)
	if err != nil {
		t.Fatalf("ListCodes() error = %v", err)
	}
	if len(codes) != 2 || codes[0] != "C001" || codes[1] != "C002" {
		t.Fatalf("unexpected codes: %v", codes)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUnsupportedKindIsInvalidInput(t *testing.T) {
	repo, _, done := newRegistryWithMock(t)
	defer done()

	_, err := repo.FindByCode(context.Background(), domain.EntityKind("warehouse"), "X")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
