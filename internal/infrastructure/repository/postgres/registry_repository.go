package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sergiocoding96/order-pipeline/internal/core/domain"
)

// RegistryRepository stores canonical clients/products and their aliases.
// Alias inserts are append-only; the alias column's primary key makes
// concurrent learners of the same alias race harmlessly.
type RegistryRepository struct {
	db *sql.DB
}

func NewRegistryRepository(db *sql.DB) *RegistryRepository {
	return &RegistryRepository{db: db}
}

func (r *RegistryRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS clients (
	code TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS products (
	code TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS client_aliases (
	alias TEXT PRIMARY KEY,
	code TEXT NOT NULL REFERENCES clients(code),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS product_aliases (
	alias TEXT PRIMARY KEY,
	code TEXT NOT NULL REFERENCES products(code),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_client_aliases_code ON client_aliases(code);
CREATE INDEX IF NOT EXISTS idx_product_aliases_code ON product_aliases(code);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *RegistryRepository) FindByCode(ctx context.Context, kind domain.EntityKind, code string) (string, error) {
	table, _, err := tablesFor(kind)
	if err != nil {
		return "", err
	}

	var found string
	row := r.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT code FROM %s WHERE code = $1`, table), code)
	if err := row.Scan(&found); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.WrapError(domain.ErrNotFound, "code lookup", err)
		}
		return "", domain.WrapError(domain.ErrRegistryUnavailable, "code lookup", err)
	}
	return found, nil
}

func (r *RegistryRepository) FindAlias(ctx context.Context, kind domain.EntityKind, alias string) (string, error) {
	_, aliasTable, err := tablesFor(kind)
	if err != nil {
		return "", err
	}

	var code string
	row := r.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT code FROM %s WHERE alias = $1`, aliasTable), alias)
	if err := row.Scan(&code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.WrapError(domain.ErrNotFound, "alias lookup", err)
		}
		return "", domain.WrapError(domain.ErrRegistryUnavailable, "alias lookup", err)
	}
	return code, nil
}

func (r *RegistryRepository) ListCodes(ctx context.Context, kind domain.EntityKind) ([]string, error) {
	table, _, err := tablesFor(kind)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`SELECT code FROM %s ORDER BY code`, table))
	if err != nil {
		return nil, domain.WrapError(domain.ErrRegistryUnavailable, "list codes", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, domain.WrapError(domain.ErrRegistryUnavailable, "scan code", err)
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrRegistryUnavailable, "iterate codes", err)
	}
	return codes, nil
}

// InsertAlias records one learned alias. A conflicting insert means another
// resolution already learned it and is not an error.
func (r *RegistryRepository) InsertAlias(ctx context.Context, kind domain.EntityKind, alias, code string) error {
	_, aliasTable, err := tablesFor(kind)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (alias, code, created_at) VALUES ($1, $2, $3) ON CONFLICT (alias) DO NOTHING`, aliasTable),
		alias, code, time.Now().UTC(),
	)
	if err != nil {
		return domain.WrapError(domain.ErrRegistryUnavailable, "insert alias", err)
	}
	return nil
}

func tablesFor(kind domain.EntityKind) (string, string, error) {
	switch kind {
	case domain.KindClient:
		return "clients", "client_aliases", nil
	case domain.KindProduct:
		return "products", "product_aliases", nil
	default:
		return "", "", domain.WrapError(domain.ErrInvalidInput, "registry tables", fmt.Errorf("unsupported entity kind %q", kind))
	}
}
