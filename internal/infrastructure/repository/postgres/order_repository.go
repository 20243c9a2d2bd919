package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sergiocoding96/order-pipeline/internal/core/domain"
)

// OrderRepository persists extracted orders: one header row plus one row per
// line item, in a single transaction.
type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083102)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS orders (
	id TEXT PRIMARY KEY,
	item_id TEXT NOT NULL,
	order_number TEXT,
	customer TEXT,
	customer_code TEXT,
	customer_match_status TEXT,
	customer_match_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	order_date TEXT,
	total DOUBLE PRECISION NOT NULL DEFAULT 0,
	note TEXT,
	method TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS order_lines (
	order_id TEXT NOT NULL REFERENCES orders(id),
	position INT NOT NULL,
	name TEXT NOT NULL,
	product_code TEXT,
	unit TEXT,
	quantity DOUBLE PRECISION NOT NULL DEFAULT 0,
	unit_price DOUBLE PRECISION NOT NULL DEFAULT 0,
	total DOUBLE PRECISION NOT NULL DEFAULT 0,
	match_status TEXT,
	match_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	PRIMARY KEY (order_id, position)
);

CREATE INDEX IF NOT EXISTS idx_orders_item_id ON orders(item_id);
CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *OrderRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin order tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
INSERT INTO orders (
	id, item_id, order_number, customer, customer_code, customer_match_status,
	customer_match_confidence, order_date, total, note, method, confidence, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
`,
		order.ID, order.ItemID, order.OrderNumber, order.Customer, order.CustomerCode,
		string(order.CustomerMatch.Status), order.CustomerMatch.Confidence,
		order.Date, order.Total, order.Note, order.Method, order.Confidence, order.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i, line := range order.LineItems {
		_, err = tx.ExecContext(ctx, `
INSERT INTO order_lines (
	order_id, position, name, product_code, unit, quantity, unit_price, total, match_status, match_confidence
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
			order.ID, i+1, line.Name, line.Code, line.Unit, line.Quantity, line.UnitPrice,
			line.Total, string(line.Match.Status), line.Match.Confidence,
		)
		if err != nil {
			return fmt.Errorf("insert order line %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order tx: %w", err)
	}
	return nil
}
