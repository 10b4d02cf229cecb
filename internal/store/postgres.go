package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/gavriccccc-tech/skinfolio/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the tables if they do not exist. Idempotent,
// run once at startup.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS trades (
			id            TEXT PRIMARY KEY,
			ts            TIMESTAMPTZ NOT NULL,
			game          TEXT NOT NULL,
			item          TEXT NOT NULL,
			op            TEXT NOT NULL,
			quantity      BIGINT NOT NULL,
			price         NUMERIC NOT NULL,
			order_fill_id TEXT NOT NULL DEFAULT '',
			seq           BIGSERIAL
		);
		CREATE INDEX IF NOT EXISTS trades_game_item_idx ON trades (game, item, ts);

		CREATE TABLE IF NOT EXISTS orders (
			id              TEXT PRIMARY KEY,
			created_at      TIMESTAMPTZ NOT NULL,
			completed_at    TIMESTAMPTZ,
			game            TEXT NOT NULL,
			item            TEXT NOT NULL,
			side            TEXT NOT NULL,
			target_price    NUMERIC NOT NULL,
			target_quantity BIGINT NOT NULL,
			filled_quantity BIGINT NOT NULL,
			status          TEXT NOT NULL,
			notes           TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS order_fills (
			id        TEXT PRIMARY KEY,
			order_id  TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
			filled_at TIMESTAMPTZ NOT NULL,
			quantity  BIGINT NOT NULL,
			price     NUMERIC NOT NULL,
			notes     TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS price_history (
			game     TEXT NOT NULL,
			item     TEXT NOT NULL,
			day      DATE NOT NULL,
			price    NUMERIC NOT NULL,
			source   TEXT NOT NULL,
			observed TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (game, item, day)
		);
	`)
	return err
}

func (s *PostgresStore) InsertTrade(ctx context.Context, rec *model.TradeRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO trades (id, ts, game, item, op, quantity, price, order_fill_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::NUMERIC, $8)`,
		rec.ID, rec.Timestamp, rec.Game, rec.Item, string(rec.Op),
		rec.Quantity, rec.Price.String(), rec.OrderFillID,
	)
	return err
}

func (s *PostgresStore) DeleteTrade(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM trades WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteTradeByFill(ctx context.Context, fillID string) error {
	if fillID == "" {
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM trades WHERE order_fill_id = $1`, fillID)
	return err
}

func (s *PostgresStore) ListTrades(ctx context.Context) ([]model.TradeRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, ts, game, item, op, quantity, price::TEXT, order_fill_id
		 FROM trades ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []model.TradeRecord
	for rows.Next() {
		var t model.TradeRecord
		var op, priceS string
		if err := rows.Scan(&t.ID, &t.Timestamp, &t.Game, &t.Item, &op,
			&t.Quantity, &priceS, &t.OrderFillID); err != nil {
			return nil, err
		}
		t.Op = model.Op(op)
		t.Price, _ = decimal.NewFromString(priceS)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func (s *PostgresStore) InsertOrder(ctx context.Context, o *model.Order) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO orders (id, created_at, completed_at, game, item, side,
		                     target_price, target_quantity, filled_quantity, status, notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::NUMERIC, $8, $9, $10, $11)`,
		o.ID, o.CreatedAt, o.CompletedAt, o.Game, o.Item, string(o.Side),
		o.TargetPrice.String(), o.TargetQuantity, o.FilledQuantity, o.Status, o.Notes,
	)
	return err
}

func (s *PostgresStore) UpdateOrder(ctx context.Context, o *model.Order) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE orders
		 SET completed_at = $2, target_price = $3::NUMERIC, target_quantity = $4,
		     filled_quantity = $5, status = $6, notes = $7
		 WHERE id = $1`,
		o.ID, o.CompletedAt, o.TargetPrice.String(), o.TargetQuantity,
		o.FilledQuantity, o.Status, o.Notes,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	// Fills are replaced wholesale: the set is small and this keeps the
	// order row and its fills consistent in one transaction.
	if _, err := tx.Exec(ctx, `DELETE FROM order_fills WHERE order_id = $1`, o.ID); err != nil {
		return err
	}
	for _, f := range o.Fills {
		if _, err := tx.Exec(ctx,
			`INSERT INTO order_fills (id, order_id, filled_at, quantity, price, notes)
			 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6)`,
			f.ID, o.ID, f.FilledAt, f.Quantity, f.Price.String(), f.Notes,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	o, err := s.scanOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.loadFills(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *PostgresStore) DeleteOrder(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListOrders(ctx context.Context) ([]model.Order, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, created_at, completed_at, game, item, side,
		        target_price::TEXT, target_quantity, filled_quantity, status, notes
		 FROM orders ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrderRow(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		if err := s.loadFills(ctx, &orders[i]); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (s *PostgresStore) UpsertPricePoint(ctx context.Context, p model.PricePoint) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO price_history (game, item, day, price, source, observed)
		 VALUES ($1, $2, $3::DATE, $4::NUMERIC, $5, $6)
		 ON CONFLICT (game, item, day)
		 DO UPDATE SET price = EXCLUDED.price, source = EXCLUDED.source,
		               observed = EXCLUDED.observed`,
		p.Game, p.Item, p.Observed.UTC().Format("2006-01-02"),
		p.Price.String(), p.Source, p.Observed,
	)
	return err
}

func (s *PostgresStore) ListPricePoints(ctx context.Context, game, item string) ([]model.PricePoint, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT game, item, price::TEXT, source, observed
		 FROM price_history WHERE game = $1 AND item = $2
		 ORDER BY observed DESC`, game, item)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

func (s *PostgresStore) ListAllPricePoints(ctx context.Context) ([]model.PricePoint, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT game, item, price::TEXT, source, observed
		 FROM price_history ORDER BY observed`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

// --- scan helpers ---

func (s *PostgresStore) scanOrder(ctx context.Context, id string) (*model.Order, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, created_at, completed_at, game, item, side,
		        target_price::TEXT, target_quantity, filled_quantity, status, notes
		 FROM orders WHERE id = $1`, id)
	o, err := scanOrderRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	return o, nil
}

// rowScanner covers both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrderRow(row rowScanner) (*model.Order, error) {
	var o model.Order
	var side, priceS string
	var completed *time.Time
	if err := row.Scan(&o.ID, &o.CreatedAt, &completed, &o.Game, &o.Item, &side,
		&priceS, &o.TargetQuantity, &o.FilledQuantity, &o.Status, &o.Notes); err != nil {
		return nil, err
	}
	o.Side = model.Op(side)
	o.CompletedAt = completed
	o.TargetPrice, _ = decimal.NewFromString(priceS)
	return &o, nil
}

func (s *PostgresStore) loadFills(ctx context.Context, o *model.Order) error {
	rows, err := s.pool.Query(ctx,
		`SELECT id, filled_at, quantity, price::TEXT, notes
		 FROM order_fills WHERE order_id = $1 ORDER BY filled_at`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var f model.OrderFill
		var priceS string
		if err := rows.Scan(&f.ID, &f.FilledAt, &f.Quantity, &priceS, &f.Notes); err != nil {
			return err
		}
		f.Price, _ = decimal.NewFromString(priceS)
		o.Fills = append(o.Fills, f)
	}
	return rows.Err()
}

func scanPricePoints(rows pgx.Rows) ([]model.PricePoint, error) {
	var points []model.PricePoint
	for rows.Next() {
		var p model.PricePoint
		var priceS string
		if err := rows.Scan(&p.Game, &p.Item, &priceS, &p.Source, &p.Observed); err != nil {
			return nil, err
		}
		p.Price, _ = decimal.NewFromString(priceS)
		points = append(points, p)
	}
	return points, rows.Err()
}
