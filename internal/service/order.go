package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"minishop/internal/model"
)

var ErrStatusFinal = errors.New("order status is already final")

type OrderService struct {
	db *sql.DB
}

func NewOrderService(db *sql.DB) *OrderService {
	return &OrderService{db: db}
}

type CheckoutInput struct {
	ProductTitle  string
	Price         string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	TgUsername    string
	SourceTag     string
}

// Create records a new checkout submission. Ids are random uuids, so a
// cleared-cache resubmission always produces a new order identity.
func (s *OrderService) Create(ctx context.Context, in CheckoutInput) (*model.Order, error) {
	o := &model.Order{
		ID:            uuid.NewString(),
		ProductTitle:  in.ProductTitle,
		Price:         in.Price,
		CustomerName:  in.CustomerName,
		CustomerEmail: in.CustomerEmail,
		CustomerPhone: in.CustomerPhone,
		TgUsername:    in.TgUsername,
		SourceTag:     in.SourceTag,
		Status:        model.StatusPending,
		CreatedAt:     time.Now(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (id, product_title, price, customer_name, customer_email, customer_phone, tg_username, source_tag, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, o.ID, o.ProductTitle, o.Price, o.CustomerName, o.CustomerEmail, o.CustomerPhone, o.TgUsername, o.SourceTag, o.Status, o.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	return o, nil
}

func (s *OrderService) List(ctx context.Context) ([]model.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_title, price, customer_name, customer_email, customer_phone, tg_username, source_tag, status, created_at
		FROM orders
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		var o model.Order
		if err := rows.Scan(&o.ID, &o.ProductTitle, &o.Price, &o.CustomerName, &o.CustomerEmail, &o.CustomerPhone, &o.TgUsername, &o.SourceTag, &o.Status, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return orders, nil
}

// SetStatus moves a pending order to a terminal status. The WHERE clause
// enforces write-once semantics at the persistence layer: a paid or failed
// order is never rewritten, whoever asks.
func (s *OrderService) SetStatus(ctx context.Context, id string, status model.OrderStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = $1 WHERE id = $2 AND status = $3`,
		status, id, model.StatusPending,
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		var current model.OrderStatus
		err := s.db.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1`, id).Scan(&current)
		if err == nil && current.Terminal() {
			return ErrStatusFinal
		}
		return fmt.Errorf("order %s not found", id)
	}
	return nil
}

// Import persists an order the sheet knows about but this client never
// created (placed through another device). Existing rows are left alone.
func (s *OrderService) Import(ctx context.Context, o model.Order) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (id, product_title, price, customer_name, customer_email, customer_phone, tg_username, source_tag, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`, o.ID, o.ProductTitle, o.Price, o.CustomerName, o.CustomerEmail, o.CustomerPhone, o.TgUsername, o.SourceTag, o.Status, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("import order: %w", err)
	}
	return nil
}

// NotifiedIDs loads the set of orders that already triggered an archive
// notification. Loaded once per reconciliation tick for O(1) membership.
func (s *OrderService) NotifiedIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT order_id FROM notified_orders`)
	if err != nil {
		return nil, fmt.Errorf("query notified set: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan notified id: %w", err)
		}
		ids[id] = struct{}{}
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return ids, nil
}

func (s *OrderService) MarkNotified(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notified_orders (order_id, notified_at) VALUES ($1, $2) ON CONFLICT (order_id) DO NOTHING`,
		id, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	return nil
}

// PruneNotified drops markers old enough that their order can no longer
// re-enter the failed transition, keeping the set from growing forever.
func (s *OrderService) PruneNotified(ctx context.Context, before time.Time) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM notified_orders WHERE notified_at < $1`, before)
	if err != nil {
		return fmt.Errorf("prune notified set: %w", err)
	}
	return nil
}
