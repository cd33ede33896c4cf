package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists orders in postgres. Cart mutations lock the
// pending order row with SELECT ... FOR UPDATE so the check-then-write
// sequence is serialized per order, and every mutation runs inside one
// transaction so totals and items change together.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("failed to rollback tx: %w", rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit tx: %w", err)
	}
	return nil
}

const orderColumns = `id, user_id, status, total_amount, total_items, paid, paid_at, stripe_charge_id, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.UserID, &o.Status, &o.TotalAmount, &o.TotalItems,
		&o.Paid, &o.PaidAt, &o.StripeChargeID, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

// lockPendingOrder selects the user's pending order FOR UPDATE inside tx.
func lockPendingOrder(ctx context.Context, tx pgx.Tx, userID string) (Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE user_id = $1 AND status = 'pending'
		FOR UPDATE
	`
	order, err := scanOrder(tx.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNoPendingOrder
		}
		return Order{}, fmt.Errorf("failed to query pending order: %w", err)
	}
	return order, nil
}

func orderItems(ctx context.Context, q interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, orderID string) ([]OrderItem, error) {
	query := `
		SELECT id, order_id, product_id, quantity, price, created_at, updated_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at
	`
	rows, err := q.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.Price,
			&it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) FindPendingOrder(ctx context.Context, userID string) (Order, []OrderItem, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE user_id = $1 AND status = 'pending'
	`
	order, err := scanOrder(s.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, nil, ErrNoPendingOrder
		}
		return Order{}, nil, fmt.Errorf("failed to query pending order: %w", err)
	}

	items, err := orderItems(ctx, s.pool, order.ID)
	if err != nil {
		return Order{}, nil, err
	}
	return order, items, nil
}

func (s *PostgresStore) AddItem(ctx context.Context, userID, productID string, quantity int, unitPrice int64) (Order, []OrderItem, error) {
	var order Order
	var items []OrderItem

	err := s.withTx(ctx, func(tx pgx.Tx) error {
		order2, err := lockPendingOrder(ctx, tx, userID)
		if errors.Is(err, ErrNoPendingOrder) {
			// first add for this user: create the cart with its single item
			queryCreate := `
				INSERT INTO orders (id, user_id, status, total_amount, total_items, created_at, updated_at)
				VALUES ($1, $2, 'pending', $3, $4, NOW(), NOW())
				RETURNING ` + orderColumns + `
			`
			lineTotal := unitPrice * int64(quantity)
			order2, err = scanOrder(tx.QueryRow(ctx, queryCreate, uuid.NewString(), userID, lineTotal, quantity))
			if err != nil {
				var pgErr *pgconn.PgError
				// unique pending-order index lost the race to a concurrent add
				if errors.As(err, &pgErr) && pgErr.Code == "23505" {
					return fmt.Errorf("%w: user %s", ErrConcurrentCart, userID)
				}
				return fmt.Errorf("failed to create order: %w", err)
			}

			queryItem := `
				INSERT INTO order_items (id, order_id, product_id, quantity, price, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
			`
			if _, err := tx.Exec(ctx, queryItem, uuid.NewString(), order2.ID, productID, quantity, unitPrice); err != nil {
				return fmt.Errorf("failed to insert order item: %w", err)
			}
		} else if err != nil {
			return err
		} else {
			var exists bool
			queryDup := `SELECT EXISTS (SELECT 1 FROM order_items WHERE order_id = $1 AND product_id = $2)`
			if err := tx.QueryRow(ctx, queryDup, order2.ID, productID).Scan(&exists); err != nil {
				return fmt.Errorf("failed to check for duplicate item: %w", err)
			}
			if exists {
				return ErrDuplicateItem
			}

			queryItem := `
				INSERT INTO order_items (id, order_id, product_id, quantity, price, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
			`
			if _, err := tx.Exec(ctx, queryItem, uuid.NewString(), order2.ID, productID, quantity, unitPrice); err != nil {
				return fmt.Errorf("failed to insert order item: %w", err)
			}

			queryTotals := `
				UPDATE orders
				SET total_amount = total_amount + $1, total_items = total_items + $2, updated_at = NOW()
				WHERE id = $3
				RETURNING ` + orderColumns + `
			`
			order2, err = scanOrder(tx.QueryRow(ctx, queryTotals, unitPrice*int64(quantity), quantity, order2.ID))
			if err != nil {
				return fmt.Errorf("failed to update order totals: %w", err)
			}
		}

		items2, err := orderItems(ctx, tx, order2.ID)
		if err != nil {
			return err
		}
		order, items = order2, items2
		return nil
	})
	if err != nil {
		return Order{}, nil, err
	}
	return order, items, nil
}

func (s *PostgresStore) RemoveItem(ctx context.Context, userID, productID string) (Order, OrderItem, error) {
	var order Order
	var removed OrderItem

	err := s.withTx(ctx, func(tx pgx.Tx) error {
		order2, err := lockPendingOrder(ctx, tx, userID)
		if err != nil {
			return err
		}

		queryDelete := `
			DELETE FROM order_items
			WHERE order_id = $1 AND product_id = $2
			RETURNING id, order_id, product_id, quantity, price, created_at, updated_at
		`
		err = tx.QueryRow(ctx, queryDelete, order2.ID, productID).Scan(
			&removed.ID, &removed.OrderID, &removed.ProductID, &removed.Quantity,
			&removed.Price, &removed.CreatedAt, &removed.UpdatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrItemNotFound
			}
			return fmt.Errorf("failed to delete order item: %w", err)
		}

		queryTotals := `
			UPDATE orders
			SET total_amount = total_amount - $1, total_items = total_items - $2, updated_at = NOW()
			WHERE id = $3
			RETURNING ` + orderColumns + `
		`
		order, err = scanOrder(tx.QueryRow(ctx, queryTotals, removed.LineTotal(), removed.Quantity, order2.ID))
		if err != nil {
			return fmt.Errorf("failed to update order totals: %w", err)
		}
		return nil
	})
	if err != nil {
		return Order{}, OrderItem{}, err
	}
	return order, removed, nil
}

func (s *PostgresStore) UpdateItemQuantity(ctx context.Context, userID, productID string, newQuantity int) (Order, []OrderItem, error) {
	var order Order
	var items []OrderItem

	err := s.withTx(ctx, func(tx pgx.Tx) error {
		order2, err := lockPendingOrder(ctx, tx, userID)
		if err != nil {
			return err
		}

		// diffs are computed against the row state under the order lock so a
		// concurrent update cannot work from the same snapshot
		var itemID string
		var oldQuantity int
		var unitPrice int64
		queryItem := `
			SELECT id, quantity, price
			FROM order_items
			WHERE order_id = $1 AND product_id = $2
		`
		err = tx.QueryRow(ctx, queryItem, order2.ID, productID).Scan(&itemID, &oldQuantity, &unitPrice)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrItemNotFound
			}
			return fmt.Errorf("failed to query order item: %w", err)
		}

		quantityDiff := newQuantity - oldQuantity
		amountDiff := unitPrice * int64(quantityDiff)

		queryUpdate := `
			UPDATE order_items
			SET quantity = $1, updated_at = NOW()
			WHERE id = $2
		`
		if _, err := tx.Exec(ctx, queryUpdate, newQuantity, itemID); err != nil {
			return fmt.Errorf("failed to update order item: %w", err)
		}

		queryTotals := `
			UPDATE orders
			SET total_amount = total_amount + $1, total_items = total_items + $2, updated_at = NOW()
			WHERE id = $3
			RETURNING ` + orderColumns + `
		`
		order2, err = scanOrder(tx.QueryRow(ctx, queryTotals, amountDiff, quantityDiff, order2.ID))
		if err != nil {
			return fmt.Errorf("failed to update order totals: %w", err)
		}

		items2, err := orderItems(ctx, tx, order2.ID)
		if err != nil {
			return err
		}
		order, items = order2, items2
		return nil
	})
	if err != nil {
		return Order{}, nil, err
	}
	return order, items, nil
}

func (s *PostgresStore) MarkPaid(ctx context.Context, orderID, paymentID, receiptURL string) (Order, bool, error) {
	var order Order
	var alreadyPaid bool

	err := s.withTx(ctx, func(tx pgx.Tx) error {
		query := `
			SELECT ` + orderColumns + `
			FROM orders
			WHERE id = $1
			FOR UPDATE
		`
		order2, err := scanOrder(tx.QueryRow(ctx, query, orderID))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("failed to query order: %w", err)
		}

		if order2.Paid {
			order, alreadyPaid = order2, true
			return nil
		}

		// the receipt insert claims the payment id; losing the claim means a
		// redelivered event was already reconciled, possibly against another
		// order, and this one must not be marked paid
		queryReceipt := `
			INSERT INTO receipts (payment_id, order_id, receipt_url, created_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (payment_id) DO NOTHING
		`
		tag, err := tx.Exec(ctx, queryReceipt, paymentID, orderID, receiptURL)
		if err != nil {
			return fmt.Errorf("failed to insert receipt: %w", err)
		}
		if tag.RowsAffected() == 0 {
			order, alreadyPaid = order2, true
			return nil
		}

		queryPaid := `
			UPDATE orders
			SET status = 'paid', paid = TRUE, paid_at = NOW(), stripe_charge_id = $1, updated_at = NOW()
			WHERE id = $2
			RETURNING ` + orderColumns + `
		`
		order2, err = scanOrder(tx.QueryRow(ctx, queryPaid, paymentID, orderID))
		if err != nil {
			return fmt.Errorf("failed to mark order paid: %w", err)
		}

		order = order2
		return nil
	})
	if err != nil {
		return Order{}, false, err
	}
	return order, alreadyPaid, nil
}

func (s *PostgresStore) GetOrder(ctx context.Context, orderID string) (Order, []OrderItem, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	order, err := scanOrder(s.pool.QueryRow(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, nil, ErrOrderNotFound
		}
		return Order{}, nil, fmt.Errorf("failed to query order: %w", err)
	}

	items, err := orderItems(ctx, s.pool, order.ID)
	if err != nil {
		return Order{}, nil, err
	}
	return order, items, nil
}

func (s *PostgresStore) ListOrders(ctx context.Context, status string, page, limit int) (int, []Order, error) {
	var total int
	var args []any
	queryCount := `SELECT COUNT(*) FROM orders`
	if status != "" {
		queryCount += ` WHERE status = $1`
		args = append(args, status)
	}
	if err := s.pool.QueryRow(ctx, queryCount, args...).Scan(&total); err != nil {
		return 0, nil, fmt.Errorf("failed to count orders: %w", err)
	}

	queryList := `SELECT ` + orderColumns + ` FROM orders`
	if status != "" {
		queryList += ` WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		args = append(args, limit, (page-1)*limit)
	} else {
		queryList += ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`
		args = append(args, limit, (page-1)*limit)
	}

	rows, err := s.pool.Query(ctx, queryList, args...)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	out := make([]Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to scan order: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("error iterating orders: %w", err)
	}
	return total, out, nil
}

func (s *PostgresStore) ListReceipts(ctx context.Context, page, limit int) (int, []Receipt, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM receipts`).Scan(&total); err != nil {
		return 0, nil, fmt.Errorf("failed to count receipts: %w", err)
	}

	query := `
		SELECT payment_id, order_id, receipt_url, created_at
		FROM receipts
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := s.pool.Query(ctx, query, limit, (page-1)*limit)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to query receipts: %w", err)
	}
	defer rows.Close()

	out := make([]Receipt, 0)
	for rows.Next() {
		var r Receipt
		if err := rows.Scan(&r.PaymentID, &r.OrderID, &r.ReceiptURL, &r.CreatedAt); err != nil {
			return 0, nil, fmt.Errorf("failed to scan receipt: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("error iterating receipts: %w", err)
	}
	return total, out, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, orderID, status string) (Order, error) {
	var order Order
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		query := `
			SELECT ` + orderColumns + `
			FROM orders
			WHERE id = $1
			FOR UPDATE
		`
		current, err := scanOrder(tx.QueryRow(ctx, query, orderID))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("failed to query order: %w", err)
		}

		if current.Status == status {
			order = current
			return nil
		}
		if current.Paid && status == StatusPending {
			return ErrPaidOrder
		}

		queryUpdate := `
			UPDATE orders
			SET status = $1, updated_at = NOW()
			WHERE id = $2
			RETURNING ` + orderColumns + `
		`
		order, err = scanOrder(tx.QueryRow(ctx, queryUpdate, status, orderID))
		if err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	return order, nil
}
