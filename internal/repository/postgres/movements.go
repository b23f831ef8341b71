package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/domain"
)

type inventoryMovementRepository struct {
	db     DBTX
	logger *zap.Logger
}

// NewInventoryMovementRepository creates a new inventory movement repository.
// Movements are append-only; there is no update or delete.
func NewInventoryMovementRepository(db DBTX, logger *zap.Logger) *inventoryMovementRepository {
	return &inventoryMovementRepository{
		db:     db,
		logger: logger,
	}
}

func (r *inventoryMovementRepository) Create(ctx context.Context, m *domain.InventoryMovement) error {
	query := `
		INSERT INTO inventory_movements (id, product_id, user_id, order_id, quantity, type, reason, stock_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.CreatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		m.ID,
		m.ProductID,
		m.UserID,
		m.OrderID,
		m.Quantity,
		m.Kind,
		m.Reason,
		m.StockAfter,
		m.CreatedAt,
	)

	if err != nil {
		r.logger.Error("Failed to create inventory movement", zap.String("product_id", m.ProductID.String()), zap.Error(err))
		return err
	}

	return nil
}

func (r *inventoryMovementRepository) ListByProductID(ctx context.Context, productID uuid.UUID, limit int) ([]*domain.InventoryMovement, error) {
	query := `
		SELECT id, product_id, user_id, order_id, quantity, type, reason, stock_after, created_at
		FROM inventory_movements
		WHERE product_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, productID, limit)
	if err != nil {
		r.logger.Error("Failed to query inventory movements", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	movements := []*domain.InventoryMovement{}
	for rows.Next() {
		var m domain.InventoryMovement
		var userID, orderID uuid.NullUUID
		var reason sql.NullString

		if err := rows.Scan(
			&m.ID,
			&m.ProductID,
			&userID,
			&orderID,
			&m.Quantity,
			&m.Kind,
			&reason,
			&m.StockAfter,
			&m.CreatedAt,
		); err != nil {
			r.logger.Error("Failed to scan inventory movement", zap.Error(err))
			return nil, err
		}

		m.UserID = uuidPtr(userID)
		m.OrderID = uuidPtr(orderID)
		m.Reason = stringPtr(reason)
		movements = append(movements, &m)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Failed to iterate inventory movements", zap.Error(err))
		return nil, err
	}

	return movements, nil
}

type orderEventRepository struct {
	db     DBTX
	logger *zap.Logger
}

// NewOrderEventRepository creates a new order event repository
func NewOrderEventRepository(db DBTX, logger *zap.Logger) *orderEventRepository {
	return &orderEventRepository{
		db:     db,
		logger: logger,
	}
}

func (r *orderEventRepository) Create(ctx context.Context, event *domain.OrderEvent) error {
	query := `
		INSERT INTO order_events (id, order_id, event_type, event_data, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.CreatedAt = time.Now()

	data, err := json.Marshal(event.EventData)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, event.ID, event.OrderID, event.EventType, data, event.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to create order event", zap.Error(err))
		return err
	}

	return nil
}
