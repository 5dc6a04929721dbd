package repository

import (
	"context"

	"gorm.io/gorm"

	"shopfloor/backend/internal/model"
)

// OrderRepository 订单数据访问接口
type OrderRepository interface {
	GetByID(ctx context.Context, id string) (*model.Order, error)
	ListOpen(ctx context.Context) ([]model.Order, error)
	UpdateStatus(ctx context.Context, id, status string) error
}

type orderRepo struct {
	db *gorm.DB
}

func NewOrderRepo(db *gorm.DB) OrderRepository {
	return &orderRepo{db: db}
}

func (r *orderRepo) GetByID(ctx context.Context, id string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("order_id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepo) ListOpen(ctx context.Context) ([]model.Order, error) {
	var orders []model.Order
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("status IN ?", []string{
			model.OrderStatusPending,
			model.OrderStatusScheduled,
			model.OrderStatusInProgress,
		}).
		Order("due_date ASC, order_id ASC").
		Find(&orders).Error
	return orders, err
}

func (r *orderRepo) UpdateStatus(ctx context.Context, id, status string) error {
	return r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("order_id = ?", id).
		Update("status", status).Error
}
