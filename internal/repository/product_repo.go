package repository

import (
	"context"

	"gorm.io/gorm"

	"shopfloor/backend/internal/model"
)

// ProductRepository 产品数据访问接口
type ProductRepository interface {
	GetByID(ctx context.Context, id string) (*model.Product, error)
	List(ctx context.Context) ([]model.Product, error)
	ListSteps(ctx context.Context, productID string) ([]model.ProductStep, error)
}

type productRepo struct {
	db *gorm.DB
}

func NewProductRepo(db *gorm.DB) ProductRepository {
	return &productRepo{db: db}
}

func (r *productRepo) GetByID(ctx context.Context, id string) (*model.Product, error) {
	var product model.Product
	err := r.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence ASC")
		}).
		Preload("Steps.Equipment").
		Where("product_id = ?", id).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepo) List(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).
		Order("name ASC, version_number ASC").
		Find(&products).Error
	return products, err
}

func (r *productRepo) ListSteps(ctx context.Context, productID string) ([]model.ProductStep, error) {
	var steps []model.ProductStep
	err := r.db.WithContext(ctx).
		Preload("Equipment").
		Where("product_id = ?", productID).
		Order("sequence ASC").
		Find(&steps).Error
	return steps, err
}
