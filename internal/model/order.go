package model

import "time"

// 订单状态流转: pending → scheduled → in_progress → completed
const (
	OrderStatusPending    = "pending"
	OrderStatusScheduled  = "scheduled"
	OrderStatusInProgress = "in_progress"
	OrderStatusCompleted  = "completed"
)

// Order 生产订单表 — 对应 orders
type Order struct {
	OrderID   string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"order_id"`
	ProductID string    `gorm:"type:uuid;not null"                             json:"product_id"`
	Quantity  int       `gorm:"not null"                                       json:"quantity"`
	DueDate   time.Time `gorm:"type:date;not null"                             json:"due_date"`
	Status    string    `gorm:"type:varchar(20);not null;default:'pending'"    json:"status"`
	BaseModel

	// 关联
	Product *Product `gorm:"foreignKey:ProductID;references:ProductID" json:"product,omitempty"`
}

func (Order) TableName() string { return "orders" }

// IsOpen 订单是否仍在排产/生产中（风险与产能分析的统计口径）
func (o *Order) IsOpen() bool {
	return o.Status == OrderStatusPending ||
		o.Status == OrderStatusScheduled ||
		o.Status == OrderStatusInProgress
}
