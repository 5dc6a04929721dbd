package dto

// ── 产能与风险分析 DTO ──
// 三项分析均为只读投影，随时可重算，不修改任何状态。

// DeadlineRisk 交期风险：剩余工时能否在交期前完成
type DeadlineRisk struct {
	OrderID        string  `json:"order_id"`
	ProductName    string  `json:"product_name"`
	Quantity       int     `json:"quantity"`
	DueDate        string  `json:"due_date"`
	DaysToDue      int     `json:"days_to_due"`
	RequiredHours  float64 `json:"required_hours"`
	AvailableHours float64 `json:"available_hours"`
	CanMeet        bool    `json:"can_meet"`
	ShortfallHours float64 `json:"shortfall_hours"`
}

// OvertimeProjection 单日加班预测
type OvertimeProjection struct {
	Date           string  `json:"date"`
	RequiredHours  float64 `json:"required_hours"`
	AvailableHours float64 `json:"available_hours"`
	OvertimeHours  float64 `json:"overtime_hours"`
}

// WeeklyCapacity 单周产能汇总
type WeeklyCapacity struct {
	WeekStart      string  `json:"week_start"`
	WeekEnd        string  `json:"week_end"`
	RequiredHours  float64 `json:"required_hours"`
	AvailableHours float64 `json:"available_hours"`
}

// CapacityAnalysis 多周产能分析
type CapacityAnalysis struct {
	Weeks              []WeeklyCapacity `json:"weeks"`
	TotalRequired      float64          `json:"total_required"`
	TotalAvailable     float64          `json:"total_available"`
	UtilizationPercent float64          `json:"utilization_percent"` // 可超过 100
}
