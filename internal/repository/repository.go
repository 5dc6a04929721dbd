package repository

import "gorm.io/gorm"

// Repository 所有 Repository 的聚合入口
type Repository struct {
	Product  ProductRepository
	Order    OrderRepository
	Schedule ScheduleRepository
	Worker   WorkerRepository
	Holiday  HolidayRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Product:  NewProductRepo(db),
		Order:    NewOrderRepo(db),
		Schedule: NewScheduleRepo(db),
		Worker:   NewWorkerRepo(db),
		Holiday:  NewHolidayRepo(db),
	}
}
