package handler

import "shopfloor/backend/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Schedule   *ScheduleHandler
	Capacity   *CapacityHandler
	Production *ProductionHandler
	Worker     *WorkerHandler
	Calendar   *CalendarHandler
	Export     *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Schedule:   NewScheduleHandler(svc.Schedule),
		Capacity:   NewCapacityHandler(svc.Capacity),
		Production: NewProductionHandler(svc.Production),
		Worker:     NewWorkerHandler(svc.Worker),
		Calendar:   NewCalendarHandler(svc.Calendar),
		Export:     NewExportHandler(svc.Export),
	}
}
