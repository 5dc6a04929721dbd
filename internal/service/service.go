package service

import (
	"go.uber.org/zap"

	"shopfloor/backend/config"
	"shopfloor/backend/internal/repository"
	"shopfloor/backend/pkg/redis"
)

// Service 所有业务服务的聚合入口
type Service struct {
	Schedule   ScheduleService
	Capacity   CapacityService
	Production ProductionService
	Worker     WorkerService
	Calendar   CalendarService
	Export     ExportService
}

// NewService 创建 Service 聚合；rdb 可为 nil（单实例部署）
func NewService(cfg *config.Config, repo *repository.Repository, rdb *redis.Client, logger *zap.Logger) *Service {
	return &Service{
		Schedule:   NewScheduleService(cfg, repo, rdb, logger),
		Capacity:   NewCapacityService(cfg, repo, logger),
		Production: NewProductionService(cfg, repo, logger),
		Worker:     NewWorkerService(repo, cfg.Scheduling.DefaultProficiency, logger),
		Calendar:   NewCalendarService(repo, logger),
		Export:     NewExportService(repo, logger),
	}
}
