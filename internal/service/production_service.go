package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"shopfloor/backend/config"
	"shopfloor/backend/internal/dto"
	"shopfloor/backend/internal/model"
	"shopfloor/backend/internal/repository"
)

// ── 报工模块业务错误 ──

var (
	ErrEntryNotFound         = errors.New("排程项不存在")
	ErrEntryAlreadyStarted   = errors.New("排程项已开工")
	ErrEntryAlreadyCompleted = errors.New("排程项已完工")
	ErrEntryNotStarted       = errors.New("排程项尚未开工")
	ErrInvalidActualTime     = errors.New("实际时间不合法")
)

// ProductionService 生产报工接口。
// 完工报工触发效率反馈回路：efficiency = 期望工时/实际工时 × 100，
// 按工人滚动窗口均值越过阈值时自动升降熟练度（1–5，只追加历史）。
type ProductionService interface {
	// RecordStart 开工报工：写入实际开工时间，订单首次开工时置为 in_progress
	RecordStart(ctx context.Context, entryID string, req *dto.RecordStartRequest) (*dto.EntryResponse, error)
	// RecordCompletion 完工报工：写入实际产量/完工时间并执行效率反馈
	RecordCompletion(ctx context.Context, entryID string, req *dto.RecordCompletionRequest) (*dto.RecordCompletionResponse, error)
}

type productionService struct {
	cfg    *config.Config
	repo   *repository.Repository
	logger *zap.Logger

	// (worker_id, step_id) 粒度互斥，防止并发完工丢失熟练度更新
	pairLocks sync.Map // "worker:step" → *sync.Mutex
}

func NewProductionService(cfg *config.Config, repo *repository.Repository, logger *zap.Logger) ProductionService {
	return &productionService{cfg: cfg, repo: repo, logger: logger}
}

// ── 开工 ──

func (s *productionService) RecordStart(ctx context.Context, entryID string, req *dto.RecordStartRequest) (*dto.EntryResponse, error) {
	entry, err := s.getEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.ActualStartTime != nil {
		return nil, ErrEntryAlreadyStarted
	}

	startTime, err := time.Parse(time.RFC3339, req.ActualStartTime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidActualTime, err)
	}

	entry.ActualStartTime = &startTime
	if err := s.repo.Schedule.UpdateEntryActuals(ctx, entry); err != nil {
		s.logger.Error("写入开工时间失败", zap.String("entry_id", entryID), zap.Error(err))
		return nil, fmt.Errorf("写入开工时间失败: %w", err)
	}

	// 订单首次开工：scheduled → in_progress
	if entry.Schedule != nil {
		order, err := s.repo.Order.GetByID(ctx, entry.Schedule.OrderID)
		if err == nil && order.Status == model.OrderStatusScheduled {
			if err := s.repo.Order.UpdateStatus(ctx, order.OrderID, model.OrderStatusInProgress); err != nil {
				s.logger.Warn("更新订单状态失败", zap.String("order_id", order.OrderID), zap.Error(err))
			}
		}
	}

	resp := entryToResponse(entry)
	return &resp, nil
}

// ── 完工 + 效率反馈 ──

func (s *productionService) RecordCompletion(ctx context.Context, entryID string, req *dto.RecordCompletionRequest) (*dto.RecordCompletionResponse, error) {
	entry, err := s.getEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.ActualStartTime == nil {
		return nil, ErrEntryNotStarted
	}
	if entry.Status() == model.EntryStatusCompleted {
		return nil, ErrEntryAlreadyCompleted
	}

	endTime, err := time.Parse(time.RFC3339, req.ActualEndTime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidActualTime, err)
	}
	if !endTime.After(*entry.ActualStartTime) {
		return nil, fmt.Errorf("%w: 完工时间必须晚于开工时间", ErrInvalidActualTime)
	}

	entry.ActualEndTime = &endTime
	entry.ActualOutput = &req.ActualOutput
	if err := s.repo.Schedule.UpdateEntryActuals(ctx, entry); err != nil {
		s.logger.Error("写入完工数据失败", zap.String("entry_id", entryID), zap.Error(err))
		return nil, fmt.Errorf("写入完工数据失败: %w", err)
	}

	// 效率 = 期望工时 / 实际工时 × 100（>100 快于标准）
	efficiency := 0.0
	if entry.Step != nil && entry.Step.TimePerPieceSeconds > 0 {
		expectedSeconds := float64(req.ActualOutput * entry.Step.TimePerPieceSeconds)
		actualSeconds := endTime.Sub(*entry.ActualStartTime).Seconds()
		if actualSeconds > 0 {
			efficiency = round2(expectedSeconds / actualSeconds * 100)
		}
	}

	var changes []dto.ProficiencyChange
	if efficiency > 0 {
		changes, err = s.applyEfficiencyFeedback(ctx, entry, efficiency)
		if err != nil {
			return nil, err
		}
	}
	if changes == nil {
		changes = []dto.ProficiencyChange{}
	}

	// 全部排程项完工 → 订单 completed
	if entry.Schedule != nil {
		if err := s.completeOrderIfDone(ctx, entry.Schedule); err != nil {
			s.logger.Warn("检查订单完工状态失败", zap.Error(err))
		}
	}

	resp := entryToResponse(entry)
	return &dto.RecordCompletionResponse{
		Entry:              &resp,
		Efficiency:         efficiency,
		ProficiencyChanges: changes,
	}, nil
}

// applyEfficiencyFeedback 把本次效率写回各分配记录，并按 (worker, step)
// 滚动窗口均值判断是否自动升降熟练度。
func (s *productionService) applyEfficiencyFeedback(ctx context.Context, entry *model.ScheduleEntry, efficiency float64) ([]dto.ProficiencyChange, error) {
	changes := make([]dto.ProficiencyChange, 0)
	for i := range entry.Assignments {
		a := &entry.Assignments[i]

		// 按计划占比折算该工人的实际产出
		actual := 0
		if entry.PlannedOutput > 0 && entry.ActualOutput != nil {
			actual = *entry.ActualOutput * a.PlannedOutput / entry.PlannedOutput
		}
		eff := efficiency
		a.ActualOutput = &actual
		a.Efficiency = &eff
		if err := s.repo.Schedule.UpdateAssignmentActuals(ctx, a); err != nil {
			return nil, fmt.Errorf("写入分配实际数据失败: %w", err)
		}

		change, err := s.adjustProficiency(ctx, a.WorkerID, entry.StepID)
		if err != nil {
			return nil, err
		}
		if change != nil {
			if a.Worker != nil {
				change.WorkerName = a.Worker.Name
			}
			changes = append(changes, *change)
		}
	}
	return changes, nil
}

// adjustProficiency 按滚动窗口效率均值对单个 (worker, step) 升降熟练度。
// 同一对的并发完工在此串行化。
func (s *productionService) adjustProficiency(ctx context.Context, workerID, stepID string) (*dto.ProficiencyChange, error) {
	key := workerID + ":" + stepID
	muIface, _ := s.pairLocks.LoadOrStore(key, &sync.Mutex{})
	mu := muIface.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	recent, err := s.repo.Schedule.ListRecentEfficiencies(ctx, workerID, stepID, s.cfg.Scheduling.EfficiencyWindow)
	if err != nil {
		return nil, fmt.Errorf("读取近期效率失败: %w", err)
	}
	avg := averageEfficiency(recent)
	if avg == 0 {
		return nil, nil
	}

	level := model.ProficiencyDefault
	if p, err := s.repo.Worker.GetProficiency(ctx, workerID, stepID); err == nil {
		level = p.Level
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("读取熟练度失败: %w", err)
	}

	var newLevel int
	var reason string
	switch {
	case avg >= s.cfg.Scheduling.EfficiencyHigh && level < model.ProficiencyMax:
		newLevel, reason = level+1, model.ProficiencyReasonAutoIncrease
	case avg <= s.cfg.Scheduling.EfficiencyLow && level > model.ProficiencyMin:
		newLevel, reason = level-1, model.ProficiencyReasonAutoDecrease
	default:
		return nil, nil
	}

	if err := s.repo.Worker.UpsertProficiency(ctx, &model.Proficiency{
		WorkerID: workerID,
		StepID:   stepID,
		Level:    newLevel,
	}); err != nil {
		return nil, fmt.Errorf("更新熟练度失败: %w", err)
	}
	if err := s.repo.Worker.AppendProficiencyHistory(ctx, &model.ProficiencyHistory{
		WorkerID: workerID,
		StepID:   stepID,
		OldLevel: level,
		NewLevel: newLevel,
		Reason:   reason,
	}); err != nil {
		return nil, fmt.Errorf("写入熟练度历史失败: %w", err)
	}

	s.logger.Info("熟练度自动调整",
		zap.String("worker_id", workerID),
		zap.String("step_id", stepID),
		zap.Int("old_level", level),
		zap.Int("new_level", newLevel),
		zap.Float64("avg_efficiency", avg),
		zap.String("reason", reason),
	)
	return &dto.ProficiencyChange{
		WorkerID: workerID,
		StepID:   stepID,
		OldLevel: level,
		NewLevel: newLevel,
		Reason:   reason,
	}, nil
}

func (s *productionService) completeOrderIfDone(ctx context.Context, schedule *model.Schedule) error {
	incomplete, err := s.repo.Schedule.CountIncompleteEntries(ctx, schedule.ScheduleID)
	if err != nil {
		return err
	}
	if incomplete > 0 {
		return nil
	}
	return s.repo.Order.UpdateStatus(ctx, schedule.OrderID, model.OrderStatusCompleted)
}

func (s *productionService) getEntry(ctx context.Context, entryID string) (*model.ScheduleEntry, error) {
	entry, err := s.repo.Schedule.GetEntry(ctx, entryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEntryNotFound
		}
		s.logger.Error("查询排程项失败", zap.String("entry_id", entryID), zap.Error(err))
		return nil, err
	}
	return entry, nil
}
