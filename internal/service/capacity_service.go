package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"shopfloor/backend/config"
	"shopfloor/backend/internal/dto"
	"shopfloor/backend/internal/model"
	"shopfloor/backend/internal/repository"
)

var ErrInvalidHorizon = errors.New("分析周数必须为正数")

// CapacityService 产能与风险分析接口。
// 三项分析均为纯只读投影：对当前排程项集合与资源目录做一次一致性
// 读取后在内存中计算，不修改任何状态，可随时重算。
type CapacityService interface {
	// GetDeadlineRisks 计算全部未完结订单的交期风险，按距交期天数升序
	GetDeadlineRisks(ctx context.Context) ([]dto.DeadlineRisk, error)
	// GetOvertimeProjections 预测配置水平线内每个工作日的加班小时数
	GetOvertimeProjections(ctx context.Context) ([]dto.OvertimeProjection, error)
	// GetCapacityAnalysis 给定周数的产能利用率分析
	GetCapacityAnalysis(ctx context.Context, weeks int) (*dto.CapacityAnalysis, error)
}

type capacityService struct {
	cfg    *config.Config
	repo   *repository.Repository
	logger *zap.Logger
}

func NewCapacityService(cfg *config.Config, repo *repository.Repository, logger *zap.Logger) CapacityService {
	return &capacityService{cfg: cfg, repo: repo, logger: logger}
}

// ── 交期风险 ──

func (s *capacityService) GetDeadlineRisks(ctx context.Context) ([]dto.DeadlineRisk, error) {
	orders, err := s.repo.Order.ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取未完结订单失败: %w", err)
	}

	today := dayOf(time.Now())
	risks := make([]dto.DeadlineRisk, 0, len(orders))
	for i := range orders {
		risk, err := s.assessOrder(ctx, &orders[i], today)
		if err != nil {
			return nil, err
		}
		risks = append(risks, *risk)
	}

	// 按距交期天数升序，同天按订单 id，保证稳定确定
	sort.SliceStable(risks, func(i, j int) bool {
		if risks[i].DaysToDue != risks[j].DaysToDue {
			return risks[i].DaysToDue < risks[j].DaysToDue
		}
		return risks[i].OrderID < risks[j].OrderID
	})
	return risks, nil
}

func (s *capacityService) assessOrder(ctx context.Context, order *model.Order, today time.Time) (*dto.DeadlineRisk, error) {
	product, err := s.repo.Product.GetByID(ctx, order.ProductID)
	if err != nil {
		return nil, fmt.Errorf("读取产品失败: %w", err)
	}

	// 剩余所需工时（按工序分桶）：已排产订单取未完成排程项，未排产订单取全量估算
	remainingSeconds := make(map[string]float64)
	var efficiencies []float64
	schedule, err := s.repo.Schedule.GetByOrder(ctx, order.OrderID)
	switch {
	case err == nil:
		for i := range schedule.Entries {
			e := &schedule.Entries[i]
			// 效率只在完工时写入，须在跳过已完成项之前收集
			for j := range e.Assignments {
				if eff := e.Assignments[j].Efficiency; eff != nil && *eff > 0 {
					efficiencies = append(efficiencies, *eff)
				}
			}
			if e.Status() == model.EntryStatusCompleted {
				continue
			}
			if e.Step != nil {
				remainingSeconds[e.StepID] += float64(e.PlannedOutput * e.Step.TimePerPieceSeconds)
			}
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		for i := range product.Steps {
			st := &product.Steps[i]
			remainingSeconds[st.StepID] += float64(order.Quantity * st.TimePerPieceSeconds)
		}
	default:
		return nil, fmt.Errorf("读取排程失败: %w", err)
	}

	var requiredSeconds float64
	for _, secs := range remainingSeconds {
		requiredSeconds += secs
	}
	requiredHours := requiredSeconds / 3600
	// 按该订单已观测到的效率均值折算（效率 >100 表示快于标准工时）
	if factor := averageEfficiency(efficiencies); factor > 0 {
		requiredHours = requiredHours * 100 / factor
	}

	// 可用工时 = 今天到交期的班次小时 × 对本订单任一工序可派的在岗工人数
	holidays, err := s.repo.Holiday.ListBetween(ctx, today, order.DueDate)
	if err != nil {
		return nil, fmt.Errorf("读取假日失败: %w", err)
	}
	cal, err := newShiftCalendar(&s.cfg.Scheduling, holidays)
	if err != nil {
		return nil, err
	}

	stepIDs := make([]string, 0, len(product.Steps))
	for i := range product.Steps {
		stepIDs = append(stepIDs, product.Steps[i].StepID)
	}
	snapshot, err := loadResourceSnapshot(ctx, s.repo, stepIDs, s.cfg.Scheduling.DefaultProficiency)
	if err != nil {
		return nil, err
	}

	// 无可派工人的工序其剩余工时视为零产能缺口
	eligibleIDs := make(map[string]bool)
	var unmannedHours float64
	for i := range product.Steps {
		st := &product.Steps[i]
		eligible := snapshot.eligibleWorkers(st, s.cfg.Scheduling.SewingAnyStep)
		for _, w := range eligible {
			eligibleIDs[w.WorkerID] = true
		}
		if len(eligible) == 0 {
			unmannedHours += remainingSeconds[st.StepID] / 3600
		}
	}
	availableHours := cal.HoursBetween(today, order.DueDate) * float64(len(eligibleIDs))

	canMeet := availableHours >= requiredHours && unmannedHours == 0
	shortfall := max0(requiredHours - availableHours)
	if shortfall < unmannedHours {
		shortfall = unmannedHours
	}

	risk := &dto.DeadlineRisk{
		OrderID:        order.OrderID,
		ProductName:    product.Name,
		Quantity:       order.Quantity,
		DueDate:        order.DueDate.Format(dateLayout),
		DaysToDue:      int(order.DueDate.Sub(today).Hours() / 24),
		RequiredHours:  round2(requiredHours),
		AvailableHours: round2(availableHours),
		CanMeet:        canMeet,
	}
	if !canMeet {
		risk.ShortfallHours = round2(shortfall)
	}
	return risk, nil
}

// ── 加班预测 ──

func (s *capacityService) GetOvertimeProjections(ctx context.Context) ([]dto.OvertimeProjection, error) {
	today := dayOf(time.Now())
	horizonEnd := today.AddDate(0, 0, s.cfg.Scheduling.OvertimeHorizonDays-1)

	entries, err := s.repo.Schedule.ListEntriesBetween(ctx, today, horizonEnd)
	if err != nil {
		return nil, fmt.Errorf("读取排程项失败: %w", err)
	}
	holidays, err := s.repo.Holiday.ListBetween(ctx, today, horizonEnd)
	if err != nil {
		return nil, fmt.Errorf("读取假日失败: %w", err)
	}
	cal, err := newShiftCalendar(&s.cfg.Scheduling, holidays)
	if err != nil {
		return nil, err
	}
	workers, err := s.repo.Worker.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取在岗工人失败: %w", err)
	}

	requiredByDay := requiredHoursByDay(entries)

	projections := make([]dto.OvertimeProjection, 0, s.cfg.Scheduling.OvertimeHorizonDays)
	for d := today; !d.After(horizonEnd); d = d.AddDate(0, 0, 1) {
		required := requiredByDay[d.Format(dateLayout)]
		available := cal.ShiftHoursOn(d) * float64(len(workers))
		projections = append(projections, dto.OvertimeProjection{
			Date:           d.Format(dateLayout),
			RequiredHours:  round2(required),
			AvailableHours: round2(available),
			OvertimeHours:  round2(max0(required - available)),
		})
	}
	return projections, nil
}

// ── 产能分析 ──

func (s *capacityService) GetCapacityAnalysis(ctx context.Context, weeks int) (*dto.CapacityAnalysis, error) {
	if weeks <= 0 {
		return nil, ErrInvalidHorizon
	}

	// 水平线从本周周一起算
	today := dayOf(time.Now())
	weekStart := today.AddDate(0, 0, -mondayOffset(today.Weekday()))
	horizonEnd := weekStart.AddDate(0, 0, weeks*7-1)

	entries, err := s.repo.Schedule.ListEntriesBetween(ctx, weekStart, horizonEnd)
	if err != nil {
		return nil, fmt.Errorf("读取排程项失败: %w", err)
	}
	holidays, err := s.repo.Holiday.ListBetween(ctx, weekStart, horizonEnd)
	if err != nil {
		return nil, fmt.Errorf("读取假日失败: %w", err)
	}
	cal, err := newShiftCalendar(&s.cfg.Scheduling, holidays)
	if err != nil {
		return nil, err
	}
	workers, err := s.repo.Worker.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取在岗工人失败: %w", err)
	}

	requiredByDay := requiredHoursByDay(entries)

	analysis := &dto.CapacityAnalysis{Weeks: make([]dto.WeeklyCapacity, 0, weeks)}
	for w := 0; w < weeks; w++ {
		ws := weekStart.AddDate(0, 0, w*7)
		we := ws.AddDate(0, 0, 6)
		var required, available float64
		for d := ws; !d.After(we); d = d.AddDate(0, 0, 1) {
			required += requiredByDay[d.Format(dateLayout)]
			available += cal.ShiftHoursOn(d) * float64(len(workers))
		}
		analysis.Weeks = append(analysis.Weeks, dto.WeeklyCapacity{
			WeekStart:      ws.Format(dateLayout),
			WeekEnd:        we.Format(dateLayout),
			RequiredHours:  round2(required),
			AvailableHours: round2(available),
		})
		analysis.TotalRequired += required
		analysis.TotalAvailable += available
	}
	if analysis.TotalAvailable > 0 {
		// 利用率可超过 100
		analysis.UtilizationPercent = round2(analysis.TotalRequired / analysis.TotalAvailable * 100)
	}
	analysis.TotalRequired = round2(analysis.TotalRequired)
	analysis.TotalAvailable = round2(analysis.TotalAvailable)
	return analysis, nil
}

// ── 工具 ──

// requiredHoursByDay 按日聚合排程项所需工时（计划产量 × 标准单件工时）
func requiredHoursByDay(entries []model.ScheduleEntry) map[string]float64 {
	byDay := make(map[string]float64)
	for i := range entries {
		e := &entries[i]
		if e.Step == nil {
			continue
		}
		byDay[e.WorkDate.Format(dateLayout)] += float64(e.PlannedOutput*e.Step.TimePerPieceSeconds) / 3600
	}
	return byDay
}

func averageEfficiency(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func mondayOffset(d time.Weekday) int {
	if d == time.Sunday {
		return 6
	}
	return int(d) - 1
}

func max0(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
