package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"shopfloor/backend/config"
	"shopfloor/backend/internal/dto"
	"shopfloor/backend/internal/model"
	"shopfloor/backend/internal/repository"
	"shopfloor/backend/pkg/redis"
)

// ── 排产模块业务错误 ──

var (
	ErrOrderNotFound      = errors.New("订单不存在")
	ErrProductNotFound    = errors.New("产品不存在")
	ErrScheduleNotFound   = errors.New("排程不存在")
	ErrInvalidQuantity    = errors.New("订单数量必须为正数")
	ErrProductNoSteps     = errors.New("产品未配置工序")
	ErrOrderCompleted     = errors.New("已完成订单不可重新排产")
	ErrScheduleTooLong    = errors.New("排产超出允许的最大排程天数")
	ErrGenerationInFlight = errors.New("该订单的排产正在执行中，请稍后重试")
)

// ScheduleService 排产业务接口
type ScheduleService interface {
	// GenerateSchedule 为订单生成日粒度排程（整张替换旧排程）
	GenerateSchedule(ctx context.Context, orderID string, req *dto.GenerateScheduleRequest) (*dto.GenerateScheduleResponse, error)
	// Replan 重排：破坏性重新生成，结构未变的工序保留已报工的实际数据
	Replan(ctx context.Context, scheduleID string, req *dto.ReplanRequest) (*dto.GenerateScheduleResponse, error)
	// GetSchedule 查询订单当前排程
	GetSchedule(ctx context.Context, orderID string) (*dto.ScheduleResponse, error)
}

type scheduleService struct {
	cfg    *config.Config
	repo   *repository.Repository
	rdb    *redis.Client // 可为 nil：单实例部署时仅用进程内锁
	logger *zap.Logger

	genLocks sync.Map // orderID → struct{}，同一订单的排产串行化
}

// NewScheduleService 创建 ScheduleService 实例
func NewScheduleService(cfg *config.Config, repo *repository.Repository, rdb *redis.Client, logger *zap.Logger) ScheduleService {
	return &scheduleService{cfg: cfg, repo: repo, rdb: rdb, logger: logger}
}

// ════════════════════════════════════════════════════════════
// GenerateSchedule — 排产主流程
// ════════════════════════════════════════════════════════════
//
// 流程：校验 → 加锁 → 构建工序依赖图 → 资源快照 → 槽位分配与派工
// （两者按工序逐个定点迭代）→ 原子落库。结构性错误在任何写入前
// 返回；无可派工人降级为警告，不阻断整体排产。

func (s *scheduleService) GenerateSchedule(ctx context.Context, orderID string, req *dto.GenerateScheduleRequest) (*dto.GenerateScheduleResponse, error) {
	order, err := s.repo.Order.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		s.logger.Error("查询订单失败", zap.Error(err))
		return nil, err
	}

	startDate := time.Now()
	if req != nil && req.StartDate != nil {
		startDate, err = time.ParseInLocation(dateLayout, *req.StartDate, time.Local)
		if err != nil {
			return nil, fmt.Errorf("无效的开始日期 %q: %w", *req.StartDate, err)
		}
	}

	return s.generate(ctx, order, startDate)
}

// Replan 语义上等价于按新起始日期重新 GenerateSchedule；
// 旧排程整张丢弃，但结构仍然适用的工序保留其实际数据（见 preserveActuals）。
func (s *scheduleService) Replan(ctx context.Context, scheduleID string, req *dto.ReplanRequest) (*dto.GenerateScheduleResponse, error) {
	schedule, err := s.repo.Schedule.GetByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScheduleNotFound
		}
		s.logger.Error("查询排程失败", zap.Error(err))
		return nil, err
	}

	order, err := s.repo.Order.GetByID(ctx, schedule.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	startDate := time.Now()
	if req != nil && req.StartDate != nil {
		startDate, err = time.ParseInLocation(dateLayout, *req.StartDate, time.Local)
		if err != nil {
			return nil, fmt.Errorf("无效的开始日期 %q: %w", *req.StartDate, err)
		}
	}

	return s.generate(ctx, order, startDate)
}

func (s *scheduleService) GetSchedule(ctx context.Context, orderID string) (*dto.ScheduleResponse, error) {
	schedule, err := s.repo.Schedule.GetByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScheduleNotFound
		}
		s.logger.Error("查询排程失败", zap.Error(err))
		return nil, err
	}
	return scheduleToResponse(schedule), nil
}

// ── 主生成流程 ──

func (s *scheduleService) generate(ctx context.Context, order *model.Order, startDate time.Time) (*dto.GenerateScheduleResponse, error) {
	// 1. 结构校验（任何写入之前）
	if order.Status == model.OrderStatusCompleted {
		return nil, ErrOrderCompleted
	}
	if order.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	product, err := s.repo.Product.GetByID(ctx, order.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		s.logger.Error("查询产品失败", zap.Error(err))
		return nil, err
	}
	if len(product.Steps) == 0 {
		return nil, ErrProductNoSteps
	}

	// 2. 同一订单单写者：进程内锁 + （可选）Redis 跨实例锁
	release, err := s.tryLockOrder(ctx, order.OrderID)
	if err != nil {
		return nil, err
	}
	defer release()

	// 3. 工序依赖图
	graph, err := buildStepGraph(product.Steps)
	if err != nil {
		return nil, err
	}

	// 4. 资源快照与班次日历（本次调用内不可变）
	stepIDs := make([]string, 0, len(product.Steps))
	for _, st := range product.Steps {
		stepIDs = append(stepIDs, st.StepID)
	}
	snapshot, err := loadResourceSnapshot(ctx, s.repo, stepIDs, s.cfg.Scheduling.DefaultProficiency)
	if err != nil {
		return nil, err
	}

	horizonEnd := startDate.AddDate(0, 0, s.cfg.Scheduling.MaxScheduleDays)
	holidays, err := s.repo.Holiday.ListBetween(ctx, startDate, horizonEnd)
	if err != nil {
		return nil, fmt.Errorf("读取假日失败: %w", err)
	}
	cal, err := newShiftCalendar(&s.cfg.Scheduling, holidays)
	if err != nil {
		return nil, err
	}

	// 5. 槽位分配 + 派工
	entries, warnings, err := s.allocate(ctx, graph, snapshot, cal, order.Quantity, startDate)
	if err != nil {
		return nil, err
	}

	// 6. 重排时保留仍然适用的实际数据
	if old, err := s.repo.Schedule.GetByOrder(ctx, order.OrderID); err == nil {
		preserveActuals(old.Entries, entries)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("读取旧排程失败: %w", err)
	}

	// 7. 原子落库：删旧 + 写新 + 订单状态，单事务
	scheduleID := uuid.New().String()
	for i := range entries {
		entries[i].ScheduleID = scheduleID
	}
	schedule := &model.Schedule{
		ScheduleID:  scheduleID,
		OrderID:     order.OrderID,
		StartDate:   cal.NextOpenSlot(startDate),
		GeneratedAt: time.Now(),
		Entries:     entries,
	}
	newStatus := order.Status
	if newStatus == model.OrderStatusPending {
		newStatus = model.OrderStatusScheduled
	}
	if err := s.repo.Schedule.Replace(ctx, schedule, newStatus); err != nil {
		s.logger.Error("保存排程失败", zap.String("order_id", order.OrderID), zap.Error(err))
		return nil, fmt.Errorf("保存排程失败: %w", err)
	}

	s.logger.Info("排产完成",
		zap.String("order_id", order.OrderID),
		zap.Int("entries", len(entries)),
		zap.Int("warnings", len(warnings)),
	)

	// 带关联重新读出，保证响应里有工序与工人信息
	saved, err := s.repo.Schedule.GetByOrder(ctx, order.OrderID)
	if err != nil {
		return nil, fmt.Errorf("读取排程失败: %w", err)
	}
	if warnings == nil {
		warnings = []dto.ScheduleWarning{}
	}
	return &dto.GenerateScheduleResponse{
		Schedule: scheduleToResponse(saved),
		Warnings: warnings,
	}, nil
}

// tryLockOrder 获取订单排产锁；已有排产在执行时返回 ErrGenerationInFlight
func (s *scheduleService) tryLockOrder(ctx context.Context, orderID string) (func(), error) {
	if _, loaded := s.genLocks.LoadOrStore(orderID, struct{}{}); loaded {
		return nil, ErrGenerationInFlight
	}
	if s.rdb != nil {
		ok, err := s.rdb.AcquireGenerationLock(ctx, orderID, time.Minute)
		if err != nil {
			// Redis 异常时降级为仅进程内锁
			s.logger.Warn("获取 Redis 排产锁失败，降级为进程内锁", zap.Error(err))
		} else if !ok {
			s.genLocks.Delete(orderID)
			return nil, ErrGenerationInFlight
		}
	}
	return func() {
		if s.rdb != nil {
			if err := s.rdb.ReleaseGenerationLock(context.Background(), orderID); err != nil {
				s.logger.Warn("释放 Redis 排产锁失败", zap.Error(err))
			}
		}
		s.genLocks.Delete(orderID)
	}, nil
}

// ════════════════════════════════════════════════════════════
// allocate — 槽位分配与派工（按拓扑序逐工序定点迭代）
// ════════════════════════════════════════════════════════════
//
// 每道工序：
//  1. 最早开工 = max(全部依赖的计划完工, 同类别游标)，再对齐班次日历
//  2. 先按默认熟练度假定班组速率切槽；派工后若实际班组速率不同，
//     按实际速率重切一次（槽长与派工互相耦合，两轮内收敛）
//  3. 槽位以班次为界拆分，绝不跨天/跨非工作日
//  4. 零工时工序生成零长度锚点项，保持依赖链完整

func (s *scheduleService) allocate(
	ctx context.Context,
	graph *stepGraph,
	snapshot *resourceSnapshot,
	cal *shiftCalendar,
	quantity int,
	startDate time.Time,
) ([]model.ScheduleEntry, []dto.ScheduleWarning, error) {
	scheduleStart := cal.NextOpenSlot(time.Date(
		startDate.Year(), startDate.Month(), startDate.Day(), 0, 0, 0, 0, startDate.Location()))
	horizon := scheduleStart.AddDate(0, 0, s.cfg.Scheduling.MaxScheduleDays)

	var (
		entries   []model.ScheduleEntry
		warnings  []dto.ScheduleWarning
		stepEnds  = make(map[string]time.Time) // step_id → 计划完工
		catCursor = make(map[string]time.Time) // 工序类别 → 已占用到的时刻
	)

	for _, step := range graph.order {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		default:
		}

		// 1. 最早开工
		earliest := scheduleStart
		for _, depID := range step.Dependencies {
			if end, ok := stepEnds[depID]; ok && end.After(earliest) {
				earliest = end
			}
		}
		if cur, ok := catCursor[step.Category]; ok && cur.After(earliest) {
			earliest = cur
		}
		earliest = cal.NextOpenSlot(earliest)

		// 2. 可派工人
		eligible := snapshot.eligibleWorkers(step, s.cfg.Scheduling.SewingAnyStep)
		if len(eligible) == 0 {
			warnings = append(warnings, dto.ScheduleWarning{
				StepCode:      step.StepCode,
				Category:      step.Category,
				RequiredSkill: step.RequiredSkill,
				Message:       fmt.Sprintf("工序 %s 无可派工人（需要技能 %s），槽位已生成但未派工", step.StepCode, step.RequiredSkill),
			})
		}

		// 3. 零工时工序：零长度锚点项
		if step.TimePerPieceSeconds == 0 {
			entry := model.ScheduleEntry{
				EntryID:       uuid.New().String(),
				StepID:        step.StepID,
				WorkDate:      dayOf(earliest),
				StartTime:     earliest,
				EndTime:       earliest,
				PlannedOutput: quantity,
			}
			entry.Assignments = apportionOutput(entry.EntryID, quantity, step.StepID, eligible, snapshot)
			entries = append(entries, entry)
			stepEnds[step.StepID] = earliest
			continue
		}

		// 4. 班组速率：等级 3 为标准单件工时，班组并行叠加
		defaultLevel := snapshot.defaultLevel
		assumedSum := len(eligible) * defaultLevel
		actualSum := 0
		for _, w := range eligible {
			actualSum += snapshot.proficiencyFor(w.WorkerID, step.StepID)
		}
		if len(eligible) == 0 {
			// 无人可派仍按单人标准速率占位，保证依赖锚点与产能口径
			assumedSum, actualSum = defaultLevel, defaultLevel
		}

		stepEntries, err := carveEntries(cal, step, quantity, earliest, horizon, assumedSum, defaultLevel)
		if err != nil {
			return nil, nil, err
		}
		if actualSum != assumedSum {
			stepEntries, err = carveEntries(cal, step, quantity, earliest, horizon, actualSum, defaultLevel)
			if err != nil {
				return nil, nil, err
			}
		}

		// 5. 派工
		for i := range stepEntries {
			stepEntries[i].Assignments = apportionOutput(
				stepEntries[i].EntryID, stepEntries[i].PlannedOutput, step.StepID, eligible, snapshot)
		}

		last := stepEntries[len(stepEntries)-1]
		stepEnds[step.StepID] = last.EndTime
		catCursor[step.Category] = last.EndTime
		entries = append(entries, stepEntries...)
	}

	return entries, warnings, nil
}

// carveEntries 把一道工序的总量切成以班次为界的排程项。
// levelSum 为班组熟练度之和，defaultLevel 为标准速率基准等级。
func carveEntries(
	cal *shiftCalendar,
	step *model.ProductStep,
	quantity int,
	earliest, horizon time.Time,
	levelSum, defaultLevel int,
) ([]model.ScheduleEntry, error) {
	secondsPerUnit := float64(step.TimePerPieceSeconds) * float64(defaultLevel) / float64(levelSum)

	var result []model.ScheduleEntry
	cursor := earliest
	remaining := quantity

	for remaining > 0 {
		if cursor.After(horizon) {
			return nil, ErrScheduleTooLong
		}
		cursor = cal.NextOpenSlot(cursor)
		shiftEnd := cal.ShiftEnd(cursor)
		avail := shiftEnd.Sub(cursor).Seconds()

		fit := int(avail / secondsPerUnit)
		var units int
		var entryEnd time.Time
		switch {
		case fit <= 0 && cursor.After(cal.ShiftStart(cursor)):
			// 班内剩余放不下一件，滚到下一工作日
			cursor = dayOf(cursor).AddDate(0, 0, 1)
			continue
		case fit <= 0:
			// 单件超过整班：压满全班放一件
			units = 1
			entryEnd = shiftEnd
		default:
			units = fit
			if units > remaining {
				units = remaining
			}
			entryEnd = cursor.Add(time.Duration(float64(units) * secondsPerUnit * float64(time.Second)))
		}

		result = append(result, model.ScheduleEntry{
			EntryID:       uuid.New().String(),
			StepID:        step.StepID,
			WorkDate:      dayOf(cursor),
			StartTime:     cursor,
			EndTime:       entryEnd,
			PlannedOutput: units,
		})
		remaining -= units
		cursor = entryEnd
	}
	return result, nil
}

// apportionOutput 按熟练度加权吞吐把计划产量分摊给班组成员。
// 向下取整后的零头补给吞吐最高者（并列时取 worker_id 最小者，保证确定性），
// 各成员计划产量之和恒等于排程项计划产量。
func apportionOutput(entryID string, output int, stepID string, eligible []model.Worker, snapshot *resourceSnapshot) []model.EntryAssignment {
	if len(eligible) == 0 || output <= 0 {
		return nil
	}

	levels := make([]int, len(eligible))
	levelSum := 0
	for i, w := range eligible {
		levels[i] = snapshot.proficiencyFor(w.WorkerID, stepID)
		levelSum += levels[i]
	}

	shares := make([]int, len(eligible))
	assigned := 0
	best := 0
	for i := range eligible {
		shares[i] = output * levels[i] / levelSum
		assigned += shares[i]
		// eligible 按 worker_id 升序，> 保证并列时取最小 id
		if levels[i] > levels[best] {
			best = i
		}
	}
	shares[best] += output - assigned

	assignments := make([]model.EntryAssignment, 0, len(eligible))
	for i, w := range eligible {
		if shares[i] == 0 {
			continue
		}
		assignments = append(assignments, model.EntryAssignment{
			AssignmentID:  uuid.New().String(),
			EntryID:       entryID,
			WorkerID:      w.WorkerID,
			PlannedOutput: shares[i],
		})
	}
	return assignments
}

// preserveActuals 重排保留策略：同一工序的旧排程项按时间序携带的实际数据，
// 按位置重新挂到新排程项上（产品负责人确认的口径：结构未变则保留报工）。
func preserveActuals(oldEntries, newEntries []model.ScheduleEntry) {
	byStep := make(map[string][]*model.ScheduleEntry)
	for i := range oldEntries {
		e := &oldEntries[i]
		if e.ActualStartTime == nil && e.ActualEndTime == nil && e.ActualOutput == nil {
			continue
		}
		byStep[e.StepID] = append(byStep[e.StepID], e)
	}
	for stepID := range byStep {
		sortEntriesByTime(byStep[stepID])
	}

	taken := make(map[string]int)
	for i := range newEntries {
		e := &newEntries[i]
		olds := byStep[e.StepID]
		idx := taken[e.StepID]
		if idx >= len(olds) {
			continue
		}
		old := olds[idx]
		e.ActualStartTime = old.ActualStartTime
		e.ActualEndTime = old.ActualEndTime
		e.ActualOutput = old.ActualOutput
		taken[e.StepID]++
	}
}

func sortEntriesByTime(entries []*model.ScheduleEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].WorkDate.Equal(entries[j].WorkDate) {
			return entries[i].WorkDate.Before(entries[j].WorkDate)
		}
		return entries[i].StartTime.Before(entries[j].StartTime)
	})
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// ── DTO 映射 ──

func scheduleToResponse(s *model.Schedule) *dto.ScheduleResponse {
	resp := &dto.ScheduleResponse{
		ID:          s.ScheduleID,
		OrderID:     s.OrderID,
		StartDate:   s.StartDate.Format(dateLayout),
		GeneratedAt: s.GeneratedAt.Format(time.RFC3339),
		Entries:     make([]dto.EntryResponse, 0, len(s.Entries)),
	}
	for i := range s.Entries {
		resp.Entries = append(resp.Entries, entryToResponse(&s.Entries[i]))
	}
	return resp
}

func entryToResponse(e *model.ScheduleEntry) dto.EntryResponse {
	resp := dto.EntryResponse{
		ID:            e.EntryID,
		ScheduleID:    e.ScheduleID,
		StepID:        e.StepID,
		WorkDate:      e.WorkDate.Format(dateLayout),
		StartTime:     e.StartTime.Format(time.RFC3339),
		EndTime:       e.EndTime.Format(time.RFC3339),
		PlannedOutput: e.PlannedOutput,
		ActualOutput:  e.ActualOutput,
		Status:        e.Status(),
		Assignments:   make([]dto.AssignmentResponse, 0, len(e.Assignments)),
	}
	if e.Step != nil {
		resp.StepCode = e.Step.StepCode
		resp.TaskName = e.Step.TaskName
		resp.Category = e.Step.Category
	}
	if e.ActualStartTime != nil {
		v := e.ActualStartTime.Format(time.RFC3339)
		resp.ActualStartTime = &v
	}
	if e.ActualEndTime != nil {
		v := e.ActualEndTime.Format(time.RFC3339)
		resp.ActualEndTime = &v
	}
	for i := range e.Assignments {
		a := &e.Assignments[i]
		ar := dto.AssignmentResponse{
			ID:            a.AssignmentID,
			WorkerID:      a.WorkerID,
			PlannedOutput: a.PlannedOutput,
			ActualOutput:  a.ActualOutput,
			Efficiency:    a.Efficiency,
		}
		if a.Worker != nil {
			ar.WorkerName = a.Worker.Name
		}
		resp.Assignments = append(resp.Assignments, ar)
	}
	return resp
}
