package service

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"go.uber.org/zap"

	"shopfloor/backend/config"
	"shopfloor/backend/internal/dto"
	"shopfloor/backend/internal/model"
)

// ── 测试辅助 ──

func testConfig() *config.Config {
	return &config.Config{
		Scheduling: config.SchedulingConfig{
			ShiftStart:          "08:00",
			ShiftHours:          8,
			WorkDays:            []int{1, 2, 3, 4, 5},
			DefaultProficiency:  3,
			EfficiencyHigh:      110,
			EfficiencyLow:       80,
			EfficiencyWindow:    5,
			OvertimeHorizonDays: 14,
			MaxScheduleDays:     365,
		},
	}
}

func setupScheduleService(cfg *config.Config) (ScheduleService, *testRepos) {
	repos := newTestRepos()
	svc := NewScheduleService(cfg, repos.toRepository(), nil, zap.NewNop())
	return svc, repos
}

// seedTwoStepProduct 种子数据：裁切 A(10s/件) → 缝纫 B(20s/件，依赖 A)，
// 每种技能各一名工人，订单 100 件
func seedTwoStepProduct(repos *testRepos, quantity int) {
	stepA := model.ProductStep{
		StepID: "step-a", ProductID: "prod-1", StepCode: "CUT1", Sequence: 1,
		Category: model.StepCategoryCutting, TaskName: "裁切面料",
		TimePerPieceSeconds: 10, RequiredSkill: model.SkillGeneral,
	}
	stepB := model.ProductStep{
		StepID: "step-b", ProductID: "prod-1", StepCode: "SEW1", Sequence: 2,
		Category: model.StepCategorySewing, TaskName: "缝合主体",
		TimePerPieceSeconds: 20, RequiredSkill: model.SkillSewing,
		Dependencies: model.StringArray{"step-a"},
	}
	repos.product.products["prod-1"] = &model.Product{
		ProductID: "prod-1", Name: "Tenjam 坐垫",
		Steps: []model.ProductStep{stepA, stepB},
	}
	repos.schedule.steps["step-a"] = &repos.product.products["prod-1"].Steps[0]
	repos.schedule.steps["step-b"] = &repos.product.products["prod-1"].Steps[1]

	repos.worker.workers["w-1"] = &model.Worker{
		WorkerID: "w-1", Name: "王强", Status: model.WorkerStatusActive,
		SkillCategory: model.SkillGeneral,
	}
	repos.worker.workers["w-2"] = &model.Worker{
		WorkerID: "w-2", Name: "李梅", Status: model.WorkerStatusActive,
		SkillCategory: model.SkillSewing,
	}

	repos.order.orders["order-1"] = &model.Order{
		OrderID: "order-1", ProductID: "prod-1", Quantity: quantity,
		DueDate: time.Now().AddDate(0, 0, 5), Status: model.OrderStatusPending,
	}
}

func strPtr(s string) *string { return &s }

// 固定排产起点：2026-09-07（周一）
const testStartDate = "2026-09-07"

func generateForTest(t *testing.T, svc ScheduleService) *dto.GenerateScheduleResponse {
	t.Helper()
	resp, err := svc.GenerateSchedule(context.Background(), "order-1",
		&dto.GenerateScheduleRequest{StartDate: strPtr(testStartDate)})
	if err != nil {
		t.Fatalf("排产应成功: %v", err)
	}
	return resp
}

func entriesByStep(s *model.Schedule, stepID string) []model.ScheduleEntry {
	var result []model.ScheduleEntry
	for _, e := range s.Entries {
		if e.StepID == stepID {
			result = append(result, e)
		}
	}
	return result
}

// ════════════════════════════════════════════════════════════
// GenerateSchedule 测试
// ════════════════════════════════════════════════════════════

func TestScheduleService_Generate_TwoStepOrder(t *testing.T) {
	svc, repos := setupScheduleService(testConfig())
	seedTwoStepProduct(repos, 100)

	resp := generateForTest(t, svc)

	if resp.Schedule == nil {
		t.Fatal("Schedule 不应为 nil")
	}
	if len(resp.Warnings) != 0 {
		t.Errorf("不应有警告，实际: %v", resp.Warnings)
	}

	saved := repos.schedule.schedules["order-1"]
	entriesA := entriesByStep(saved, "step-a")
	entriesB := entriesByStep(saved, "step-b")
	if len(entriesA) == 0 || len(entriesB) == 0 {
		t.Fatal("A、B 两道工序都应有排程项")
	}

	// A 总工时 100×10s，单班内完成
	if len(entriesA) != 1 {
		t.Errorf("A 应为单个排程项，实际 %d 个", len(entriesA))
	}
	wantEnd := time.Date(2026, 9, 7, 8, 16, 40, 0, time.Local)
	if !entriesA[0].EndTime.Equal(wantEnd) {
		t.Errorf("A 完工时间期望 %v，实际 %v", wantEnd, entriesA[0].EndTime)
	}

	// B 不得早于 A 的计划完工开始
	aEnd := entriesA[len(entriesA)-1].EndTime
	for _, e := range entriesB {
		if e.StartTime.Before(aEnd) {
			t.Errorf("B 排程项 %v 早于 A 完工 %v", e.StartTime, aEnd)
		}
	}

	// 订单状态流转 pending → scheduled
	if repos.order.orders["order-1"].Status != model.OrderStatusScheduled {
		t.Errorf("订单状态期望 scheduled，实际 %s", repos.order.orders["order-1"].Status)
	}
}

func TestScheduleService_Generate_PlannedOutputSumsToQuantity(t *testing.T) {
	svc, repos := setupScheduleService(testConfig())
	seedTwoStepProduct(repos, 100)

	generateForTest(t, svc)

	saved := repos.schedule.schedules["order-1"]
	for _, stepID := range []string{"step-a", "step-b"} {
		sum := 0
		for _, e := range entriesByStep(saved, stepID) {
			sum += e.PlannedOutput
		}
		if sum != 100 {
			t.Errorf("工序 %s 计划产量合计期望 100，实际 %d", stepID, sum)
		}
	}
}

func TestScheduleService_Generate_SplitsAcrossDays(t *testing.T) {
	svc, repos := setupScheduleService(testConfig())
	// 5000 件 × 10s = 50000s > 8h，必须跨天拆分
	seedTwoStepProduct(repos, 5000)

	generateForTest(t, svc)

	saved := repos.schedule.schedules["order-1"]
	entriesA := entriesByStep(saved, "step-a")
	if len(entriesA) < 2 {
		t.Fatalf("A 应跨天拆分为多个排程项，实际 %d 个", len(entriesA))
	}

	sum := 0
	for _, e := range entriesA {
		sum += e.PlannedOutput
		// 排程项不得跨天
		if e.EndTime.After(e.StartTime) && e.StartTime.YearDay() != e.EndTime.YearDay() {
			t.Errorf("排程项跨天: %v → %v", e.StartTime, e.EndTime)
		}
	}
	if sum != 5000 {
		t.Errorf("计划产量合计期望 5000，实际 %d", sum)
	}

	// 首日满班 8h/10s = 2880 件
	if entriesA[0].PlannedOutput != 2880 {
		t.Errorf("首日产量期望 2880，实际 %d", entriesA[0].PlannedOutput)
	}
}

func TestScheduleService_Generate_Apportionment(t *testing.T) {
	svc, repos := setupScheduleService(testConfig())
	seedTwoStepProduct(repos, 100)

	// 缝纫工序两名工人：熟练度 5 与 3，产量按吞吐加权分摊，零头给高者
	repos.worker.workers["w-3"] = &model.Worker{
		WorkerID: "w-3", Name: "赵敏", Status: model.WorkerStatusActive,
		SkillCategory: model.SkillSewing,
	}
	repos.worker.proficiencies["w-2:step-b"] = &model.Proficiency{WorkerID: "w-2", StepID: "step-b", Level: 5}
	repos.worker.proficiencies["w-3:step-b"] = &model.Proficiency{WorkerID: "w-3", StepID: "step-b", Level: 3}

	generateForTest(t, svc)

	saved := repos.schedule.schedules["order-1"]
	entriesB := entriesByStep(saved, "step-b")
	if len(entriesB) != 1 {
		t.Fatalf("B 应为单个排程项，实际 %d 个", len(entriesB))
	}

	byWorker := make(map[string]int)
	total := 0
	for _, a := range entriesB[0].Assignments {
		byWorker[a.WorkerID] = a.PlannedOutput
		total += a.PlannedOutput
	}
	if total != entriesB[0].PlannedOutput {
		t.Errorf("分摊合计 %d 应等于计划产量 %d", total, entriesB[0].PlannedOutput)
	}
	// 100 × 5/8 = 62 + 零头 1 = 63；100 × 3/8 = 37
	if byWorker["w-2"] != 63 || byWorker["w-3"] != 37 {
		t.Errorf("期望 w-2=63 w-3=37，实际 %v", byWorker)
	}
}

func TestScheduleService_Generate_NoEligibleWorkerWarns(t *testing.T) {
	svc, repos := setupScheduleService(testConfig())
	seedTwoStepProduct(repos, 100)
	delete(repos.worker.workers, "w-2") // 无缝纫工人

	resp := generateForTest(t, svc)

	if len(resp.Warnings) != 1 {
		t.Fatalf("期望 1 条警告，实际 %d", len(resp.Warnings))
	}
	if resp.Warnings[0].StepCode != "SEW1" {
		t.Errorf("警告应指向 SEW1，实际 %s", resp.Warnings[0].StepCode)
	}

	// 排程项生成但未派工
	saved := repos.schedule.schedules["order-1"]
	for _, e := range entriesByStep(saved, "step-b") {
		if len(e.Assignments) != 0 {
			t.Errorf("无可派工人的排程项不应有分配，实际 %d", len(e.Assignments))
		}
	}
}

func TestScheduleService_Generate_ZeroDurationStepAnchors(t *testing.T) {
	svc, repos := setupScheduleService(testConfig())
	seedTwoStepProduct(repos, 100)

	// 追加零工时检验步骤，依赖 B
	product := repos.product.products["prod-1"]
	product.Steps = append(product.Steps, model.ProductStep{
		StepID: "step-c", ProductID: "prod-1", StepCode: "INS1", Sequence: 3,
		Category: model.StepCategoryInspection, TaskName: "终检",
		TimePerPieceSeconds: 0, RequiredSkill: model.SkillGeneral,
		Dependencies: model.StringArray{"step-b"},
	})
	repos.schedule.steps["step-a"] = &product.Steps[0]
	repos.schedule.steps["step-b"] = &product.Steps[1]
	repos.schedule.steps["step-c"] = &product.Steps[2]

	generateForTest(t, svc)

	saved := repos.schedule.schedules["order-1"]
	entriesC := entriesByStep(saved, "step-c")
	if len(entriesC) != 1 {
		t.Fatalf("零工时工序应有 1 个锚点项，实际 %d", len(entriesC))
	}
	if !entriesC[0].StartTime.Equal(entriesC[0].EndTime) {
		t.Error("锚点项应为零长度")
	}
	if entriesC[0].PlannedOutput != 100 {
		t.Errorf("锚点项计划产量期望 100，实际 %d", entriesC[0].PlannedOutput)
	}

	bEnd := entriesByStep(saved, "step-b")[0].EndTime
	if entriesC[0].StartTime.Before(bEnd) {
		t.Errorf("锚点项 %v 早于 B 完工 %v", entriesC[0].StartTime, bEnd)
	}
}

func TestScheduleService_Generate_OversizedSingleUnit(t *testing.T) {
	svc, repos := setupScheduleService(testConfig())
	seedTwoStepProduct(repos, 1)
	// 单件 40000s > 8h 班次，压满全班
	repos.product.products["prod-1"].Steps[0].TimePerPieceSeconds = 40000

	generateForTest(t, svc)

	saved := repos.schedule.schedules["order-1"]
	entriesA := entriesByStep(saved, "step-a")
	if len(entriesA) != 1 {
		t.Fatalf("期望 1 个排程项，实际 %d", len(entriesA))
	}
	wantStart := time.Date(2026, 9, 7, 8, 0, 0, 0, time.Local)
	wantEnd := time.Date(2026, 9, 7, 16, 0, 0, 0, time.Local)
	if !entriesA[0].StartTime.Equal(wantStart) || !entriesA[0].EndTime.Equal(wantEnd) {
		t.Errorf("超长单件应压满全班 %v–%v，实际 %v–%v",
			wantStart, wantEnd, entriesA[0].StartTime, entriesA[0].EndTime)
	}
}

func TestScheduleService_Generate_Deterministic(t *testing.T) {
	svc, repos := setupScheduleService(testConfig())
	seedTwoStepProduct(repos, 250)

	generateForTest(t, svc)
	first := repos.schedule.schedules["order-1"]
	firstShape := scheduleShape(first)

	generateForTest(t, svc)
	second := repos.schedule.schedules["order-1"]

	if got := scheduleShape(second); got != firstShape {
		t.Errorf("相同输入重排结构应一致:\n第一次: %s\n第二次: %s", firstShape, got)
	}
}

func scheduleShape(s *model.Schedule) string {
	shape := ""
	for _, e := range s.Entries {
		shape += e.StepID + "|" + e.StartTime.Format(time.RFC3339) + "|" +
			e.EndTime.Format(time.RFC3339) + "|" + strconv.Itoa(e.PlannedOutput) + ";"
	}
	return shape
}

// ── 校验与错误路径 ──

func TestScheduleService_Generate_OrderNotFound(t *testing.T) {
	svc, _ := setupScheduleService(testConfig())

	_, err := svc.GenerateSchedule(context.Background(), "nonexistent", nil)
	if !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("期望 ErrOrderNotFound，实际: %v", err)
	}
}

func TestScheduleService_Generate_InvalidQuantity(t *testing.T) {
	svc, repos := setupScheduleService(testConfig())
	seedTwoStepProduct(repos, 0)

	_, err := svc.GenerateSchedule(context.Background(), "order-1", nil)
	if !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("期望 ErrInvalidQuantity，实际: %v", err)
	}
}

func TestScheduleService_Generate_ProductNoSteps(t *testing.T) {
	svc, repos := setupScheduleService(testConfig())
	seedTwoStepProduct(repos, 100)
	repos.product.products["prod-1"].Steps = nil

	_, err := svc.GenerateSchedule(context.Background(), "order-1", nil)
	if !errors.Is(err, ErrProductNoSteps) {
		t.Errorf("期望 ErrProductNoSteps，实际: %v", err)
	}
}

func TestScheduleService_Generate_CompletedOrderRejected(t *testing.T) {
	svc, repos := setupScheduleService(testConfig())
	seedTwoStepProduct(repos, 100)
	repos.order.orders["order-1"].Status = model.OrderStatusCompleted

	_, err := svc.GenerateSchedule(context.Background(), "order-1", nil)
	if !errors.Is(err, ErrOrderCompleted) {
		t.Errorf("期望 ErrOrderCompleted，实际: %v", err)
	}
}

func TestScheduleService_Generate_CycleRejected(t *testing.T) {
	svc, repos := setupScheduleService(testConfig())
	seedTwoStepProduct(repos, 100)
	repos.product.products["prod-1"].Steps[0].Dependencies = model.StringArray{"step-b"}

	_, err := svc.GenerateSchedule(context.Background(), "order-1", nil)
	if !errors.Is(err, ErrGraphCycle) {
		t.Errorf("期望 ErrGraphCycle，实际: %v", err)
	}
}

func TestScheduleService_Generate_HorizonExceeded(t *testing.T) {
	cfg := testConfig()
	cfg.Scheduling.MaxScheduleDays = 1
	svc, repos := setupScheduleService(cfg)
	seedTwoStepProduct(repos, 100000) // 100000×10s ≈ 278h，远超 1 天

	_, err := svc.GenerateSchedule(context.Background(), "order-1",
		&dto.GenerateScheduleRequest{StartDate: strPtr(testStartDate)})
	if !errors.Is(err, ErrScheduleTooLong) {
		t.Errorf("期望 ErrScheduleTooLong，实际: %v", err)
	}

	// 超限不得留下部分排程
	if _, ok := repos.schedule.schedules["order-1"]; ok {
		t.Error("排产失败不应落库")
	}
}

func TestScheduleService_Generate_ConcurrentSameOrderRejected(t *testing.T) {
	svc, repos := setupScheduleService(testConfig())
	seedTwoStepProduct(repos, 100)

	// 占用同订单的排产锁，模拟进行中的排产
	impl := svc.(*scheduleService)
	impl.genLocks.Store("order-1", struct{}{})

	_, err := svc.GenerateSchedule(context.Background(), "order-1", nil)
	if !errors.Is(err, ErrGenerationInFlight) {
		t.Errorf("期望 ErrGenerationInFlight，实际: %v", err)
	}

	// 释放后可正常排产
	impl.genLocks.Delete("order-1")
	generateForTest(t, svc)
}

// ════════════════════════════════════════════════════════════
// Replan 测试
// ════════════════════════════════════════════════════════════

func TestScheduleService_Replan_PreservesActuals(t *testing.T) {
	svc, repos := setupScheduleService(testConfig())
	seedTwoStepProduct(repos, 100)

	resp := generateForTest(t, svc)
	scheduleID := resp.Schedule.ID

	// 在 A 的排程项上报工
	saved := repos.schedule.schedules["order-1"]
	startAt := time.Date(2026, 9, 7, 8, 0, 0, 0, time.Local)
	endAt := startAt.Add(20 * time.Minute)
	output := 100
	for i := range saved.Entries {
		if saved.Entries[i].StepID == "step-a" {
			saved.Entries[i].ActualStartTime = &startAt
			saved.Entries[i].ActualEndTime = &endAt
			saved.Entries[i].ActualOutput = &output
		}
	}

	_, err := svc.Replan(context.Background(), scheduleID,
		&dto.ReplanRequest{StartDate: strPtr(testStartDate)})
	if err != nil {
		t.Fatalf("重排应成功: %v", err)
	}

	replanned := repos.schedule.schedules["order-1"]
	if replanned.ScheduleID == scheduleID {
		t.Error("重排应生成新排程")
	}
	entriesA := entriesByStep(replanned, "step-a")
	if len(entriesA) == 0 {
		t.Fatal("A 应有排程项")
	}
	if entriesA[0].ActualStartTime == nil || !entriesA[0].ActualStartTime.Equal(startAt) {
		t.Error("重排应保留 A 的实际开工时间")
	}
	if entriesA[0].ActualOutput == nil || *entriesA[0].ActualOutput != 100 {
		t.Error("重排应保留 A 的实际产量")
	}

	// B 未报工，不应携带实际数据
	for _, e := range entriesByStep(replanned, "step-b") {
		if e.ActualStartTime != nil {
			t.Error("B 不应携带实际数据")
		}
	}
}

func TestScheduleService_Replan_ScheduleNotFound(t *testing.T) {
	svc, _ := setupScheduleService(testConfig())

	_, err := svc.Replan(context.Background(), "nonexistent", nil)
	if !errors.Is(err, ErrScheduleNotFound) {
		t.Errorf("期望 ErrScheduleNotFound，实际: %v", err)
	}
}

func TestScheduleService_GetSchedule_NotFound(t *testing.T) {
	svc, repos := setupScheduleService(testConfig())
	seedTwoStepProduct(repos, 100)

	_, err := svc.GetSchedule(context.Background(), "order-1")
	if !errors.Is(err, ErrScheduleNotFound) {
		t.Errorf("期望 ErrScheduleNotFound，实际: %v", err)
	}
}
