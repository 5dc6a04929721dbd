package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"shopfloor/backend/internal/dto"
	"shopfloor/backend/internal/model"
)

func setupProductionService() (ProductionService, *testRepos) {
	repos := newTestRepos()
	svc := NewProductionService(testConfig(), repos.toRepository(), zap.NewNop())
	return svc, repos
}

// seedScheduledEntry 种子数据：已排产订单 + 单个排程项（step-a，计划 100 件，派给 w-1）
func seedScheduledEntry(repos *testRepos) {
	seedTwoStepProduct(repos, 100)
	repos.order.orders["order-1"].Status = model.OrderStatusScheduled

	start := time.Date(2026, 9, 7, 8, 0, 0, 0, time.Local)
	repos.schedule.schedules["order-1"] = &model.Schedule{
		ScheduleID: "sched-1", OrderID: "order-1",
		StartDate: dayOf(start), GeneratedAt: time.Now(),
		Entries: []model.ScheduleEntry{
			{
				EntryID: "e-1", ScheduleID: "sched-1", StepID: "step-a",
				WorkDate: dayOf(start), StartTime: start,
				EndTime: start.Add(1000 * time.Second), PlannedOutput: 100,
				Assignments: []model.EntryAssignment{
					{AssignmentID: "as-1", EntryID: "e-1", WorkerID: "w-1", PlannedOutput: 100},
				},
			},
		},
	}
}

func mustStart(t *testing.T, svc ProductionService, entryID, at string) {
	t.Helper()
	_, err := svc.RecordStart(context.Background(), entryID, &dto.RecordStartRequest{ActualStartTime: at})
	if err != nil {
		t.Fatalf("开工报工应成功: %v", err)
	}
}

const startRFC3339 = "2026-09-07T08:00:00+08:00"

func endAfter(d time.Duration) string {
	at, _ := time.Parse(time.RFC3339, startRFC3339)
	return at.Add(d).Format(time.RFC3339)
}

// ════════════════════════════════════════════════════════════
// 开工
// ════════════════════════════════════════════════════════════

func TestProductionService_RecordStart(t *testing.T) {
	svc, repos := setupProductionService()
	seedScheduledEntry(repos)

	entry, err := svc.RecordStart(context.Background(), "e-1",
		&dto.RecordStartRequest{ActualStartTime: startRFC3339})
	if err != nil {
		t.Fatalf("开工报工应成功: %v", err)
	}
	if entry.Status != model.EntryStatusInProgress {
		t.Errorf("状态期望 in_progress，实际 %s", entry.Status)
	}

	// 订单首次开工 scheduled → in_progress
	if repos.order.orders["order-1"].Status != model.OrderStatusInProgress {
		t.Errorf("订单状态期望 in_progress，实际 %s", repos.order.orders["order-1"].Status)
	}
}

func TestProductionService_RecordStart_AlreadyStarted(t *testing.T) {
	svc, repos := setupProductionService()
	seedScheduledEntry(repos)
	mustStart(t, svc, "e-1", startRFC3339)

	_, err := svc.RecordStart(context.Background(), "e-1",
		&dto.RecordStartRequest{ActualStartTime: startRFC3339})
	if !errors.Is(err, ErrEntryAlreadyStarted) {
		t.Errorf("期望 ErrEntryAlreadyStarted，实际: %v", err)
	}
}

func TestProductionService_RecordStart_EntryNotFound(t *testing.T) {
	svc, _ := setupProductionService()

	_, err := svc.RecordStart(context.Background(), "nonexistent",
		&dto.RecordStartRequest{ActualStartTime: startRFC3339})
	if !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("期望 ErrEntryNotFound，实际: %v", err)
	}
}

// ════════════════════════════════════════════════════════════
// 完工 + 效率反馈
// ════════════════════════════════════════════════════════════

func TestProductionService_RecordCompletion_NotStarted(t *testing.T) {
	svc, repos := setupProductionService()
	seedScheduledEntry(repos)

	_, err := svc.RecordCompletion(context.Background(), "e-1",
		&dto.RecordCompletionRequest{ActualOutput: 100, ActualEndTime: endAfter(time.Hour)})
	if !errors.Is(err, ErrEntryNotStarted) {
		t.Errorf("期望 ErrEntryNotStarted，实际: %v", err)
	}
}

func TestProductionService_RecordCompletion_OnStandardTime(t *testing.T) {
	svc, repos := setupProductionService()
	seedScheduledEntry(repos)
	mustStart(t, svc, "e-1", startRFC3339)

	// 100 件 × 10s = 1000s 期望工时，实际正好 1000s → 效率 100
	resp, err := svc.RecordCompletion(context.Background(), "e-1",
		&dto.RecordCompletionRequest{ActualOutput: 100, ActualEndTime: endAfter(1000 * time.Second)})
	if err != nil {
		t.Fatalf("完工报工应成功: %v", err)
	}
	if resp.Efficiency != 100 {
		t.Errorf("效率期望 100，实际 %v", resp.Efficiency)
	}
	// 效率在阈值区间内，不应触发熟练度调整
	if len(resp.ProficiencyChanges) != 0 {
		t.Errorf("不应有熟练度变更，实际: %v", resp.ProficiencyChanges)
	}
	if resp.Entry.Status != model.EntryStatusCompleted {
		t.Errorf("状态期望 completed，实际 %s", resp.Entry.Status)
	}

	// 唯一排程项完工 → 订单 completed
	if repos.order.orders["order-1"].Status != model.OrderStatusCompleted {
		t.Errorf("订单状态期望 completed，实际 %s", repos.order.orders["order-1"].Status)
	}
}

func TestProductionService_RecordCompletion_SlowTriggersAutoDecrease(t *testing.T) {
	svc, repos := setupProductionService()
	seedScheduledEntry(repos)
	mustStart(t, svc, "e-1", startRFC3339)

	// 实际耗时为期望两倍 → 效率 50，低于阈值 80 → 熟练度 3 → 2
	resp, err := svc.RecordCompletion(context.Background(), "e-1",
		&dto.RecordCompletionRequest{ActualOutput: 100, ActualEndTime: endAfter(2000 * time.Second)})
	if err != nil {
		t.Fatalf("完工报工应成功: %v", err)
	}
	if resp.Efficiency != 50 {
		t.Errorf("效率期望 50，实际 %v", resp.Efficiency)
	}
	if len(resp.ProficiencyChanges) != 1 {
		t.Fatalf("期望 1 条熟练度变更，实际 %d", len(resp.ProficiencyChanges))
	}

	change := resp.ProficiencyChanges[0]
	if change.WorkerID != "w-1" || change.OldLevel != 3 || change.NewLevel != 2 ||
		change.Reason != model.ProficiencyReasonAutoDecrease {
		t.Errorf("变更记录不符: %+v", change)
	}

	// 历史只追加
	if len(repos.worker.history) != 1 {
		t.Fatalf("期望 1 条历史记录，实际 %d", len(repos.worker.history))
	}
	h := repos.worker.history[0]
	if h.OldLevel != 3 || h.NewLevel != 2 || h.Reason != model.ProficiencyReasonAutoDecrease {
		t.Errorf("历史记录不符: %+v", h)
	}
}

func TestProductionService_RecordCompletion_FastTriggersAutoIncrease(t *testing.T) {
	svc, repos := setupProductionService()
	seedScheduledEntry(repos)
	mustStart(t, svc, "e-1", startRFC3339)

	// 实际耗时为期望一半 → 效率 200 ≥ 110 → 熟练度 3 → 4
	resp, err := svc.RecordCompletion(context.Background(), "e-1",
		&dto.RecordCompletionRequest{ActualOutput: 100, ActualEndTime: endAfter(500 * time.Second)})
	if err != nil {
		t.Fatalf("完工报工应成功: %v", err)
	}
	if len(resp.ProficiencyChanges) != 1 {
		t.Fatalf("期望 1 条熟练度变更，实际 %d", len(resp.ProficiencyChanges))
	}
	change := resp.ProficiencyChanges[0]
	if change.NewLevel != 4 || change.Reason != model.ProficiencyReasonAutoIncrease {
		t.Errorf("期望升到 4 级，实际: %+v", change)
	}
}

func TestProductionService_RecordCompletion_ProficiencyCappedAtMax(t *testing.T) {
	svc, repos := setupProductionService()
	seedScheduledEntry(repos)
	repos.worker.proficiencies["w-1:step-a"] = &model.Proficiency{
		WorkerID: "w-1", StepID: "step-a", Level: model.ProficiencyMax,
	}
	mustStart(t, svc, "e-1", startRFC3339)

	resp, err := svc.RecordCompletion(context.Background(), "e-1",
		&dto.RecordCompletionRequest{ActualOutput: 100, ActualEndTime: endAfter(500 * time.Second)})
	if err != nil {
		t.Fatalf("完工报工应成功: %v", err)
	}
	if len(resp.ProficiencyChanges) != 0 {
		t.Errorf("满级不应再升，实际: %v", resp.ProficiencyChanges)
	}
}

func TestProductionService_RecordCompletion_TrailingWindowAverage(t *testing.T) {
	svc, repos := setupProductionService()
	seedScheduledEntry(repos)

	// 预置近期效率记录：四次高效率 + 本次低效率，窗口均值仍高于低阈值 → 不降级
	repos.schedule.efficiencies["w-1:step-a"] = []float64{120, 120, 120, 120}
	mustStart(t, svc, "e-1", startRFC3339)

	resp, err := svc.RecordCompletion(context.Background(), "e-1",
		&dto.RecordCompletionRequest{ActualOutput: 100, ActualEndTime: endAfter(2000 * time.Second)})
	if err != nil {
		t.Fatalf("完工报工应成功: %v", err)
	}
	// 窗口均值 (50+120×4)/5 = 106，介于 80 与 110 之间
	if len(resp.ProficiencyChanges) != 0 {
		t.Errorf("窗口均值在阈值内不应调整，实际: %v", resp.ProficiencyChanges)
	}
}

func TestProductionService_RecordCompletion_InvalidEndTime(t *testing.T) {
	svc, repos := setupProductionService()
	seedScheduledEntry(repos)
	mustStart(t, svc, "e-1", startRFC3339)

	// 完工早于开工
	_, err := svc.RecordCompletion(context.Background(), "e-1",
		&dto.RecordCompletionRequest{ActualOutput: 100, ActualEndTime: "2026-09-07T07:00:00+08:00"})
	if !errors.Is(err, ErrInvalidActualTime) {
		t.Errorf("期望 ErrInvalidActualTime，实际: %v", err)
	}
}

func TestProductionService_RecordCompletion_AlreadyCompleted(t *testing.T) {
	svc, repos := setupProductionService()
	seedScheduledEntry(repos)
	mustStart(t, svc, "e-1", startRFC3339)

	req := &dto.RecordCompletionRequest{ActualOutput: 100, ActualEndTime: endAfter(1000 * time.Second)}
	if _, err := svc.RecordCompletion(context.Background(), "e-1", req); err != nil {
		t.Fatalf("首次完工应成功: %v", err)
	}

	_, err := svc.RecordCompletion(context.Background(), "e-1", req)
	if !errors.Is(err, ErrEntryAlreadyCompleted) {
		t.Errorf("期望 ErrEntryAlreadyCompleted，实际: %v", err)
	}
}
