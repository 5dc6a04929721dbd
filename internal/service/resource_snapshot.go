package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"shopfloor/backend/internal/model"
	"shopfloor/backend/internal/repository"
)

// resourceSnapshot 一次引擎调用期间的资源快照。
// 工人、资质、熟练度在调用开始时一次性读入，计算过程中绝不回查，
// 保证同一次排产内部派工与槽位分配口径一致。
type resourceSnapshot struct {
	takenAt      time.Time
	workers      []model.Worker                 // 仅 active，按 worker_id 升序
	certs        map[string]map[string]bool     // worker_id → equipment_id → 有效
	proficiency  map[string]int                 // "worker_id:step_id" → 等级
	defaultLevel int
}

func loadResourceSnapshot(ctx context.Context, repo *repository.Repository, stepIDs []string, defaultLevel int) (*resourceSnapshot, error) {
	now := time.Now()

	workers, err := repo.Worker.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取工人列表失败: %w", err)
	}
	sort.Slice(workers, func(i, j int) bool { return workers[i].WorkerID < workers[j].WorkerID })

	certs, err := repo.Worker.ListCertifications(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取设备资质失败: %w", err)
	}
	certMap := make(map[string]map[string]bool)
	for i := range certs {
		c := &certs[i]
		if !c.IsValidAt(now) {
			continue
		}
		if certMap[c.WorkerID] == nil {
			certMap[c.WorkerID] = make(map[string]bool)
		}
		certMap[c.WorkerID][c.EquipmentID] = true
	}

	proficiencies, err := repo.Worker.ListProficienciesBySteps(ctx, stepIDs)
	if err != nil {
		return nil, fmt.Errorf("读取熟练度失败: %w", err)
	}
	profMap := make(map[string]int, len(proficiencies))
	for _, p := range proficiencies {
		profMap[p.WorkerID+":"+p.StepID] = p.Level
	}

	return &resourceSnapshot{
		takenAt:      now,
		workers:      workers,
		certs:        certMap,
		proficiency:  profMap,
		defaultLevel: defaultLevel,
	}, nil
}

// proficiencyFor 工人对工序的熟练度，无记录时返回默认等级
func (s *resourceSnapshot) proficiencyFor(workerID, stepID string) int {
	if level, ok := s.proficiency[workerID+":"+stepID]; ok {
		return level
	}
	return s.defaultLevel
}

// eligibleWorkers 某工序的可派工人：
//   - 状态 active（快照已过滤）
//   - 技能匹配：缝纫工序只派缝纫技能工人；非缝纫工序派通用技能工人，
//     sewingAnyStep 开启时缝纫技能工人也可派到非缝纫工序
//   - 工序绑定设备时须持有该设备的有效资质
func (s *resourceSnapshot) eligibleWorkers(step *model.ProductStep, sewingAnyStep bool) []model.Worker {
	var eligible []model.Worker
	for _, w := range s.workers {
		if !s.skillCompatible(&w, step, sewingAnyStep) {
			continue
		}
		if step.EquipmentID != nil && !s.certs[w.WorkerID][*step.EquipmentID] {
			continue
		}
		eligible = append(eligible, w)
	}
	return eligible
}

func (s *resourceSnapshot) skillCompatible(w *model.Worker, step *model.ProductStep, sewingAnyStep bool) bool {
	if step.RequiredSkill == model.SkillSewing {
		return w.SkillCategory == model.SkillSewing
	}
	if w.SkillCategory == model.SkillSewing {
		return sewingAnyStep
	}
	return true
}
