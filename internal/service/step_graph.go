package service

import (
	"errors"
	"fmt"
	"sort"

	"shopfloor/backend/internal/model"
)

// ── 工序依赖图错误 ──

var (
	ErrGraphCycle              = errors.New("工序依赖存在环")
	ErrGraphDanglingDependency = errors.New("工序依赖指向不存在的工序")
)

// stepGraph 某产品全部工序构成的有向无环图及其拓扑序。
// 拓扑序内平级工序按 sequence 升序、再按 step_code 升序，保证排产结果可复现。
type stepGraph struct {
	steps map[string]*model.ProductStep // step_id → step
	order []*model.ProductStep          // 拓扑序
}

// buildStepGraph 将产品的工序列表构建为 DAG 并求拓扑序。
// 依赖指向不存在的 step_id 返回 ErrGraphDanglingDependency；
// 存在环（含自依赖）返回 ErrGraphCycle。纯函数，无副作用。
func buildStepGraph(steps []model.ProductStep) (*stepGraph, error) {
	g := &stepGraph{
		steps: make(map[string]*model.ProductStep, len(steps)),
		order: make([]*model.ProductStep, 0, len(steps)),
	}
	for i := range steps {
		g.steps[steps[i].StepID] = &steps[i]
	}

	// 入度统计 + 依赖校验
	indegree := make(map[string]int, len(steps))
	dependents := make(map[string][]string, len(steps)) // step_id → 依赖它的工序
	for i := range steps {
		step := &steps[i]
		indegree[step.StepID] += 0
		for _, depID := range step.Dependencies {
			dep, ok := g.steps[depID]
			if !ok {
				return nil, fmt.Errorf("%w: 工序 %s 依赖 %s", ErrGraphDanglingDependency, step.StepCode, depID)
			}
			if dep.StepID == step.StepID {
				return nil, fmt.Errorf("%w: 工序 %s 依赖自身", ErrGraphCycle, step.StepCode)
			}
			indegree[step.StepID]++
			dependents[depID] = append(dependents[depID], step.StepID)
		}
	}

	// Kahn 算法，就绪集合按 (sequence, step_code) 排序保证确定性
	ready := make([]*model.ProductStep, 0, len(steps))
	for i := range steps {
		if indegree[steps[i].StepID] == 0 {
			ready = append(ready, &steps[i])
		}
	}
	sortReady(ready)

	for len(ready) > 0 {
		step := ready[0]
		ready = ready[1:]
		g.order = append(g.order, step)

		released := false
		for _, depID := range dependents[step.StepID] {
			indegree[depID]--
			if indegree[depID] == 0 {
				ready = append(ready, g.steps[depID])
				released = true
			}
		}
		if released {
			sortReady(ready)
		}
	}

	if len(g.order) != len(steps) {
		return nil, ErrGraphCycle
	}
	return g, nil
}

func sortReady(steps []*model.ProductStep) {
	sort.Slice(steps, func(i, j int) bool {
		if steps[i].Sequence != steps[j].Sequence {
			return steps[i].Sequence < steps[j].Sequence
		}
		return steps[i].StepCode < steps[j].StepCode
	})
}
