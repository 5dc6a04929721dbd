package service

import (
	"context"
	"sort"
	"time"

	"gorm.io/gorm"

	"shopfloor/backend/internal/model"
	"shopfloor/backend/internal/repository"
	pkgerrors "shopfloor/backend/pkg/errors"
)

// ── Mock ProductRepository ──

type mockProductRepo struct {
	products map[string]*model.Product
}

func newMockProductRepo() *mockProductRepo {
	return &mockProductRepo{products: make(map[string]*model.Product)}
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*model.Product, error) {
	if p, ok := m.products[id]; ok {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockProductRepo) List(_ context.Context) ([]model.Product, error) {
	var result []model.Product
	for _, p := range m.products {
		result = append(result, *p)
	}
	return result, nil
}

func (m *mockProductRepo) ListSteps(_ context.Context, productID string) ([]model.ProductStep, error) {
	if p, ok := m.products[productID]; ok {
		return p.Steps, nil
	}
	return nil, nil
}

// ── Mock OrderRepository ──

type mockOrderRepo struct {
	orders map[string]*model.Order
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[string]*model.Order)}
}

func (m *mockOrderRepo) GetByID(_ context.Context, id string) (*model.Order, error) {
	if o, ok := m.orders[id]; ok {
		return o, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockOrderRepo) ListOpen(_ context.Context) ([]model.Order, error) {
	var result []model.Order
	for _, o := range m.orders {
		if o.IsOpen() {
			result = append(result, *o)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].DueDate.Equal(result[j].DueDate) {
			return result[i].DueDate.Before(result[j].DueDate)
		}
		return result[i].OrderID < result[j].OrderID
	})
	return result, nil
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, id, status string) error {
	if o, ok := m.orders[id]; ok {
		o.Status = status
		return nil
	}
	return gorm.ErrRecordNotFound
}

// ── Mock ScheduleRepository ──

type mockScheduleRepo struct {
	orders    *mockOrderRepo
	steps     map[string]*model.ProductStep // step_id → step，GetEntry/List 时回填 Step
	schedules map[string]*model.Schedule    // order_id → schedule
	// "worker_id:step_id" → 效率记录，最新在前
	efficiencies map[string][]float64
}

func newMockScheduleRepo(orders *mockOrderRepo) *mockScheduleRepo {
	return &mockScheduleRepo{
		orders:       orders,
		steps:        make(map[string]*model.ProductStep),
		schedules:    make(map[string]*model.Schedule),
		efficiencies: make(map[string][]float64),
	}
}

func (m *mockScheduleRepo) fillStep(e *model.ScheduleEntry) {
	if e.Step == nil {
		e.Step = m.steps[e.StepID]
	}
}

func (m *mockScheduleRepo) GetByID(_ context.Context, id string) (*model.Schedule, error) {
	for _, s := range m.schedules {
		if s.ScheduleID == id {
			for i := range s.Entries {
				m.fillStep(&s.Entries[i])
			}
			return s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockScheduleRepo) GetByOrder(_ context.Context, orderID string) (*model.Schedule, error) {
	if s, ok := m.schedules[orderID]; ok {
		for i := range s.Entries {
			m.fillStep(&s.Entries[i])
		}
		return s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockScheduleRepo) Replace(_ context.Context, schedule *model.Schedule, orderStatus string) error {
	m.schedules[schedule.OrderID] = schedule
	if o, ok := m.orders.orders[schedule.OrderID]; ok {
		o.Status = orderStatus
	}
	return nil
}

func (m *mockScheduleRepo) ListEntriesBetween(_ context.Context, from, to time.Time) ([]model.ScheduleEntry, error) {
	var result []model.ScheduleEntry
	for _, s := range m.schedules {
		for i := range s.Entries {
			e := s.Entries[i]
			if e.WorkDate.Before(from) || e.WorkDate.After(to) {
				continue
			}
			m.fillStep(&e)
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *mockScheduleRepo) GetEntry(_ context.Context, entryID string) (*model.ScheduleEntry, error) {
	for _, s := range m.schedules {
		for i := range s.Entries {
			if s.Entries[i].EntryID == entryID {
				e := &s.Entries[i]
				m.fillStep(e)
				e.Schedule = s
				return e, nil
			}
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockScheduleRepo) UpdateEntryActuals(_ context.Context, entry *model.ScheduleEntry) error {
	for _, s := range m.schedules {
		for i := range s.Entries {
			if s.Entries[i].EntryID == entry.EntryID {
				s.Entries[i].ActualStartTime = entry.ActualStartTime
				s.Entries[i].ActualEndTime = entry.ActualEndTime
				s.Entries[i].ActualOutput = entry.ActualOutput
				return nil
			}
		}
	}
	return pkgerrors.ErrOptimisticLock
}

func (m *mockScheduleRepo) UpdateAssignmentActuals(_ context.Context, assignment *model.EntryAssignment) error {
	for _, s := range m.schedules {
		for i := range s.Entries {
			e := &s.Entries[i]
			for j := range e.Assignments {
				a := &e.Assignments[j]
				if a.AssignmentID != assignment.AssignmentID {
					continue
				}
				a.ActualOutput = assignment.ActualOutput
				a.Efficiency = assignment.Efficiency
				if assignment.Efficiency != nil {
					key := a.WorkerID + ":" + e.StepID
					m.efficiencies[key] = append([]float64{*assignment.Efficiency}, m.efficiencies[key]...)
				}
				return nil
			}
		}
	}
	return pkgerrors.ErrOptimisticLock
}

func (m *mockScheduleRepo) CountIncompleteEntries(_ context.Context, scheduleID string) (int64, error) {
	var count int64
	for _, s := range m.schedules {
		if s.ScheduleID != scheduleID {
			continue
		}
		for i := range s.Entries {
			e := &s.Entries[i]
			if e.ActualEndTime == nil || e.ActualOutput == nil {
				count++
			}
		}
	}
	return count, nil
}

func (m *mockScheduleRepo) ListRecentEfficiencies(_ context.Context, workerID, stepID string, limit int) ([]float64, error) {
	recent := m.efficiencies[workerID+":"+stepID]
	if len(recent) > limit {
		recent = recent[:limit]
	}
	return recent, nil
}

// ── Mock WorkerRepository ──

type mockWorkerRepo struct {
	workers       map[string]*model.Worker
	certs         []model.Certification
	proficiencies map[string]*model.Proficiency // "worker_id:step_id"
	history       []model.ProficiencyHistory
}

func newMockWorkerRepo() *mockWorkerRepo {
	return &mockWorkerRepo{
		workers:       make(map[string]*model.Worker),
		proficiencies: make(map[string]*model.Proficiency),
	}
}

func (m *mockWorkerRepo) GetByID(_ context.Context, id string) (*model.Worker, error) {
	if w, ok := m.workers[id]; ok {
		return w, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockWorkerRepo) List(_ context.Context) ([]model.Worker, error) {
	var result []model.Worker
	for _, w := range m.workers {
		result = append(result, *w)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].WorkerID < result[j].WorkerID })
	return result, nil
}

func (m *mockWorkerRepo) ListActive(_ context.Context) ([]model.Worker, error) {
	var result []model.Worker
	for _, w := range m.workers {
		if w.Status == model.WorkerStatusActive {
			result = append(result, *w)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].WorkerID < result[j].WorkerID })
	return result, nil
}

func (m *mockWorkerRepo) ListCertifications(_ context.Context) ([]model.Certification, error) {
	return m.certs, nil
}

func (m *mockWorkerRepo) ListProficienciesBySteps(_ context.Context, stepIDs []string) ([]model.Proficiency, error) {
	wanted := make(map[string]bool, len(stepIDs))
	for _, id := range stepIDs {
		wanted[id] = true
	}
	var result []model.Proficiency
	for _, p := range m.proficiencies {
		if wanted[p.StepID] {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (m *mockWorkerRepo) GetProficiency(_ context.Context, workerID, stepID string) (*model.Proficiency, error) {
	if p, ok := m.proficiencies[workerID+":"+stepID]; ok {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockWorkerRepo) UpsertProficiency(_ context.Context, p *model.Proficiency) error {
	m.proficiencies[p.WorkerID+":"+p.StepID] = p
	return nil
}

func (m *mockWorkerRepo) AppendProficiencyHistory(_ context.Context, h *model.ProficiencyHistory) error {
	if h.HistoryID == "" {
		h.HistoryID = "hist-" + time.Now().Format("150405.000000")
	}
	h.CreatedAt = time.Now()
	m.history = append(m.history, *h)
	return nil
}

func (m *mockWorkerRepo) ListProficiencyHistory(_ context.Context, workerID string, offset, limit int) ([]model.ProficiencyHistory, int64, error) {
	var all []model.ProficiencyHistory
	for _, h := range m.history {
		if h.WorkerID == workerID {
			all = append(all, h)
		}
	}
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

// ── Mock HolidayRepository ──

type mockHolidayRepo struct {
	holidays []model.Holiday
}

func newMockHolidayRepo() *mockHolidayRepo {
	return &mockHolidayRepo{}
}

func (m *mockHolidayRepo) List(_ context.Context) ([]model.Holiday, error) {
	return m.holidays, nil
}

func (m *mockHolidayRepo) ListBetween(_ context.Context, from, to time.Time) ([]model.Holiday, error) {
	var result []model.Holiday
	for _, h := range m.holidays {
		if !h.Date.Before(from) && !h.Date.After(to) {
			result = append(result, h)
		}
	}
	return result, nil
}

func (m *mockHolidayRepo) Create(_ context.Context, holiday *model.Holiday) error {
	if holiday.HolidayID == "" {
		holiday.HolidayID = "hol-" + holiday.Date.Format("20060102")
	}
	m.holidays = append(m.holidays, *holiday)
	return nil
}

func (m *mockHolidayRepo) BatchUpsert(_ context.Context, holidays []model.Holiday) error {
	for _, h := range holidays {
		replaced := false
		for i := range m.holidays {
			if m.holidays[i].Date.Equal(h.Date) {
				m.holidays[i].Name = h.Name
				replaced = true
				break
			}
		}
		if !replaced {
			if h.HolidayID == "" {
				h.HolidayID = "hol-" + h.Date.Format("20060102")
			}
			m.holidays = append(m.holidays, h)
		}
	}
	return nil
}

func (m *mockHolidayRepo) Delete(_ context.Context, id string) error {
	for i := range m.holidays {
		if m.holidays[i].HolidayID == id {
			m.holidays = append(m.holidays[:i], m.holidays[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// ── 聚合 ──

// testRepos 聚合所有 mock repo 便于 seed 数据
type testRepos struct {
	product  *mockProductRepo
	order    *mockOrderRepo
	schedule *mockScheduleRepo
	worker   *mockWorkerRepo
	holiday  *mockHolidayRepo
}

func newTestRepos() *testRepos {
	order := newMockOrderRepo()
	return &testRepos{
		product:  newMockProductRepo(),
		order:    order,
		schedule: newMockScheduleRepo(order),
		worker:   newMockWorkerRepo(),
		holiday:  newMockHolidayRepo(),
	}
}

func (r *testRepos) toRepository() *repository.Repository {
	return &repository.Repository{
		Product:  r.product,
		Order:    r.order,
		Schedule: r.schedule,
		Worker:   r.worker,
		Holiday:  r.holiday,
	}
}
