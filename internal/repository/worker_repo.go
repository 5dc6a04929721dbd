package repository

import (
	"context"

	"gorm.io/gorm"

	"shopfloor/backend/internal/model"
)

// WorkerRepository 工人/资质/熟练度数据访问接口
type WorkerRepository interface {
	GetByID(ctx context.Context, id string) (*model.Worker, error)
	List(ctx context.Context) ([]model.Worker, error)
	ListActive(ctx context.Context) ([]model.Worker, error)
	ListCertifications(ctx context.Context) ([]model.Certification, error)
	ListProficienciesBySteps(ctx context.Context, stepIDs []string) ([]model.Proficiency, error)
	GetProficiency(ctx context.Context, workerID, stepID string) (*model.Proficiency, error)
	UpsertProficiency(ctx context.Context, p *model.Proficiency) error
	AppendProficiencyHistory(ctx context.Context, h *model.ProficiencyHistory) error
	ListProficiencyHistory(ctx context.Context, workerID string, offset, limit int) ([]model.ProficiencyHistory, int64, error)
}

type workerRepo struct {
	db *gorm.DB
}

func NewWorkerRepo(db *gorm.DB) WorkerRepository {
	return &workerRepo{db: db}
}

func (r *workerRepo) GetByID(ctx context.Context, id string) (*model.Worker, error) {
	var worker model.Worker
	err := r.db.WithContext(ctx).
		Preload("Certifications").
		Where("worker_id = ?", id).
		First(&worker).Error
	if err != nil {
		return nil, err
	}
	return &worker, nil
}

func (r *workerRepo) List(ctx context.Context) ([]model.Worker, error) {
	var workers []model.Worker
	err := r.db.WithContext(ctx).
		Preload("Certifications").
		Order("name ASC").
		Find(&workers).Error
	return workers, err
}

func (r *workerRepo) ListActive(ctx context.Context) ([]model.Worker, error) {
	var workers []model.Worker
	err := r.db.WithContext(ctx).
		Preload("Certifications").
		Where("status = ?", model.WorkerStatusActive).
		Order("name ASC").
		Find(&workers).Error
	return workers, err
}

func (r *workerRepo) ListCertifications(ctx context.Context) ([]model.Certification, error) {
	var certs []model.Certification
	err := r.db.WithContext(ctx).Find(&certs).Error
	return certs, err
}

func (r *workerRepo) ListProficienciesBySteps(ctx context.Context, stepIDs []string) ([]model.Proficiency, error) {
	if len(stepIDs) == 0 {
		return nil, nil
	}
	var proficiencies []model.Proficiency
	err := r.db.WithContext(ctx).
		Where("step_id IN ?", stepIDs).
		Find(&proficiencies).Error
	return proficiencies, err
}

func (r *workerRepo) GetProficiency(ctx context.Context, workerID, stepID string) (*model.Proficiency, error) {
	var p model.Proficiency
	err := r.db.WithContext(ctx).
		Where("worker_id = ? AND step_id = ?", workerID, stepID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *workerRepo) UpsertProficiency(ctx context.Context, p *model.Proficiency) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *workerRepo) AppendProficiencyHistory(ctx context.Context, h *model.ProficiencyHistory) error {
	return r.db.WithContext(ctx).Create(h).Error
}

func (r *workerRepo) ListProficiencyHistory(ctx context.Context, workerID string, offset, limit int) ([]model.ProficiencyHistory, int64, error) {
	var history []model.ProficiencyHistory
	var total int64

	db := r.db.WithContext(ctx).Model(&model.ProficiencyHistory{}).
		Where("worker_id = ?", workerID)

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := db.Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&history).Error
	return history, total, err
}
