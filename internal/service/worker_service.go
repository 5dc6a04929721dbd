package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"shopfloor/backend/internal/dto"
	"shopfloor/backend/internal/model"
	"shopfloor/backend/internal/repository"
)

var (
	ErrWorkerNotFound     = errors.New("工人不存在")
	ErrStepNotFound       = errors.New("工序不存在")
	ErrInvalidProficiency = errors.New("熟练度等级必须在 1 到 5 之间")
)

// WorkerService 工人与熟练度业务接口
type WorkerService interface {
	GetWorker(ctx context.Context, id string) (*dto.WorkerResponse, error)
	ListWorkers(ctx context.Context) ([]dto.WorkerResponse, error)
	// GetProficiency 返回当前等级，未设置时回退默认等级
	GetProficiency(ctx context.Context, workerID, stepID string) (*dto.ProficiencyResponse, error)
	// SetProficiency 手动设置熟练度，追加 manual 历史记录
	SetProficiency(ctx context.Context, workerID, stepID string, req *dto.SetProficiencyRequest) (*dto.ProficiencyResponse, error)
	ListProficiencyHistory(ctx context.Context, workerID string, page *dto.PaginationRequest) ([]dto.ProficiencyHistoryResponse, int64, error)
}

type workerService struct {
	repo         *repository.Repository
	defaultLevel int
	logger       *zap.Logger
}

func NewWorkerService(repo *repository.Repository, defaultLevel int, logger *zap.Logger) WorkerService {
	return &workerService{repo: repo, defaultLevel: defaultLevel, logger: logger}
}

func (s *workerService) GetWorker(ctx context.Context, id string) (*dto.WorkerResponse, error) {
	worker, err := s.repo.Worker.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorkerNotFound
		}
		s.logger.Error("查询工人失败", zap.Error(err))
		return nil, err
	}
	resp := workerToResponse(worker)
	return &resp, nil
}

func (s *workerService) ListWorkers(ctx context.Context) ([]dto.WorkerResponse, error) {
	workers, err := s.repo.Worker.List(ctx)
	if err != nil {
		s.logger.Error("查询工人列表失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.WorkerResponse, 0, len(workers))
	for i := range workers {
		result = append(result, workerToResponse(&workers[i]))
	}
	return result, nil
}

func (s *workerService) GetProficiency(ctx context.Context, workerID, stepID string) (*dto.ProficiencyResponse, error) {
	level := s.defaultLevel
	p, err := s.repo.Worker.GetProficiency(ctx, workerID, stepID)
	switch {
	case err == nil:
		level = p.Level
	case errors.Is(err, gorm.ErrRecordNotFound):
		// 未设置即默认等级
	default:
		return nil, fmt.Errorf("读取熟练度失败: %w", err)
	}
	return &dto.ProficiencyResponse{WorkerID: workerID, StepID: stepID, Level: level}, nil
}

func (s *workerService) SetProficiency(ctx context.Context, workerID, stepID string, req *dto.SetProficiencyRequest) (*dto.ProficiencyResponse, error) {
	if req.Level < model.ProficiencyMin || req.Level > model.ProficiencyMax {
		return nil, ErrInvalidProficiency
	}
	if _, err := s.repo.Worker.GetByID(ctx, workerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorkerNotFound
		}
		return nil, err
	}

	oldLevel := s.defaultLevel
	if p, err := s.repo.Worker.GetProficiency(ctx, workerID, stepID); err == nil {
		oldLevel = p.Level
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("读取熟练度失败: %w", err)
	}

	if err := s.repo.Worker.UpsertProficiency(ctx, &model.Proficiency{
		WorkerID: workerID,
		StepID:   stepID,
		Level:    req.Level,
	}); err != nil {
		return nil, fmt.Errorf("更新熟练度失败: %w", err)
	}
	if oldLevel != req.Level {
		if err := s.repo.Worker.AppendProficiencyHistory(ctx, &model.ProficiencyHistory{
			WorkerID: workerID,
			StepID:   stepID,
			OldLevel: oldLevel,
			NewLevel: req.Level,
			Reason:   model.ProficiencyReasonManual,
		}); err != nil {
			return nil, fmt.Errorf("写入熟练度历史失败: %w", err)
		}
	}

	return &dto.ProficiencyResponse{WorkerID: workerID, StepID: stepID, Level: req.Level}, nil
}

func (s *workerService) ListProficiencyHistory(ctx context.Context, workerID string, page *dto.PaginationRequest) ([]dto.ProficiencyHistoryResponse, int64, error) {
	offset := (page.Page - 1) * page.PageSize
	history, total, err := s.repo.Worker.ListProficiencyHistory(ctx, workerID, offset, page.PageSize)
	if err != nil {
		s.logger.Error("查询熟练度历史失败", zap.Error(err))
		return nil, 0, err
	}
	result := make([]dto.ProficiencyHistoryResponse, 0, len(history))
	for _, h := range history {
		result = append(result, dto.ProficiencyHistoryResponse{
			ID:        h.HistoryID,
			WorkerID:  h.WorkerID,
			StepID:    h.StepID,
			OldLevel:  h.OldLevel,
			NewLevel:  h.NewLevel,
			Reason:    h.Reason,
			CreatedAt: h.CreatedAt.Format(time.RFC3339),
		})
	}
	return result, total, nil
}

func workerToResponse(w *model.Worker) dto.WorkerResponse {
	resp := dto.WorkerResponse{
		ID:            w.WorkerID,
		Name:          w.Name,
		Status:        w.Status,
		SkillCategory: w.SkillCategory,
	}
	for _, c := range w.Certifications {
		cr := dto.CertificationResponse{EquipmentID: c.EquipmentID}
		if c.ExpiresAt != nil {
			v := c.ExpiresAt.Format(dateLayout)
			cr.ExpiresAt = &v
		}
		resp.Certifications = append(resp.Certifications, cr)
	}
	return resp
}
