package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"shopfloor/backend/internal/dto"
	"shopfloor/backend/internal/service"
	"shopfloor/backend/pkg/response"
)

// WorkerHandler 工人与熟练度模块 HTTP 处理器
type WorkerHandler struct {
	workerSvc service.WorkerService
}

// NewWorkerHandler 创建 WorkerHandler
func NewWorkerHandler(workerSvc service.WorkerService) *WorkerHandler {
	return &WorkerHandler{workerSvc: workerSvc}
}

// ListWorkers 查询工人列表
// GET /api/v1/workers
func (h *WorkerHandler) ListWorkers(c *gin.Context) {
	workers, err := h.workerSvc.ListWorkers(c.Request.Context())
	if err != nil {
		response.InternalError(c, 12100, "查询工人列表失败")
		return
	}
	response.OK(c, gin.H{"list": workers})
}

// GetWorker 查询单个工人
// GET /api/v1/workers/:id
func (h *WorkerHandler) GetWorker(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 12001, "工人ID不能为空")
		return
	}

	worker, err := h.workerSvc.GetWorker(c.Request.Context(), id)
	if err != nil {
		h.handleWorkerError(c, err)
		return
	}
	response.OK(c, worker)
}

// GetProficiency 查询工人对某工序的熟练度
// GET /api/v1/workers/:id/proficiency/:stepId
func (h *WorkerHandler) GetProficiency(c *gin.Context) {
	workerID, stepID := c.Param("id"), c.Param("stepId")
	if workerID == "" || stepID == "" {
		response.BadRequest(c, 12001, "工人ID与工序ID不能为空")
		return
	}

	p, err := h.workerSvc.GetProficiency(c.Request.Context(), workerID, stepID)
	if err != nil {
		h.handleWorkerError(c, err)
		return
	}
	response.OK(c, p)
}

// SetProficiency 手动设置熟练度
// PUT /api/v1/workers/:id/proficiency/:stepId
func (h *WorkerHandler) SetProficiency(c *gin.Context) {
	workerID, stepID := c.Param("id"), c.Param("stepId")
	if workerID == "" || stepID == "" {
		response.BadRequest(c, 12001, "工人ID与工序ID不能为空")
		return
	}

	var req dto.SetProficiencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 12001, "参数校验失败")
		return
	}

	p, err := h.workerSvc.SetProficiency(c.Request.Context(), workerID, stepID, &req)
	if err != nil {
		h.handleWorkerError(c, err)
		return
	}
	response.OK(c, p)
}

// ListProficiencyHistory 查询熟练度变更历史
// GET /api/v1/workers/:id/proficiency-history
func (h *WorkerHandler) ListProficiencyHistory(c *gin.Context) {
	workerID := c.Param("id")
	if workerID == "" {
		response.BadRequest(c, 12001, "工人ID不能为空")
		return
	}

	var page dto.PaginationRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		response.BadRequest(c, 12001, "分页参数不合法")
		return
	}

	history, total, err := h.workerSvc.ListProficiencyHistory(c.Request.Context(), workerID, &page)
	if err != nil {
		h.handleWorkerError(c, err)
		return
	}
	response.OKPage(c, history, total, page.Page, page.PageSize)
}

func (h *WorkerHandler) handleWorkerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrWorkerNotFound):
		response.NotFound(c, 12101, "工人不存在")
	case errors.Is(err, service.ErrStepNotFound):
		response.NotFound(c, 12102, "工序不存在")
	case errors.Is(err, service.ErrInvalidProficiency):
		response.BadRequest(c, 12002, "熟练度等级不合法")
	default:
		response.InternalError(c, 12100, "工人操作失败")
	}
}
