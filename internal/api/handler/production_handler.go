package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"shopfloor/backend/internal/dto"
	"shopfloor/backend/internal/service"
	pkgerrors "shopfloor/backend/pkg/errors"
	"shopfloor/backend/pkg/response"
)

// ProductionHandler 生产报工模块 HTTP 处理器
type ProductionHandler struct {
	productionSvc service.ProductionService
}

// NewProductionHandler 创建 ProductionHandler
func NewProductionHandler(productionSvc service.ProductionService) *ProductionHandler {
	return &ProductionHandler{productionSvc: productionSvc}
}

// RecordStart 开工报工
// POST /api/v1/entries/:id/start
func (h *ProductionHandler) RecordStart(c *gin.Context) {
	entryID := c.Param("id")
	if entryID == "" {
		response.BadRequest(c, 15001, "排程项ID不能为空")
		return
	}

	var req dto.RecordStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 15001, "参数校验失败")
		return
	}

	entry, err := h.productionSvc.RecordStart(c.Request.Context(), entryID, &req)
	if err != nil {
		h.handleProductionError(c, err)
		return
	}

	response.OK(c, entry)
}

// RecordCompletion 完工报工
// POST /api/v1/entries/:id/complete
func (h *ProductionHandler) RecordCompletion(c *gin.Context) {
	entryID := c.Param("id")
	if entryID == "" {
		response.BadRequest(c, 15001, "排程项ID不能为空")
		return
	}

	var req dto.RecordCompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 15001, "参数校验失败")
		return
	}

	result, err := h.productionSvc.RecordCompletion(c.Request.Context(), entryID, &req)
	if err != nil {
		h.handleProductionError(c, err)
		return
	}

	response.OK(c, result)
}

func (h *ProductionHandler) handleProductionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrEntryNotFound):
		response.NotFound(c, 15101, "排程项不存在")
	case errors.Is(err, service.ErrEntryAlreadyStarted):
		response.Conflict(c, 15102, "排程项已开工")
	case errors.Is(err, service.ErrEntryAlreadyCompleted):
		response.Conflict(c, 15103, "排程项已完工")
	case errors.Is(err, service.ErrEntryNotStarted):
		response.BadRequest(c, 15104, "排程项尚未开工")
	case errors.Is(err, service.ErrInvalidActualTime):
		response.BadRequest(c, 15105, "实际时间不合法")
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, 15106, "排程已被重排，请刷新后重试")
	default:
		response.InternalError(c, 15100, "报工失败")
	}
}
