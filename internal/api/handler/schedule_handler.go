package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"shopfloor/backend/internal/dto"
	"shopfloor/backend/internal/service"
	"shopfloor/backend/pkg/response"
)

// ScheduleHandler 排产模块 HTTP 处理器
type ScheduleHandler struct {
	scheduleSvc service.ScheduleService
}

// NewScheduleHandler 创建 ScheduleHandler
func NewScheduleHandler(scheduleSvc service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{scheduleSvc: scheduleSvc}
}

// Generate 为订单生成排程
// POST /api/v1/orders/:id/schedule
func (h *ScheduleHandler) Generate(c *gin.Context) {
	orderID := c.Param("id")
	if orderID == "" {
		response.BadRequest(c, 13001, "订单ID不能为空")
		return
	}

	// 请求体可为空（缺省今天开始排产）
	var req dto.GenerateScheduleRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, 13001, "参数校验失败")
			return
		}
	}

	result, err := h.scheduleSvc.GenerateSchedule(c.Request.Context(), orderID, &req)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.Created(c, result)
}

// Replan 重新排产
// POST /api/v1/schedules/:id/replan
func (h *ScheduleHandler) Replan(c *gin.Context) {
	scheduleID := c.Param("id")
	if scheduleID == "" {
		response.BadRequest(c, 13001, "排程ID不能为空")
		return
	}

	var req dto.ReplanRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, 13001, "参数校验失败")
			return
		}
	}

	result, err := h.scheduleSvc.Replan(c.Request.Context(), scheduleID, &req)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OK(c, result)
}

// GetByOrder 查询订单当前排程
// GET /api/v1/orders/:id/schedule
func (h *ScheduleHandler) GetByOrder(c *gin.Context) {
	orderID := c.Param("id")
	if orderID == "" {
		response.BadRequest(c, 13001, "订单ID不能为空")
		return
	}

	schedule, err := h.scheduleSvc.GetSchedule(c.Request.Context(), orderID)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OK(c, schedule)
}

func (h *ScheduleHandler) handleScheduleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		response.NotFound(c, 13101, "订单不存在")
	case errors.Is(err, service.ErrProductNotFound):
		response.NotFound(c, 13102, "产品不存在")
	case errors.Is(err, service.ErrScheduleNotFound):
		response.NotFound(c, 13103, "排程不存在")
	case errors.Is(err, service.ErrInvalidQuantity):
		response.BadRequest(c, 13104, "订单数量必须为正数")
	case errors.Is(err, service.ErrProductNoSteps):
		response.BadRequest(c, 13105, "产品未配置工序")
	case errors.Is(err, service.ErrGraphCycle):
		response.BadRequest(c, 13106, "工序依赖存在环")
	case errors.Is(err, service.ErrGraphDanglingDependency):
		response.BadRequest(c, 13107, "工序依赖指向不存在的工序")
	case errors.Is(err, service.ErrOrderCompleted):
		response.BadRequest(c, 13108, "已完成订单不可重新排产")
	case errors.Is(err, service.ErrScheduleTooLong):
		response.BadRequest(c, 13109, "排产超出允许的最大排程天数")
	case errors.Is(err, service.ErrGenerationInFlight):
		response.Conflict(c, 13110, "该订单的排产正在执行中，请稍后重试")
	default:
		response.InternalError(c, 13100, "排产失败")
	}
}
