package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"shopfloor/backend/internal/service"
	"shopfloor/backend/pkg/response"
)

// CapacityHandler 产能分析模块 HTTP 处理器
type CapacityHandler struct {
	capacitySvc service.CapacityService
}

// NewCapacityHandler 创建 CapacityHandler
func NewCapacityHandler(capacitySvc service.CapacityService) *CapacityHandler {
	return &CapacityHandler{capacitySvc: capacitySvc}
}

// DeadlineRisks 查询全部未完结订单的交期风险
// GET /api/v1/analytics/deadline-risks
func (h *CapacityHandler) DeadlineRisks(c *gin.Context) {
	risks, err := h.capacitySvc.GetDeadlineRisks(c.Request.Context())
	if err != nil {
		response.InternalError(c, 14100, "交期风险分析失败")
		return
	}
	response.OK(c, gin.H{"list": risks})
}

// OvertimeProjections 查询加班预测
// GET /api/v1/analytics/overtime
func (h *CapacityHandler) OvertimeProjections(c *gin.Context) {
	projections, err := h.capacitySvc.GetOvertimeProjections(c.Request.Context())
	if err != nil {
		response.InternalError(c, 14101, "加班预测失败")
		return
	}
	response.OK(c, gin.H{"list": projections})
}

// CapacityAnalysis 查询产能利用率分析
// GET /api/v1/analytics/capacity?weeks=4
func (h *CapacityHandler) CapacityAnalysis(c *gin.Context) {
	weeks, err := strconv.Atoi(c.DefaultQuery("weeks", "4"))
	if err != nil {
		response.BadRequest(c, 14001, "weeks 必须为整数")
		return
	}

	analysis, err := h.capacitySvc.GetCapacityAnalysis(c.Request.Context(), weeks)
	if err != nil {
		if errors.Is(err, service.ErrInvalidHorizon) {
			response.BadRequest(c, 14002, "weeks 必须为正数")
			return
		}
		response.InternalError(c, 14102, "产能分析失败")
		return
	}
	response.OK(c, analysis)
}
