package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"shopfloor/backend/internal/dto"
	"shopfloor/backend/internal/service"
	"shopfloor/backend/pkg/response"
)

// CalendarHandler 假日日历模块 HTTP 处理器
type CalendarHandler struct {
	calendarSvc service.CalendarService
}

// NewCalendarHandler 创建 CalendarHandler
func NewCalendarHandler(calendarSvc service.CalendarService) *CalendarHandler {
	return &CalendarHandler{calendarSvc: calendarSvc}
}

// ListHolidays 查询假日列表
// GET /api/v1/holidays
func (h *CalendarHandler) ListHolidays(c *gin.Context) {
	holidays, err := h.calendarSvc.ListHolidays(c.Request.Context())
	if err != nil {
		response.InternalError(c, 16100, "查询假日失败")
		return
	}
	response.OK(c, gin.H{"list": holidays})
}

// CreateHoliday 创建假日
// POST /api/v1/holidays
func (h *CalendarHandler) CreateHoliday(c *gin.Context) {
	var req dto.CreateHolidayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 16001, "参数校验失败")
		return
	}

	holiday, err := h.calendarSvc.CreateHoliday(c.Request.Context(), &req)
	if err != nil {
		response.InternalError(c, 16100, "创建假日失败")
		return
	}
	response.Created(c, holiday)
}

// DeleteHoliday 删除假日
// DELETE /api/v1/holidays/:id
func (h *CalendarHandler) DeleteHoliday(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 16001, "假日ID不能为空")
		return
	}

	if err := h.calendarSvc.DeleteHoliday(c.Request.Context(), id); err != nil {
		if errors.Is(err, service.ErrHolidayNotFound) {
			response.NotFound(c, 16101, "假日不存在")
			return
		}
		response.InternalError(c, 16100, "删除假日失败")
		return
	}
	response.OK(c, nil)
}

// ImportICS 从 ICS 日历导入假日
// POST /api/v1/holidays/import-ics
func (h *CalendarHandler) ImportICS(c *gin.Context) {
	var req dto.ImportHolidayICSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 16001, "参数校验失败")
		return
	}

	result, err := h.calendarSvc.ImportICS(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrICSFetchFailed):
			response.BadRequest(c, 16002, "拉取 ICS 日历失败")
		case errors.Is(err, service.ErrICSParseFailed):
			response.BadRequest(c, 16003, "解析 ICS 日历失败")
		default:
			response.InternalError(c, 16100, "导入假日失败")
		}
		return
	}
	response.OK(c, result)
}
