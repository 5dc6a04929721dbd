package dto

// ── 假日日历 DTO ──

// CreateHolidayRequest 创建假日请求
type CreateHolidayRequest struct {
	Date string `json:"date" binding:"required,datetime=2006-01-02"`
	Name string `json:"name" binding:"required,min=1,max=100"`
}

// ImportHolidayICSRequest 从 ICS 日历导入假日请求
type ImportHolidayICSRequest struct {
	URL string `json:"url" binding:"required,url"`
}

// HolidayResponse 假日响应
type HolidayResponse struct {
	ID   string `json:"id"`
	Date string `json:"date"`
	Name string `json:"name"`
}

// ImportHolidayICSResponse 导入结果
type ImportHolidayICSResponse struct {
	Imported int `json:"imported"`
}
