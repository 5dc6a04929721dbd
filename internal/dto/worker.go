package dto

// ── 工人与熟练度 DTO ──

// PaginationRequest 分页查询参数
type PaginationRequest struct {
	Page     int `form:"page,default=1"      binding:"omitempty,min=1"`
	PageSize int `form:"page_size,default=20" binding:"omitempty,min=1,max=100"`
}

// WorkerResponse 工人响应
type WorkerResponse struct {
	ID             string                  `json:"id"`
	Name           string                  `json:"name"`
	Status         string                  `json:"status"`
	SkillCategory  string                  `json:"skill_category"`
	Certifications []CertificationResponse `json:"certifications,omitempty"`
}

// CertificationResponse 设备资质响应
type CertificationResponse struct {
	EquipmentID string  `json:"equipment_id"`
	ExpiresAt   *string `json:"expires_at,omitempty"`
}

// ProficiencyResponse 熟练度响应
type ProficiencyResponse struct {
	WorkerID string `json:"worker_id"`
	StepID   string `json:"step_id"`
	Level    int    `json:"level"`
}

// SetProficiencyRequest 手动设置熟练度请求
type SetProficiencyRequest struct {
	Level int `json:"level" binding:"required,min=1,max=5"`
}

// ProficiencyHistoryResponse 熟练度变更历史响应
type ProficiencyHistoryResponse struct {
	ID        string `json:"id"`
	WorkerID  string `json:"worker_id"`
	StepID    string `json:"step_id"`
	OldLevel  int    `json:"old_level"`
	NewLevel  int    `json:"new_level"`
	Reason    string `json:"reason"`
	CreatedAt string `json:"created_at"`
}
