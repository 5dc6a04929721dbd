package dto

// ── 排产模块 DTO ──

// GenerateScheduleRequest 排产请求
type GenerateScheduleRequest struct {
	StartDate *string `json:"start_date" binding:"omitempty,datetime=2006-01-02"` // 缺省为今天
}

// ReplanRequest 重排请求
type ReplanRequest struct {
	StartDate *string `json:"start_date" binding:"omitempty,datetime=2006-01-02"`
}

// ScheduleWarning 排产非致命警告（如某工序无可派工人）
type ScheduleWarning struct {
	StepCode      string `json:"step_code"`
	Category      string `json:"category"`
	RequiredSkill string `json:"required_skill"`
	Message       string `json:"message"`
}

// GenerateScheduleResponse 排产响应
type GenerateScheduleResponse struct {
	Schedule *ScheduleResponse `json:"schedule"`
	Warnings []ScheduleWarning `json:"warnings"`
}

// ScheduleResponse 排程响应
type ScheduleResponse struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"order_id"`
	StartDate   string          `json:"start_date"`
	GeneratedAt string          `json:"generated_at"`
	Entries     []EntryResponse `json:"entries"`
}

// EntryResponse 排程项响应
type EntryResponse struct {
	ID              string               `json:"id"`
	ScheduleID      string               `json:"schedule_id"`
	StepID          string               `json:"step_id"`
	StepCode        string               `json:"step_code,omitempty"`
	TaskName        string               `json:"task_name,omitempty"`
	Category        string               `json:"category,omitempty"`
	WorkDate        string               `json:"work_date"`
	StartTime       string               `json:"start_time"`
	EndTime         string               `json:"end_time"`
	PlannedOutput   int                  `json:"planned_output"`
	ActualStartTime *string              `json:"actual_start_time,omitempty"`
	ActualEndTime   *string              `json:"actual_end_time,omitempty"`
	ActualOutput    *int                 `json:"actual_output,omitempty"`
	Status          string               `json:"status"`
	Assignments     []AssignmentResponse `json:"assignments"`
}

// AssignmentResponse 排程项人员分配响应
type AssignmentResponse struct {
	ID            string   `json:"id"`
	WorkerID      string   `json:"worker_id"`
	WorkerName    string   `json:"worker_name,omitempty"`
	PlannedOutput int      `json:"planned_output"`
	ActualOutput  *int     `json:"actual_output,omitempty"`
	Efficiency    *float64 `json:"efficiency,omitempty"`
}
