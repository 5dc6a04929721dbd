package dto

// ── 生产报工 DTO ──

// RecordStartRequest 开工报工请求
type RecordStartRequest struct {
	ActualStartTime string `json:"actual_start_time" binding:"required"`
}

// RecordCompletionRequest 完工报工请求
type RecordCompletionRequest struct {
	ActualOutput  int    `json:"actual_output"   binding:"required,min=1"`
	ActualEndTime string `json:"actual_end_time" binding:"required"`
}

// ProficiencyChange 熟练度自动变更记录
type ProficiencyChange struct {
	WorkerID   string `json:"worker_id"`
	WorkerName string `json:"worker_name,omitempty"`
	StepID     string `json:"step_id"`
	OldLevel   int    `json:"old_level"`
	NewLevel   int    `json:"new_level"`
	Reason     string `json:"reason"` // auto_increase | auto_decrease
}

// RecordCompletionResponse 完工报工响应
type RecordCompletionResponse struct {
	Entry              *EntryResponse      `json:"entry"`
	Efficiency         float64             `json:"efficiency"` // expected/actual × 100
	ProficiencyChanges []ProficiencyChange `json:"proficiency_changes"`
}
