package model

import "time"

// 工人状态
const (
	WorkerStatusActive   = "active"
	WorkerStatusInactive = "inactive"
	WorkerStatusOnLeave  = "on_leave"
)

// 熟练度等级边界与变更原因
const (
	ProficiencyMin     = 1
	ProficiencyMax     = 5
	ProficiencyDefault = 3

	ProficiencyReasonManual       = "manual"
	ProficiencyReasonAutoIncrease = "auto_increase"
	ProficiencyReasonAutoDecrease = "auto_decrease"
)

// Worker 工人表 — 对应 workers
type Worker struct {
	WorkerID      string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"worker_id"`
	Name          string  `gorm:"type:varchar(100);not null"                     json:"name"`
	Status        string  `gorm:"type:varchar(20);not null;default:'active'"     json:"status"`
	SkillCategory string  `gorm:"type:varchar(20);not null;default:'general'"    json:"skill_category"` // sewing | general
	HourlyCost    float64 `gorm:"type:numeric(10,2);not null;default:0"          json:"hourly_cost"`
	BaseModel

	// 关联
	Certifications []Certification `gorm:"foreignKey:WorkerID" json:"certifications,omitempty"`
}

func (Worker) TableName() string { return "workers" }

// Certification 工人设备资质 — 对应 certifications
type Certification struct {
	CertificationID string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"certification_id"`
	WorkerID        string     `gorm:"type:uuid;not null"                             json:"worker_id"`
	EquipmentID     string     `gorm:"type:uuid;not null"                             json:"equipment_id"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"` // NULL 表示永久有效
	CreatedAt       time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

func (Certification) TableName() string { return "certifications" }

// IsValidAt 资质在给定时刻是否有效
func (c *Certification) IsValidAt(t time.Time) bool {
	return c.ExpiresAt == nil || c.ExpiresAt.After(t)
}

// Proficiency 工人对工序的熟练度 — 对应 proficiencies
type Proficiency struct {
	WorkerID  string    `gorm:"type:uuid;primaryKey" json:"worker_id"`
	StepID    string    `gorm:"type:uuid;primaryKey" json:"step_id"`
	Level     int       `gorm:"type:smallint;not null;default:3" json:"level"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Proficiency) TableName() string { return "proficiencies" }

// ProficiencyHistory 熟练度变更历史 — 对应 proficiency_history（只追加，不修改）
type ProficiencyHistory struct {
	HistoryID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"history_id"`
	WorkerID  string    `gorm:"type:uuid;not null"                             json:"worker_id"`
	StepID    string    `gorm:"type:uuid;not null"                             json:"step_id"`
	OldLevel  int       `gorm:"type:smallint;not null"                         json:"old_level"`
	NewLevel  int       `gorm:"type:smallint;not null"                         json:"new_level"`
	Reason    string    `gorm:"type:varchar(20);not null"                      json:"reason"` // manual | auto_increase | auto_decrease
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

func (ProficiencyHistory) TableName() string { return "proficiency_history" }
