package model

import "time"

// 排程项派生状态
const (
	EntryStatusNotStarted = "not_started"
	EntryStatusInProgress = "in_progress"
	EntryStatusCompleted  = "completed"
)

// Schedule 排程表 — 对应 schedules
//
// 一个订单同一时刻至多持有一张排程；重排时整张替换，
// 不存在对排程结构的局部修补（仅实际数据可按项更新）。
type Schedule struct {
	ScheduleID  string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"schedule_id"`
	OrderID     string    `gorm:"type:uuid;not null;uniqueIndex"                 json:"order_id"`
	StartDate   time.Time `gorm:"type:date;not null"                             json:"start_date"`
	GeneratedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"generated_at"`
	BaseModel

	// 关联
	Order   *Order          `gorm:"foreignKey:OrderID;references:OrderID" json:"order,omitempty"`
	Entries []ScheduleEntry `gorm:"foreignKey:ScheduleID"                 json:"entries,omitempty"`
}

func (Schedule) TableName() string { return "schedules" }

// ScheduleEntry 排程项 — 对应 schedule_entries
//
// 计划工作的原子单位：某工序在某日期的一个时间窗，
// 实际数据（actual_*）在报工前保持为空。
type ScheduleEntry struct {
	EntryID         string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"entry_id"`
	ScheduleID      string     `gorm:"type:uuid;not null"                             json:"schedule_id"`
	StepID          string     `gorm:"type:uuid;not null"                             json:"step_id"`
	WorkDate        time.Time  `gorm:"type:date;not null"                             json:"work_date"`
	StartTime       time.Time  `gorm:"not null"                                       json:"start_time"`
	EndTime         time.Time  `gorm:"not null"                                       json:"end_time"`
	PlannedOutput   int        `gorm:"not null;default:0"                             json:"planned_output"`
	ActualStartTime *time.Time `json:"actual_start_time,omitempty"`
	ActualEndTime   *time.Time `json:"actual_end_time,omitempty"`
	ActualOutput    *int       `json:"actual_output,omitempty"`
	BaseModel

	// 关联
	Schedule    *Schedule         `gorm:"foreignKey:ScheduleID;references:ScheduleID" json:"-"`
	Step        *ProductStep      `gorm:"foreignKey:StepID;references:StepID"         json:"step,omitempty"`
	Assignments []EntryAssignment `gorm:"foreignKey:EntryID"                          json:"assignments,omitempty"`
}

func (ScheduleEntry) TableName() string { return "schedule_entries" }

// Status 派生状态：由实际字段推断，不落库
func (e *ScheduleEntry) Status() string {
	if e.ActualEndTime != nil && e.ActualOutput != nil {
		return EntryStatusCompleted
	}
	if e.ActualStartTime != nil {
		return EntryStatusInProgress
	}
	return EntryStatusNotStarted
}

// EntryAssignment 排程项人员分配 — 对应 entry_assignments
//
// Efficiency 在报工后由效率反馈回路写入（expected/actual × 100）。
type EntryAssignment struct {
	AssignmentID  string   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"assignment_id"`
	EntryID       string   `gorm:"type:uuid;not null"                             json:"entry_id"`
	WorkerID      string   `gorm:"type:uuid;not null"                             json:"worker_id"`
	PlannedOutput int      `gorm:"not null;default:0"                             json:"planned_output"`
	ActualOutput  *int     `json:"actual_output,omitempty"`
	Efficiency    *float64 `gorm:"type:numeric(8,2)"                              json:"efficiency,omitempty"`
	BaseModel

	// 关联
	Worker *Worker `gorm:"foreignKey:WorkerID;references:WorkerID" json:"worker,omitempty"`
}

func (EntryAssignment) TableName() string { return "entry_assignments" }
