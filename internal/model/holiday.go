package model

import "time"

// Holiday 假日表 — 对应 holidays
// 班次日历据此排除非工作日；可手工录入或从 ICS 日历导入。
type Holiday struct {
	HolidayID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"holiday_id"`
	Date      time.Time `gorm:"type:date;not null;uniqueIndex"                 json:"date"`
	Name      string    `gorm:"type:varchar(100);not null"                     json:"name"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

func (Holiday) TableName() string { return "holidays" }
