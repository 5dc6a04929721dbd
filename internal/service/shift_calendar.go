package service

import (
	"fmt"
	"time"

	"shopfloor/backend/config"
	"shopfloor/backend/internal/model"
)

// shiftCalendar 班次日历：工作日判定与班次时间计算。
// 一次引擎调用期间不可变；假日在构建时一次性载入。
type shiftCalendar struct {
	startHour   int
	startMinute int
	shiftHours  float64
	workDays    map[time.Weekday]bool
	holidays    map[string]bool // "2006-01-02"
}

const dateLayout = "2006-01-02"

func newShiftCalendar(cfg *config.SchedulingConfig, holidays []model.Holiday) (*shiftCalendar, error) {
	start, err := time.Parse("15:04", cfg.ShiftStart)
	if err != nil {
		return nil, fmt.Errorf("无效的班次起始时间 %q: %w", cfg.ShiftStart, err)
	}

	workDays := make(map[time.Weekday]bool, len(cfg.WorkDays))
	for _, d := range cfg.WorkDays {
		// 配置中 1=周一 … 7=周日
		workDays[time.Weekday(d%7)] = true
	}

	holidaySet := make(map[string]bool, len(holidays))
	for _, h := range holidays {
		holidaySet[h.Date.Format(dateLayout)] = true
	}

	return &shiftCalendar{
		startHour:   start.Hour(),
		startMinute: start.Minute(),
		shiftHours:  cfg.ShiftHours,
		workDays:    workDays,
		holidays:    holidaySet,
	}, nil
}

// IsWorkingDay 是否为工作日（排除周末配置与假日）
func (c *shiftCalendar) IsWorkingDay(d time.Time) bool {
	if !c.workDays[d.Weekday()] {
		return false
	}
	return !c.holidays[d.Format(dateLayout)]
}

// ShiftHoursOn 某日的标准班次时长，非工作日为 0
func (c *shiftCalendar) ShiftHoursOn(d time.Time) float64 {
	if !c.IsWorkingDay(d) {
		return 0
	}
	return c.shiftHours
}

// ShiftStart 某日班次起点
func (c *shiftCalendar) ShiftStart(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), c.startHour, c.startMinute, 0, 0, d.Location())
}

// ShiftEnd 某日班次终点
func (c *shiftCalendar) ShiftEnd(d time.Time) time.Time {
	return c.ShiftStart(d).Add(time.Duration(c.shiftHours * float64(time.Hour)))
}

// NextOpenSlot 不早于 t 的最近可开工时刻：
// 工作日班内返回 t 本身；班前返回当日班次起点；班后或非工作日滚动到下一工作日班次起点。
func (c *shiftCalendar) NextOpenSlot(t time.Time) time.Time {
	for {
		if c.IsWorkingDay(t) {
			start := c.ShiftStart(t)
			end := c.ShiftEnd(t)
			if t.Before(start) {
				return start
			}
			if t.Before(end) {
				return t
			}
		}
		// 滚动到次日零点，再判定
		t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1)
	}
}

// HoursBetween 从 from 到 due 当日（含）之间剩余的班次工时
func (c *shiftCalendar) HoursBetween(from, due time.Time) float64 {
	total := 0.0
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	dueDay := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, due.Location())
	// 按日粒度比较：due 给的是日期，from 带当日时刻，同日仍计剩余班次
	if dueDay.Before(day) {
		return 0
	}

	for !day.After(dueDay) {
		if c.IsWorkingDay(day) {
			start := c.ShiftStart(day)
			end := c.ShiftEnd(day)
			// 首日已过去的部分不计
			if from.After(start) {
				start = from
			}
			if start.Before(end) {
				total += end.Sub(start).Hours()
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	return total
}
