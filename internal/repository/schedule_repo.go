package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"shopfloor/backend/internal/model"
	pkgerrors "shopfloor/backend/pkg/errors"
)

// ScheduleRepository 排程数据访问接口
type ScheduleRepository interface {
	GetByID(ctx context.Context, id string) (*model.Schedule, error)
	GetByOrder(ctx context.Context, orderID string) (*model.Schedule, error)
	// Replace 原子替换订单排程：删除旧排程（级联删除排程项与分配），
	// 写入新排程并更新订单状态，全部在一个事务内完成。
	Replace(ctx context.Context, schedule *model.Schedule, orderStatus string) error
	ListEntriesBetween(ctx context.Context, from, to time.Time) ([]model.ScheduleEntry, error)
	GetEntry(ctx context.Context, entryID string) (*model.ScheduleEntry, error)
	UpdateEntryActuals(ctx context.Context, entry *model.ScheduleEntry) error
	UpdateAssignmentActuals(ctx context.Context, assignment *model.EntryAssignment) error
	CountIncompleteEntries(ctx context.Context, scheduleID string) (int64, error)
	// ListRecentEfficiencies 按完工时间倒序返回某工人在某工序最近的分配效率
	ListRecentEfficiencies(ctx context.Context, workerID, stepID string, limit int) ([]float64, error)
}

type scheduleRepo struct {
	db *gorm.DB
}

func NewScheduleRepo(db *gorm.DB) ScheduleRepository {
	return &scheduleRepo{db: db}
}

func (r *scheduleRepo) GetByID(ctx context.Context, id string) (*model.Schedule, error) {
	var schedule model.Schedule
	err := r.db.WithContext(ctx).
		Preload("Order").
		Preload("Entries", func(db *gorm.DB) *gorm.DB {
			return db.Order("work_date ASC, start_time ASC")
		}).
		Preload("Entries.Step").
		Preload("Entries.Assignments.Worker").
		Where("schedule_id = ?", id).
		First(&schedule).Error
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (r *scheduleRepo) GetByOrder(ctx context.Context, orderID string) (*model.Schedule, error) {
	var schedule model.Schedule
	err := r.db.WithContext(ctx).
		Preload("Order").
		Preload("Entries", func(db *gorm.DB) *gorm.DB {
			return db.Order("work_date ASC, start_time ASC")
		}).
		Preload("Entries.Step").
		Preload("Entries.Assignments.Worker").
		Where("order_id = ?", orderID).
		First(&schedule).Error
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (r *scheduleRepo) Replace(ctx context.Context, schedule *model.Schedule, orderStatus string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 删除旧排程（schedule_entries / entry_assignments 由外键级联删除）
		if err := tx.Where("order_id = ?", schedule.OrderID).
			Delete(&model.Schedule{}).Error; err != nil {
			return err
		}
		if err := tx.Create(schedule).Error; err != nil {
			return err
		}
		return tx.Model(&model.Order{}).
			Where("order_id = ?", schedule.OrderID).
			Update("status", orderStatus).Error
	})
}

func (r *scheduleRepo) ListEntriesBetween(ctx context.Context, from, to time.Time) ([]model.ScheduleEntry, error) {
	var entries []model.ScheduleEntry
	err := r.db.WithContext(ctx).
		Preload("Step").
		Preload("Assignments").
		Where("work_date >= ? AND work_date <= ?", from, to).
		Order("work_date ASC, start_time ASC").
		Find(&entries).Error
	return entries, err
}

func (r *scheduleRepo) GetEntry(ctx context.Context, entryID string) (*model.ScheduleEntry, error) {
	var entry model.ScheduleEntry
	err := r.db.WithContext(ctx).
		Preload("Schedule").
		Preload("Step").
		Preload("Assignments.Worker").
		Where("entry_id = ?", entryID).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *scheduleRepo) UpdateEntryActuals(ctx context.Context, entry *model.ScheduleEntry) error {
	result := r.db.WithContext(ctx).
		Model(&model.ScheduleEntry{}).
		Where("entry_id = ?", entry.EntryID).
		Updates(map[string]interface{}{
			"actual_start_time": entry.ActualStartTime,
			"actual_end_time":   entry.ActualEndTime,
			"actual_output":     entry.ActualOutput,
		})
	if result.Error != nil {
		return result.Error
	}
	// 并发重排可能已整张替换排程，此时排程项不复存在
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	return nil
}

func (r *scheduleRepo) UpdateAssignmentActuals(ctx context.Context, assignment *model.EntryAssignment) error {
	result := r.db.WithContext(ctx).
		Model(&model.EntryAssignment{}).
		Where("assignment_id = ?", assignment.AssignmentID).
		Updates(map[string]interface{}{
			"actual_output": assignment.ActualOutput,
			"efficiency":    assignment.Efficiency,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	return nil
}

func (r *scheduleRepo) CountIncompleteEntries(ctx context.Context, scheduleID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.ScheduleEntry{}).
		Where("schedule_id = ? AND (actual_end_time IS NULL OR actual_output IS NULL)", scheduleID).
		Count(&count).Error
	return count, err
}

func (r *scheduleRepo) ListRecentEfficiencies(ctx context.Context, workerID, stepID string, limit int) ([]float64, error) {
	var efficiencies []float64
	err := r.db.WithContext(ctx).
		Model(&model.EntryAssignment{}).
		Joins("JOIN schedule_entries ON schedule_entries.entry_id = entry_assignments.entry_id").
		Where("entry_assignments.worker_id = ? AND schedule_entries.step_id = ? AND entry_assignments.efficiency IS NOT NULL",
			workerID, stepID).
		Order("entry_assignments.updated_at DESC").
		Limit(limit).
		Pluck("entry_assignments.efficiency", &efficiencies).Error
	return efficiencies, err
}
