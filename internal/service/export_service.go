package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"shopfloor/backend/internal/model"
	"shopfloor/backend/internal/repository"
)

// ExportService 排程导出接口
type ExportService interface {
	// ExportSchedule 把订单当前排程导出为 xlsx 工作簿
	ExportSchedule(ctx context.Context, orderID string) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

const exportSheet = "排程"

var exportHeaders = []string{
	"日期", "工序编码", "工序名称", "类别", "开始时间", "结束时间",
	"计划产量", "实际产量", "状态", "派工",
}

func (s *exportService) ExportSchedule(ctx context.Context, orderID string) (*bytes.Buffer, string, error) {
	schedule, err := s.repo.Schedule.GetByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrScheduleNotFound
		}
		s.logger.Error("查询排程失败", zap.Error(err))
		return nil, "", err
	}

	f := excelize.NewFile()
	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return nil, "", fmt.Errorf("创建工作表失败: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, "", fmt.Errorf("删除默认工作表失败: %w", err)
	}

	for col, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(exportSheet, cell, h); err != nil {
			return nil, "", fmt.Errorf("写入表头失败: %w", err)
		}
	}

	for row, entry := range schedule.Entries {
		values := entryRow(&entry)
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(exportSheet, cell, v); err != nil {
				return nil, "", fmt.Errorf("写入排程行失败: %w", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("生成 xlsx 失败: %w", err)
	}

	filename := fmt.Sprintf("schedule_%s_%s.xlsx", orderID, time.Now().Format("20060102"))
	return buf, filename, nil
}

func entryRow(e *model.ScheduleEntry) []interface{} {
	stepCode, taskName, category := "", "", ""
	if e.Step != nil {
		stepCode, taskName, category = e.Step.StepCode, e.Step.TaskName, e.Step.Category
	}

	actualOutput := ""
	if e.ActualOutput != nil {
		actualOutput = fmt.Sprintf("%d", *e.ActualOutput)
	}

	names := make([]string, 0, len(e.Assignments))
	for i := range e.Assignments {
		a := &e.Assignments[i]
		label := a.WorkerID
		if a.Worker != nil {
			label = a.Worker.Name
		}
		names = append(names, fmt.Sprintf("%s(%d)", label, a.PlannedOutput))
	}

	return []interface{}{
		e.WorkDate.Format(dateLayout),
		stepCode,
		taskName,
		category,
		e.StartTime.Format("15:04"),
		e.EndTime.Format("15:04"),
		e.PlannedOutput,
		actualOutput,
		e.Status(),
		strings.Join(names, ", "),
	}
}
