package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func setupExportService() (ExportService, *testRepos) {
	repos := newTestRepos()
	svc := NewExportService(repos.toRepository(), zap.NewNop())
	return svc, repos
}

func TestExportService_ExportSchedule(t *testing.T) {
	svc, repos := setupExportService()
	seedScheduledEntry(repos)

	buf, filename, err := svc.ExportSchedule(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("导出应成功: %v", err)
	}
	if !strings.HasPrefix(filename, "schedule_order-1_") || !strings.HasSuffix(filename, ".xlsx") {
		t.Errorf("文件名不符: %s", filename)
	}
	if buf.Len() == 0 {
		t.Fatal("导出内容不应为空")
	}

	// 回读校验表头与数据行
	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("回读 xlsx 失败: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(exportSheet)
	if err != nil {
		t.Fatalf("读取工作表失败: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("期望表头 + 1 行数据，实际 %d 行", len(rows))
	}
	if rows[0][0] != "日期" || rows[0][1] != "工序编码" {
		t.Errorf("表头不符: %v", rows[0])
	}
	if rows[1][1] != "CUT1" || rows[1][4] != "08:00" {
		t.Errorf("数据行不符: %v", rows[1])
	}
}

func TestExportService_ExportSchedule_NotFound(t *testing.T) {
	svc, _ := setupExportService()

	_, _, err := svc.ExportSchedule(context.Background(), "nonexistent")
	if !errors.Is(err, ErrScheduleNotFound) {
		t.Errorf("期望 ErrScheduleNotFound，实际: %v", err)
	}
}
