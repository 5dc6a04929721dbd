package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	ics "github.com/arran4/golang-ical"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"shopfloor/backend/internal/dto"
	"shopfloor/backend/internal/model"
	"shopfloor/backend/internal/repository"
)

var (
	ErrHolidayNotFound = errors.New("假日不存在")
	ErrICSFetchFailed  = errors.New("拉取 ICS 日历失败")
	ErrICSParseFailed  = errors.New("解析 ICS 日历失败")
)

// CalendarService 假日日历业务接口。
// 班次日历在每次排产/分析时按此处维护的假日表构建。
type CalendarService interface {
	ListHolidays(ctx context.Context) ([]dto.HolidayResponse, error)
	CreateHoliday(ctx context.Context, req *dto.CreateHolidayRequest) (*dto.HolidayResponse, error)
	DeleteHoliday(ctx context.Context, id string) error
	// ImportICS 从外部 ICS 日历批量导入假日（按日期去重覆盖）
	ImportICS(ctx context.Context, req *dto.ImportHolidayICSRequest) (*dto.ImportHolidayICSResponse, error)
}

type calendarService struct {
	repo   *repository.Repository
	client *http.Client
	logger *zap.Logger
}

func NewCalendarService(repo *repository.Repository, logger *zap.Logger) CalendarService {
	return &calendarService{
		repo:   repo,
		client: &http.Client{Timeout: 15 * time.Second},
		logger: logger,
	}
}

func (s *calendarService) ListHolidays(ctx context.Context) ([]dto.HolidayResponse, error) {
	holidays, err := s.repo.Holiday.List(ctx)
	if err != nil {
		s.logger.Error("查询假日失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.HolidayResponse, 0, len(holidays))
	for _, h := range holidays {
		result = append(result, holidayToResponse(&h))
	}
	return result, nil
}

func (s *calendarService) CreateHoliday(ctx context.Context, req *dto.CreateHolidayRequest) (*dto.HolidayResponse, error) {
	date, err := time.ParseInLocation(dateLayout, req.Date, time.Local)
	if err != nil {
		return nil, fmt.Errorf("无效的日期 %q: %w", req.Date, err)
	}
	holiday := &model.Holiday{Date: date, Name: req.Name}
	if err := s.repo.Holiday.Create(ctx, holiday); err != nil {
		s.logger.Error("创建假日失败", zap.Error(err))
		return nil, fmt.Errorf("创建假日失败: %w", err)
	}
	resp := holidayToResponse(holiday)
	return &resp, nil
}

func (s *calendarService) DeleteHoliday(ctx context.Context, id string) error {
	if err := s.repo.Holiday.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrHolidayNotFound
		}
		s.logger.Error("删除假日失败", zap.Error(err))
		return err
	}
	return nil
}

func (s *calendarService) ImportICS(ctx context.Context, req *dto.ImportHolidayICSRequest) (*dto.ImportHolidayICSResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrICSFetchFailed, err)
	}
	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrICSFetchFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", ErrICSFetchFailed, resp.StatusCode)
	}

	cal, err := ics.ParseCalendar(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrICSParseFailed, err)
	}

	holidays := make([]model.Holiday, 0, len(cal.Events()))
	seen := make(map[string]bool)
	for _, event := range cal.Events() {
		start, err := event.GetAllDayStartAt()
		if err != nil {
			if start, err = event.GetStartAt(); err != nil {
				continue
			}
		}
		day := dayOf(start.In(time.Local))
		key := day.Format(dateLayout)
		if seen[key] {
			continue
		}
		seen[key] = true

		name := "假日"
		if p := event.GetProperty(ics.ComponentPropertySummary); p != nil && p.Value != "" {
			name = p.Value
		}
		holidays = append(holidays, model.Holiday{Date: day, Name: name})
	}

	if len(holidays) > 0 {
		if err := s.repo.Holiday.BatchUpsert(ctx, holidays); err != nil {
			s.logger.Error("批量写入假日失败", zap.Error(err))
			return nil, fmt.Errorf("批量写入假日失败: %w", err)
		}
	}

	s.logger.Info("ICS 假日导入完成", zap.String("url", req.URL), zap.Int("imported", len(holidays)))
	return &dto.ImportHolidayICSResponse{Imported: len(holidays)}, nil
}

func holidayToResponse(h *model.Holiday) dto.HolidayResponse {
	return dto.HolidayResponse{
		ID:   h.HolidayID,
		Date: h.Date.Format(dateLayout),
		Name: h.Name,
	}
}
