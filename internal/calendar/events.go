package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/renraku/internal/model"
	"github.com/hitoshi/renraku/internal/repository"
)

// Sanitizer は予定の説明・場所のサニタイズを抽象化する。
// security.ContentSanitizerServiceが実装する。
type Sanitizer interface {
	Sanitize(rawHTML string) string
	SanitizePlain(text string) string
}

// EventService は手動予定の登録・管理のサービス層。
// 外部カレンダー由来の同期予定はAPI経由では読み取り専用で、
// 編集・削除は同期ワーカーだけが行う。
type EventService struct {
	eventRepo repository.EventRepository
	sanitizer Sanitizer
}

// NewEventService はEventServiceの新しいインスタンスを生成する。
func NewEventService(eventRepo repository.EventRepository, sanitizer Sanitizer) *EventService {
	return &EventService{
		eventRepo: eventRepo,
		sanitizer: sanitizer,
	}
}

// CreateEventInput は手動予定作成の入力。
type CreateEventInput struct {
	Title       string
	Description string
	Location    string
	StartTime   time.Time
	EndTime     time.Time
	AllDay      bool
}

// UpdateEventInput は手動予定更新の入力。nilのフィールドは変更しない。
type UpdateEventInput struct {
	Title       *string
	Description *string
	Location    *string
	StartTime   *time.Time
	EndTime     *time.Time
	AllDay      *bool
}

// CreateEvent は手動予定を作成する。
// タイトルは必須で、終了時刻は開始時刻より厳密に後でなければならない。
func (s *EventService) CreateEvent(ctx context.Context, userID string, input CreateEventInput) (*model.CalendarEvent, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, model.NewInvalidEventTitleError()
	}
	if !input.EndTime.After(input.StartTime) {
		return nil, model.NewInvalidTimeRangeError()
	}

	now := time.Now()
	event := &model.CalendarEvent{
		ID:          uuid.New().String(),
		UserID:      userID,
		AccountID:   nil, // 手動予定
		Title:       title,
		Description: s.sanitizer.Sanitize(input.Description),
		Location:    s.sanitizer.SanitizePlain(input.Location),
		StartTime:   input.StartTime,
		EndTime:     input.EndTime,
		AllDay:      input.AllDay,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.eventRepo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("予定の作成に失敗しました: %w", err)
	}

	return event, nil
}

// GetEvent は予定を取得する。見つからない場合はnilを返す。
func (s *EventService) GetEvent(ctx context.Context, userID, eventID string) (*model.CalendarEvent, error) {
	event, err := s.eventRepo.FindByID(ctx, userID, eventID)
	if err != nil {
		return nil, fmt.Errorf("予定の取得に失敗しました: %w", err)
	}
	return event, nil
}

// UpdateEvent は手動予定を更新する。同期予定は編集できない。
func (s *EventService) UpdateEvent(ctx context.Context, userID, eventID string, input UpdateEventInput) (*model.CalendarEvent, error) {
	event, err := s.eventRepo.FindByID(ctx, userID, eventID)
	if err != nil {
		return nil, fmt.Errorf("予定の取得に失敗しました: %w", err)
	}
	if event == nil {
		return nil, model.NewEventNotFoundError(eventID)
	}
	if event.IsSynced() {
		return nil, model.NewSyncedEventReadOnlyError()
	}

	if input.Title != nil {
		event.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		event.Description = s.sanitizer.Sanitize(*input.Description)
	}
	if input.Location != nil {
		event.Location = s.sanitizer.SanitizePlain(*input.Location)
	}
	if input.StartTime != nil {
		event.StartTime = *input.StartTime
	}
	if input.EndTime != nil {
		event.EndTime = *input.EndTime
	}
	if input.AllDay != nil {
		event.AllDay = *input.AllDay
	}

	// 更新後の状態で不変条件を再検証する
	if event.Title == "" {
		return nil, model.NewInvalidEventTitleError()
	}
	if !event.EndTime.After(event.StartTime) {
		return nil, model.NewInvalidTimeRangeError()
	}

	event.UpdatedAt = time.Now()

	if err := s.eventRepo.Update(ctx, event); err != nil {
		return nil, fmt.Errorf("予定の更新に失敗しました: %w", err)
	}

	return event, nil
}

// DeleteEvent は手動予定を削除する。同期予定は削除できない。
func (s *EventService) DeleteEvent(ctx context.Context, userID, eventID string) error {
	event, err := s.eventRepo.FindByID(ctx, userID, eventID)
	if err != nil {
		return fmt.Errorf("予定の取得に失敗しました: %w", err)
	}
	if event == nil {
		return model.NewEventNotFoundError(eventID)
	}
	if event.IsSynced() {
		return model.NewSyncedEventReadOnlyError()
	}

	count, err := s.eventRepo.Delete(ctx, userID, eventID)
	if err != nil {
		return fmt.Errorf("予定の削除に失敗しました: %w", err)
	}
	if count == 0 {
		return model.NewEventNotFoundError(eventID)
	}

	return nil
}

// ListEvents は [from, to) と重なる予定（手動 + 同期）をstart_time昇順で返す。
func (s *EventService) ListEvents(ctx context.Context, userID string, from, to time.Time) ([]*model.CalendarEvent, error) {
	events, err := s.eventRepo.ListOverlapping(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("予定一覧の取得に失敗しました: %w", err)
	}
	if events == nil {
		events = []*model.CalendarEvent{}
	}
	return events, nil
}
