package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/renraku/internal/model"
)

// createEventRequest は手動予定作成リクエストのボディ。
type createEventRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	AllDay      bool      `json:"all_day"`
}

// updateEventRequest は手動予定更新リクエストのボディ。省略したフィールドは変更しない。
type updateEventRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Location    *string    `json:"location"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	AllDay      *bool      `json:"all_day"`
}

// EventServiceInterface は予定ハンドラーが必要とするサービスインターフェース。
type EventServiceInterface interface {
	// CreateEvent は手動予定を作成する。タイトル必須、終了時刻は開始時刻より後。
	CreateEvent(ctx context.Context, userID string, req createEventRequest) (*model.CalendarEvent, error)
	// GetEvent は予定を取得する。見つからない場合はnilを返す。
	GetEvent(ctx context.Context, userID, eventID string) (*model.CalendarEvent, error)
	// UpdateEvent は手動予定を部分更新する。同期予定は更新できない。
	UpdateEvent(ctx context.Context, userID, eventID string, req updateEventRequest) (*model.CalendarEvent, error)
	// DeleteEvent は手動予定を削除する。同期予定は削除できない。
	DeleteEvent(ctx context.Context, userID, eventID string) error
	// ListEvents は期間と重なる予定（手動・同期の両方）を開始時刻昇順で返す。
	ListEvents(ctx context.Context, userID string, from, to time.Time) ([]*model.CalendarEvent, error)
}

// EventHandler は予定管理のHTTPハンドラー。
type EventHandler struct {
	service EventServiceInterface
}

// NewEventHandler はEventHandlerを生成する。
func NewEventHandler(service EventServiceInterface) *EventHandler {
	return &EventHandler{
		service: service,
	}
}

// eventResponse は予定情報のAPIレスポンス。
type eventResponse struct {
	ID          string    `json:"id"`
	AccountID   *string   `json:"account_id,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	AllDay      bool      `json:"all_day"`
	Synced      bool      `json:"synced"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateEvent は手動予定を作成する。
// POST /api/events
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req createEventRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	event, err := h.service.CreateEvent(r.Context(), userID, req)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toEventResponse(event))
}

// ListEvents は期間内の予定一覧を取得する。
// GET /api/events?from=RFC3339&to=RFC3339
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
	if err != nil {
		invalidQueryParam(w, "fromにはRFC3339形式の日時を指定してください。")
		return
	}

	to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to"))
	if err != nil {
		invalidQueryParam(w, "toにはRFC3339形式の日時を指定してください。")
		return
	}

	events, err := h.service.ListEvents(r.Context(), userID, from, to)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]eventResponse, len(events))
	for i, event := range events {
		results[i] = toEventResponse(event)
	}

	writeJSON(w, http.StatusOK, results)
}

// GetEvent は予定詳細を取得する。
// GET /api/events/:id
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	eventID := chi.URLParam(r, "id")

	event, err := h.service.GetEvent(r.Context(), userID, eventID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if event == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewEventNotFoundError(eventID))
		return
	}

	writeJSON(w, http.StatusOK, toEventResponse(event))
}

// UpdateEvent は手動予定を更新する。
// PUT /api/events/:id
func (h *EventHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	eventID := chi.URLParam(r, "id")

	var req updateEventRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	event, err := h.service.UpdateEvent(r.Context(), userID, eventID, req)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toEventResponse(event))
}

// DeleteEvent は手動予定を削除する。
// DELETE /api/events/:id
func (h *EventHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteEvent(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// toEventResponse はmodel.CalendarEventからAPIレスポンスに変換する。
func toEventResponse(event *model.CalendarEvent) eventResponse {
	return eventResponse{
		ID:          event.ID,
		AccountID:   event.AccountID,
		Title:       event.Title,
		Description: event.Description,
		Location:    event.Location,
		StartTime:   event.StartTime,
		EndTime:     event.EndTime,
		AllDay:      event.AllDay,
		Synced:      event.IsSynced(),
		CreatedAt:   event.CreatedAt,
		UpdatedAt:   event.UpdatedAt,
	}
}
