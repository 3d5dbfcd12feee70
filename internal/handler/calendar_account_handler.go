package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/renraku/internal/model"
)

// CalendarAccountServiceInterface はカレンダーアカウントハンドラーが必要とするサービスインターフェース。
type CalendarAccountServiceInterface interface {
	// RegisterAccount はURLからiCalendarフィードを検出しアカウントを登録する。
	RegisterAccount(ctx context.Context, userID, inputURL, name string) (*model.CalendarAccount, error)
	// ListAccounts はユーザーのカレンダーアカウント一覧を返す。
	ListAccounts(ctx context.Context, userID string) ([]*model.CalendarAccount, error)
	// UpdateAccountSettings はアカウントの表示名・同期間隔を更新する。
	UpdateAccountSettings(ctx context.Context, userID, accountID string, name *string, syncIntervalMinutes *int) (*model.CalendarAccount, error)
	// ResumeSync は停止状態のアカウントの同期を再開する。
	ResumeSync(ctx context.Context, userID, accountID string) (*model.CalendarAccount, error)
	// DeleteAccount はアカウントと配下の同期予定を削除する。
	DeleteAccount(ctx context.Context, userID, accountID string) error
	// GetAccountIcon はアカウントのアイコン画像とMIMEタイプを返す。
	GetAccountIcon(ctx context.Context, userID, accountID string) ([]byte, string, error)
}

// CalendarAccountHandler はカレンダーアカウント管理のHTTPハンドラー。
type CalendarAccountHandler struct {
	service CalendarAccountServiceInterface
}

// NewCalendarAccountHandler はCalendarAccountHandlerを生成する。
func NewCalendarAccountHandler(service CalendarAccountServiceInterface) *CalendarAccountHandler {
	return &CalendarAccountHandler{
		service: service,
	}
}

// registerAccountRequest はカレンダーアカウント登録リクエストのボディ。
type registerAccountRequest struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// accountSettingsRequest はアカウント設定更新リクエストのボディ。省略したフィールドは変更しない。
type accountSettingsRequest struct {
	Name                *string `json:"name"`
	SyncIntervalMinutes *int    `json:"sync_interval_minutes"`
}

// calendarAccountResponse はカレンダーアカウント情報のAPIレスポンス。
type calendarAccountResponse struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	FeedURL             string     `json:"feed_url"`
	SiteURL             string     `json:"site_url"`
	SyncStatus          string     `json:"sync_status"`
	SyncIntervalMinutes int        `json:"sync_interval_minutes"`
	LastSyncAt          *time.Time `json:"last_sync_at,omitempty"`
	NextSyncAt          time.Time  `json:"next_sync_at"`
	LastError           string     `json:"last_error,omitempty"`
	HasIcon             bool       `json:"has_icon"`
	CreatedAt           time.Time  `json:"created_at"`
}

// RegisterAccount はカレンダーアカウントを登録する。
// POST /api/calendar/accounts
func (h *CalendarAccountHandler) RegisterAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req registerAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.URL == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidURLError("URLが空です"))
		return
	}

	account, err := h.service.RegisterAccount(r.Context(), userID, req.URL, req.Name)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCalendarAccountResponse(account))
}

// ListAccounts はカレンダーアカウント一覧を取得する。
// GET /api/calendar/accounts
func (h *CalendarAccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	accounts, err := h.service.ListAccounts(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]calendarAccountResponse, len(accounts))
	for i, account := range accounts {
		results[i] = toCalendarAccountResponse(account)
	}

	writeJSON(w, http.StatusOK, results)
}

// UpdateSettings はアカウントの表示名・同期間隔を更新する。
// PUT /api/calendar/accounts/:id/settings
func (h *CalendarAccountHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	accountID := chi.URLParam(r, "id")

	var req accountSettingsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	// 両フィールドとも省略されたリクエストはバリデーションエラー
	if req.Name == nil && req.SyncIntervalMinutes == nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "nameまたはsync_interval_minutesのいずれかを指定してください。",
			Category: "validation",
			Action:   "更新するフィールドを指定してください。",
		})
		return
	}

	account, err := h.service.UpdateAccountSettings(r.Context(), userID, accountID, req.Name, req.SyncIntervalMinutes)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toCalendarAccountResponse(account))
}

// ResumeSync は停止中アカウントの同期を再開する。
// POST /api/calendar/accounts/:id/resume
func (h *CalendarAccountHandler) ResumeSync(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	account, err := h.service.ResumeSync(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toCalendarAccountResponse(account))
}

// DeleteAccount はカレンダーアカウントを削除する。
// DELETE /api/calendar/accounts/:id
func (h *CalendarAccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteAccount(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetAccountIcon はアカウントのアイコン画像を返す。
// GET /api/calendar/accounts/:id/icon
func (h *CalendarAccountHandler) GetAccountIcon(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	accountID := chi.URLParam(r, "id")

	iconData, iconMime, err := h.service.GetAccountIcon(r.Context(), userID, accountID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if len(iconData) == 0 {
		writeAPIErrorResponse(w, http.StatusNotFound, &model.APIError{
			Code:     "ICON_NOT_FOUND",
			Message:  "このカレンダーアカウントにはアイコンが登録されていません。",
			Category: "crm",
			Action:   "アイコンは登録時に提供元サイトから自動取得されます。取得できないサイトもあります。",
		})
		return
	}

	if iconMime == "" {
		iconMime = "application/octet-stream"
	}

	w.Header().Set("Content-Type", iconMime)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	w.Write(iconData)
}

// toCalendarAccountResponse はmodel.CalendarAccountからAPIレスポンスに変換する。
// アイコンのバイナリ自体は含めず、有無フラグと専用エンドポイントで提供する。
func toCalendarAccountResponse(account *model.CalendarAccount) calendarAccountResponse {
	return calendarAccountResponse{
		ID:                  account.ID,
		Name:                account.Name,
		FeedURL:             account.FeedURL,
		SiteURL:             account.SiteURL,
		SyncStatus:          string(account.SyncStatus),
		SyncIntervalMinutes: account.SyncIntervalMinutes,
		LastSyncAt:          account.LastSyncAt,
		NextSyncAt:          account.NextSyncAt,
		LastError:           account.LastError,
		HasIcon:             len(account.IconData) > 0,
		CreatedAt:           account.CreatedAt,
	}
}
