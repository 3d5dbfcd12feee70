package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/renraku/internal/model"
)

// defaultContactsPerPage は連絡先一覧の1回の取得件数（デフォルト）。
const defaultContactsPerPage = 50

// ContactServiceInterface は連絡先ハンドラーが必要とするサービスインターフェース。
type ContactServiceInterface interface {
	// CreateContact は連絡先を作成する。氏名か会社名のいずれかが必須。
	CreateContact(ctx context.Context, userID, firstName, lastName, company, notes string) (*model.Contact, error)
	// GetContact は連絡先を取得する。見つからない場合はnilを返す。
	GetContact(ctx context.Context, userID, contactID string) (*model.Contact, error)
	// UpdateContact は連絡先を部分更新する。nilのフィールドは変更しない。
	UpdateContact(ctx context.Context, userID, contactID string, firstName, lastName, company, notes *string) (*model.Contact, error)
	// ArchiveContact は連絡先をアーカイブする。
	ArchiveContact(ctx context.Context, userID, contactID string) (*model.Contact, error)
	// UnarchiveContact は連絡先のアーカイブを解除する。
	UnarchiveContact(ctx context.Context, userID, contactID string) (*model.Contact, error)
	// ListContacts は連絡先一覧を検索・ページネーション付きで返す。
	ListContacts(ctx context.Context, userID string, filter model.ContactFilter) (*contactListResult, error)
	// DeleteContact は連絡先と配下の識別子・同意・タグ紐付けを削除する。
	DeleteContact(ctx context.Context, userID, contactID string) error
	// MergeContacts はマージ元の識別子・タグ・同意・タスクをマージ先に移し、
	// マージ元の連絡先を削除する。
	MergeContacts(ctx context.Context, userID, fromContactID, toContactID string) (*model.Contact, error)
}

// ContactHandler は連絡先管理のHTTPハンドラー。
type ContactHandler struct {
	service ContactServiceInterface
}

// NewContactHandler はContactHandlerを生成する。
func NewContactHandler(service ContactServiceInterface) *ContactHandler {
	return &ContactHandler{
		service: service,
	}
}

// createContactRequest は連絡先作成リクエストのボディ。
type createContactRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`
	Notes     string `json:"notes"`
}

// updateContactRequest は連絡先更新リクエストのボディ。省略したフィールドは変更しない。
type updateContactRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Company   *string `json:"company"`
	Notes     *string `json:"notes"`
}

// mergeContactsRequest は連絡先マージリクエストのボディ。
type mergeContactsRequest struct {
	FromContactID string `json:"from_contact_id"`
	ToContactID   string `json:"to_contact_id"`
}

// contactResponse は連絡先情報のAPIレスポンス。
type contactResponse struct {
	ID          string    `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Company     string    `json:"company"`
	DisplayName string    `json:"display_name"`
	Notes       string    `json:"notes"`
	Archived    bool      `json:"archived"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// contactListResult は連絡先一覧のレスポンス。
type contactListResult struct {
	Contacts   []contactResponse `json:"contacts"`
	NextCursor string            `json:"next_cursor,omitempty"`
	HasMore    bool              `json:"has_more"`
}

// CreateContact は連絡先を作成する。
// POST /api/contacts
func (h *ContactHandler) CreateContact(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req createContactRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	contact, err := h.service.CreateContact(r.Context(), userID, req.FirstName, req.LastName, req.Company, req.Notes)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toContactResponse(contact))
}

// ListContacts は連絡先一覧を取得する。
// GET /api/contacts?archived=true|false&search=xxx&limit=&cursor=
func (h *ContactHandler) ListContacts(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	filter := model.ContactFilter{
		Search: r.URL.Query().Get("search"),
		Cursor: r.URL.Query().Get("cursor"),
		Limit:  defaultContactsPerPage,
	}

	// archived未指定は全件、true/falseで絞り込み
	if archivedStr := r.URL.Query().Get("archived"); archivedStr != "" {
		archived, err := strconv.ParseBool(archivedStr)
		if err != nil {
			invalidQueryParam(w, "archivedにはtrueまたはfalseを指定してください。")
			return
		}
		filter.Archived = &archived
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			invalidQueryParam(w, "limitには数値を指定してください。")
			return
		}
		filter.Limit = limit
	}

	result, err := h.service.ListContacts(r.Context(), userID, filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GetContact は連絡先詳細を取得する。
// GET /api/contacts/:id
func (h *ContactHandler) GetContact(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	contactID := chi.URLParam(r, "id")

	contact, err := h.service.GetContact(r.Context(), userID, contactID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if contact == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewContactNotFoundError(contactID))
		return
	}

	writeJSON(w, http.StatusOK, toContactResponse(contact))
}

// UpdateContact は連絡先を部分更新する。
// PUT /api/contacts/:id
func (h *ContactHandler) UpdateContact(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	contactID := chi.URLParam(r, "id")

	var req updateContactRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	contact, err := h.service.UpdateContact(r.Context(), userID, contactID, req.FirstName, req.LastName, req.Company, req.Notes)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toContactResponse(contact))
}

// ArchiveContact は連絡先をアーカイブする。
// POST /api/contacts/:id/archive
func (h *ContactHandler) ArchiveContact(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	contact, err := h.service.ArchiveContact(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toContactResponse(contact))
}

// UnarchiveContact は連絡先のアーカイブを解除する。
// POST /api/contacts/:id/unarchive
func (h *ContactHandler) UnarchiveContact(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	contact, err := h.service.UnarchiveContact(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toContactResponse(contact))
}

// DeleteContact は連絡先を削除する。
// DELETE /api/contacts/:id
func (h *ContactHandler) DeleteContact(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	contactID := chi.URLParam(r, "id")

	if err := h.service.DeleteContact(r.Context(), userID, contactID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// MergeContacts は2件の連絡先をマージする。
// POST /api/contacts/merge
func (h *ContactHandler) MergeContacts(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req mergeContactsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.FromContactID == "" || req.ToContactID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "from_contact_idとto_contact_idの両方を指定してください。",
			Category: "validation",
			Action:   "マージ元とマージ先の連絡先IDを指定してください。",
		})
		return
	}

	contact, err := h.service.MergeContacts(r.Context(), userID, req.FromContactID, req.ToContactID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toContactResponse(contact))
}

// toContactResponse はmodel.ContactからAPIレスポンスに変換する。
func toContactResponse(contact *model.Contact) contactResponse {
	return contactResponse{
		ID:          contact.ID,
		FirstName:   contact.FirstName,
		LastName:    contact.LastName,
		Company:     contact.Company,
		DisplayName: contact.DisplayName(),
		Notes:       contact.Notes,
		Archived:    contact.Archived,
		CreatedAt:   contact.CreatedAt,
		UpdatedAt:   contact.UpdatedAt,
	}
}
