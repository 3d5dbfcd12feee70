package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/renraku/internal/model"
)

// TagServiceInterface はタグ管理ハンドラーが必要とするサービスインターフェース。
type TagServiceInterface interface {
	// CreateTag はタグを作成する。同名タグは登録できない。
	CreateTag(ctx context.Context, userID, name, color string) (*model.Tag, error)
	// UpdateTag はタグを部分更新する。nilのフィールドは変更しない。
	UpdateTag(ctx context.Context, userID, tagID string, name, color *string) (*model.Tag, error)
	// DeleteTag はタグを削除する。連絡先への付与も同時に外れる。
	DeleteTag(ctx context.Context, userID, tagID string) error
	// ListTags はタグ一覧を付与先連絡先数つきで返す。
	ListTags(ctx context.Context, userID string) ([]model.TagWithCount, error)
	// TagContact は連絡先にタグを付与する。付与済みの場合は何もしない。
	TagContact(ctx context.Context, userID, contactID, tagID string) error
	// UntagContact は連絡先からタグを外す。
	UntagContact(ctx context.Context, userID, contactID, tagID string) error
	// ListContactTags は連絡先に付与されたタグ一覧を返す。
	ListContactTags(ctx context.Context, userID, contactID string) ([]*model.Tag, error)
	// ListContactsByTag はタグが付与された連絡先一覧をページネーション付きで返す。
	ListContactsByTag(ctx context.Context, userID, tagID string, limit int, cursor string) (*contactListResult, error)
}

// TagHandler はタグ管理のHTTPハンドラー。
type TagHandler struct {
	tagService TagServiceInterface
}

// NewTagHandler はTagHandlerを生成する。
func NewTagHandler(tagService TagServiceInterface) *TagHandler {
	return &TagHandler{
		tagService: tagService,
	}
}

// tagResponse はタグ情報のAPIレスポンス。
type tagResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
}

// tagWithCountResponse はタグ一覧のAPIレスポンス。
type tagWithCountResponse struct {
	tagResponse
	ContactCount int `json:"contact_count"`
}

// CreateTag はタグを作成する。
// POST /api/tags
func (h *TagHandler) CreateTag(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req struct {
		Name  string `json:"name"`
		Color string `json:"color"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	tag, err := h.tagService.CreateTag(r.Context(), userID, req.Name, req.Color)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTagResponse(tag))
}

// ListTags はタグ一覧を取得する。
// GET /api/tags
func (h *TagHandler) ListTags(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	tags, err := h.tagService.ListTags(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]tagWithCountResponse, len(tags))
	for i, tag := range tags {
		results[i] = tagWithCountResponse{
			tagResponse:  toTagResponse(&tag.Tag),
			ContactCount: tag.ContactCount,
		}
	}

	writeJSON(w, http.StatusOK, results)
}

// UpdateTag はタグを更新する。
// PUT /api/tags/:id
func (h *TagHandler) UpdateTag(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	tagID := chi.URLParam(r, "id")

	var req struct {
		Name  *string `json:"name"`
		Color *string `json:"color"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	tag, err := h.tagService.UpdateTag(r.Context(), userID, tagID, req.Name, req.Color)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTagResponse(tag))
}

// DeleteTag はタグを削除する。
// DELETE /api/tags/:id
func (h *TagHandler) DeleteTag(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	if err := h.tagService.DeleteTag(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListContactsByTag はタグが付与された連絡先一覧を取得する。
// GET /api/tags/:id/contacts?limit=&cursor=
func (h *TagHandler) ListContactsByTag(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	tagID := chi.URLParam(r, "id")

	query := r.URL.Query()
	limit := defaultContactsPerPage
	if limitStr := query.Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			invalidQueryParam(w, "limitには数値を指定してください。")
			return
		}
		limit = parsed
	}

	result, err := h.tagService.ListContactsByTag(r.Context(), userID, tagID, limit, query.Get("cursor"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ListContactTags は連絡先に付与されたタグ一覧を取得する。
// GET /api/contacts/:id/tags
func (h *TagHandler) ListContactTags(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	tags, err := h.tagService.ListContactTags(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]tagResponse, len(tags))
	for i, tag := range tags {
		results[i] = toTagResponse(tag)
	}

	writeJSON(w, http.StatusOK, results)
}

// TagContact は連絡先にタグを付与する。
// PUT /api/contacts/:id/tags/:tagId
func (h *TagHandler) TagContact(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	contactID := chi.URLParam(r, "id")
	tagID := chi.URLParam(r, "tagId")

	if err := h.tagService.TagContact(r.Context(), userID, contactID, tagID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UntagContact は連絡先からタグを外す。
// DELETE /api/contacts/:id/tags/:tagId
func (h *TagHandler) UntagContact(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	contactID := chi.URLParam(r, "id")
	tagID := chi.URLParam(r, "tagId")

	if err := h.tagService.UntagContact(r.Context(), userID, contactID, tagID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// toTagResponse はmodel.TagからAPIレスポンスに変換する。
func toTagResponse(tag *model.Tag) tagResponse {
	return tagResponse{
		ID:        tag.ID,
		Name:      tag.Name,
		Color:     tag.Color,
		CreatedAt: tag.CreatedAt,
	}
}
