package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/renraku/internal/model"
)

// --- モック定義 ---

// mockTagService はTagServiceInterfaceのモック実装。
type mockTagService struct {
	createTagFn         func(ctx context.Context, userID, name, color string) (*model.Tag, error)
	updateTagFn         func(ctx context.Context, userID, tagID string, name, color *string) (*model.Tag, error)
	deleteTagFn         func(ctx context.Context, userID, tagID string) error
	listTagsFn          func(ctx context.Context, userID string) ([]model.TagWithCount, error)
	tagContactFn        func(ctx context.Context, userID, contactID, tagID string) error
	untagContactFn      func(ctx context.Context, userID, contactID, tagID string) error
	listContactTagsFn   func(ctx context.Context, userID, contactID string) ([]*model.Tag, error)
	listContactsByTagFn func(ctx context.Context, userID, tagID string, limit int, cursor string) (*contactListResult, error)
}

func (m *mockTagService) CreateTag(ctx context.Context, userID, name, color string) (*model.Tag, error) {
	if m.createTagFn != nil {
		return m.createTagFn(ctx, userID, name, color)
	}
	return nil, nil
}

func (m *mockTagService) UpdateTag(ctx context.Context, userID, tagID string, name, color *string) (*model.Tag, error) {
	if m.updateTagFn != nil {
		return m.updateTagFn(ctx, userID, tagID, name, color)
	}
	return nil, nil
}

func (m *mockTagService) DeleteTag(ctx context.Context, userID, tagID string) error {
	if m.deleteTagFn != nil {
		return m.deleteTagFn(ctx, userID, tagID)
	}
	return nil
}

func (m *mockTagService) ListTags(ctx context.Context, userID string) ([]model.TagWithCount, error) {
	if m.listTagsFn != nil {
		return m.listTagsFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockTagService) TagContact(ctx context.Context, userID, contactID, tagID string) error {
	if m.tagContactFn != nil {
		return m.tagContactFn(ctx, userID, contactID, tagID)
	}
	return nil
}

func (m *mockTagService) UntagContact(ctx context.Context, userID, contactID, tagID string) error {
	if m.untagContactFn != nil {
		return m.untagContactFn(ctx, userID, contactID, tagID)
	}
	return nil
}

func (m *mockTagService) ListContactTags(ctx context.Context, userID, contactID string) ([]*model.Tag, error) {
	if m.listContactTagsFn != nil {
		return m.listContactTagsFn(ctx, userID, contactID)
	}
	return nil, nil
}

func (m *mockTagService) ListContactsByTag(ctx context.Context, userID, tagID string, limit int, cursor string) (*contactListResult, error) {
	if m.listContactsByTagFn != nil {
		return m.listContactsByTagFn(ctx, userID, tagID, limit, cursor)
	}
	return &contactListResult{Contacts: []contactResponse{}}, nil
}

// --- POST /api/tags テスト ---

func TestTagHandler_CreateTag_Success(t *testing.T) {
	svc := &mockTagService{
		createTagFn: func(ctx context.Context, userID, name, color string) (*model.Tag, error) {
			if name != "要フォロー" {
				t.Errorf("name = %q, want %q", name, "要フォロー")
			}
			if color != "#FF5733" {
				t.Errorf("color = %q, want %q", color, "#FF5733")
			}
			return &model.Tag{ID: "tag-id-1", UserID: userID, Name: name, Color: color}, nil
		},
	}

	h := NewTagHandler(svc)

	body := `{"name": "要フォロー", "color": "#FF5733"}`
	req := httptest.NewRequest(http.MethodPost, "/api/tags", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req = withUserID(req, "user-123")
	w := httptest.NewRecorder()

	h.CreateTag(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result["name"] != "要フォロー" {
		t.Errorf("name = %v, want %q", result["name"], "要フォロー")
	}
}

func TestTagHandler_CreateTag_Duplicate_ReturnsConflict(t *testing.T) {
	svc := &mockTagService{
		createTagFn: func(ctx context.Context, userID, name, color string) (*model.Tag, error) {
			return nil, model.NewDuplicateTagError(name)
		},
	}

	h := NewTagHandler(svc)

	body := `{"name": "要フォロー"}`
	req := httptest.NewRequest(http.MethodPost, "/api/tags", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req = withUserID(req, "user-123")
	w := httptest.NewRecorder()

	h.CreateTag(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}

	errResp := parseAPIErrorResponse(t, w)
	if errResp["code"] != model.ErrCodeDuplicateTag {
		t.Errorf("code = %q, want %q", errResp["code"], model.ErrCodeDuplicateTag)
	}
}

func TestTagHandler_CreateTag_InvalidColor_ReturnsBadRequest(t *testing.T) {
	svc := &mockTagService{
		createTagFn: func(ctx context.Context, userID, name, color string) (*model.Tag, error) {
			return nil, model.NewInvalidTagColorError(color)
		},
	}

	h := NewTagHandler(svc)

	body := `{"name": "要フォロー", "color": "赤"}`
	req := httptest.NewRequest(http.MethodPost, "/api/tags", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req = withUserID(req, "user-123")
	w := httptest.NewRecorder()

	h.CreateTag(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	errResp := parseAPIErrorResponse(t, w)
	if errResp["code"] != model.ErrCodeInvalidTagColor {
		t.Errorf("code = %q, want %q", errResp["code"], model.ErrCodeInvalidTagColor)
	}
}

// --- GET /api/tags テスト ---

func TestTagHandler_ListTags_Success(t *testing.T) {
	svc := &mockTagService{
		listTagsFn: func(ctx context.Context, userID string) ([]model.TagWithCount, error) {
			return []model.TagWithCount{
				{Tag: model.Tag{ID: "tag-1", Name: "要フォロー", Color: "#FF5733"}, ContactCount: 12},
				{Tag: model.Tag{ID: "tag-2", Name: "定期検診", Color: "#33C1FF"}, ContactCount: 0},
			}, nil
		},
	}

	h := NewTagHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/tags", nil)
	req = withUserID(req, "user-123")
	w := httptest.NewRecorder()

	h.ListTags(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var results []map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&results); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("tags count = %d, want 2", len(results))
	}
	if results[0]["contact_count"] != float64(12) {
		t.Errorf("contact_count = %v, want 12", results[0]["contact_count"])
	}
	if results[1]["contact_count"] != float64(0) {
		t.Errorf("contact_count = %v, want 0", results[1]["contact_count"])
	}
}

// --- PUT /api/tags/:id テスト ---

func TestTagHandler_UpdateTag_ColorOnly(t *testing.T) {
	svc := &mockTagService{
		updateTagFn: func(ctx context.Context, userID, tagID string, name, color *string) (*model.Tag, error) {
			if name != nil {
				t.Errorf("name = %v, want nil", *name)
			}
			if color == nil || *color != "#00FF00" {
				t.Error("expected color to be #00FF00")
			}
			return &model.Tag{ID: tagID, Name: "要フォロー", Color: *color}, nil
		},
	}

	h := NewTagHandler(svc)

	body := `{"color": "#00FF00"}`
	req := httptest.NewRequest(http.MethodPut, "/api/tags/tag-id-1", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req = withUserID(req, "user-123")
	req = withChiURLParam(req, "id", "tag-id-1")
	w := httptest.NewRecorder()

	h.UpdateTag(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestTagHandler_UpdateTag_NotFound_Returns404(t *testing.T) {
	svc := &mockTagService{
		updateTagFn: func(ctx context.Context, userID, tagID string, name, color *string) (*model.Tag, error) {
			return nil, model.NewTagNotFoundError(tagID)
		},
	}

	h := NewTagHandler(svc)

	body := `{"name": "新しい名前"}`
	req := httptest.NewRequest(http.MethodPut, "/api/tags/unknown-id", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req = withUserID(req, "user-123")
	req = withChiURLParam(req, "id", "unknown-id")
	w := httptest.NewRecorder()

	h.UpdateTag(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}

	errResp := parseAPIErrorResponse(t, w)
	if errResp["code"] != model.ErrCodeTagNotFound {
		t.Errorf("code = %q, want %q", errResp["code"], model.ErrCodeTagNotFound)
	}
}

// --- DELETE /api/tags/:id テスト ---

func TestTagHandler_DeleteTag_Success_Returns204(t *testing.T) {
	deleteCalled := false
	svc := &mockTagService{
		deleteTagFn: func(ctx context.Context, userID, tagID string) error {
			deleteCalled = true
			return nil
		},
	}

	h := NewTagHandler(svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/tags/tag-id-1", nil)
	req = withUserID(req, "user-123")
	req = withChiURLParam(req, "id", "tag-id-1")
	w := httptest.NewRecorder()

	h.DeleteTag(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	if !deleteCalled {
		t.Error("expected DeleteTag to be called")
	}
}

// --- PUT /api/contacts/:id/tags/:tagId テスト ---

func TestTagHandler_TagContact_Success_Returns204(t *testing.T) {
	svc := &mockTagService{
		tagContactFn: func(ctx context.Context, userID, contactID, tagID string) error {
			if contactID != "contact-id-1" {
				t.Errorf("contactID = %q, want %q", contactID, "contact-id-1")
			}
			if tagID != "tag-id-1" {
				t.Errorf("tagID = %q, want %q", tagID, "tag-id-1")
			}
			return nil
		},
	}

	h := NewTagHandler(svc)

	req := httptest.NewRequest(http.MethodPut, "/api/contacts/contact-id-1/tags/tag-id-1", nil)
	req = withUserID(req, "user-123")
	req = withChiURLParam(req, "id", "contact-id-1")
	req = withChiURLParam(req, "tagId", "tag-id-1")
	w := httptest.NewRecorder()

	h.TagContact(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
}

func TestTagHandler_TagContact_TagNotFound_Returns404(t *testing.T) {
	svc := &mockTagService{
		tagContactFn: func(ctx context.Context, userID, contactID, tagID string) error {
			return model.NewTagNotFoundError(tagID)
		},
	}

	h := NewTagHandler(svc)

	req := httptest.NewRequest(http.MethodPut, "/api/contacts/contact-id-1/tags/unknown-tag", nil)
	req = withUserID(req, "user-123")
	req = withChiURLParam(req, "id", "contact-id-1")
	req = withChiURLParam(req, "tagId", "unknown-tag")
	w := httptest.NewRecorder()

	h.TagContact(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

// --- DELETE /api/contacts/:id/tags/:tagId テスト ---

func TestTagHandler_UntagContact_Success_Returns204(t *testing.T) {
	untagCalled := false
	svc := &mockTagService{
		untagContactFn: func(ctx context.Context, userID, contactID, tagID string) error {
			untagCalled = true
			return nil
		},
	}

	h := NewTagHandler(svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/contacts/contact-id-1/tags/tag-id-1", nil)
	req = withUserID(req, "user-123")
	req = withChiURLParam(req, "id", "contact-id-1")
	req = withChiURLParam(req, "tagId", "tag-id-1")
	w := httptest.NewRecorder()

	h.UntagContact(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	if !untagCalled {
		t.Error("expected UntagContact to be called")
	}
}

// --- GET /api/contacts/:id/tags テスト ---

func TestTagHandler_ListContactTags_Empty_ReturnsEmptyArray(t *testing.T) {
	h := NewTagHandler(&mockTagService{})

	req := httptest.NewRequest(http.MethodGet, "/api/contacts/contact-id-1/tags", nil)
	req = withUserID(req, "user-123")
	req = withChiURLParam(req, "id", "contact-id-1")
	w := httptest.NewRecorder()

	h.ListContactTags(w, req)

	if body := w.Body.String(); body != "[]\n" {
		t.Errorf("body = %q, want %q", body, "[]\n")
	}
}

// --- GET /api/tags/:id/contacts テスト ---

func TestTagHandler_ListContactsByTag_Success(t *testing.T) {
	svc := &mockTagService{
		listContactsByTagFn: func(ctx context.Context, userID, tagID string, limit int, cursor string) (*contactListResult, error) {
			if tagID != "tag-id-1" {
				t.Errorf("tagID = %q, want %q", tagID, "tag-id-1")
			}
			if limit != defaultContactsPerPage {
				t.Errorf("limit = %d, want %d", limit, defaultContactsPerPage)
			}
			return &contactListResult{
				Contacts: []contactResponse{
					{ID: "contact-1", DisplayName: "花子 山田"},
				},
				HasMore: false,
			}, nil
		},
	}

	h := NewTagHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/tags/tag-id-1/contacts", nil)
	req = withUserID(req, "user-123")
	req = withChiURLParam(req, "id", "tag-id-1")
	w := httptest.NewRecorder()

	h.ListContactsByTag(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var result struct {
		Contacts []map[string]interface{} `json:"contacts"`
		HasMore  bool                     `json:"has_more"`
	}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(result.Contacts) != 1 {
		t.Fatalf("contacts count = %d, want 1", len(result.Contacts))
	}
}

func TestTagHandler_ListContactsByTag_InvalidLimit_ReturnsBadRequest(t *testing.T) {
	h := NewTagHandler(&mockTagService{})

	req := httptest.NewRequest(http.MethodGet, "/api/tags/tag-id-1/contacts?limit=abc", nil)
	req = withUserID(req, "user-123")
	req = withChiURLParam(req, "id", "tag-id-1")
	w := httptest.NewRecorder()

	h.ListContactsByTag(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}
