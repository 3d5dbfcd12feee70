package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/renraku/internal/model"
)

// ConsentServiceInterface は同意管理ハンドラーが必要とするサービスインターフェース。
type ConsentServiceInterface interface {
	// GrantConsent は連絡先に同意を記録する。同種の既存記録は取り消し済みに置き換わる。
	GrantConsent(ctx context.Context, userID, contactID string, kind model.ConsentKind, method model.ConsentMethod, note string, expiresAt *time.Time) (*model.Consent, error)
	// RevokeConsent は有効な同意を取り消す。
	RevokeConsent(ctx context.Context, userID, contactID string, kind model.ConsentKind) error
	// CheckConsent は指定種別の同意が現在有効かどうかを返す。
	CheckConsent(ctx context.Context, userID, contactID string, kind model.ConsentKind) (bool, error)
	// ListContactConsents は連絡先の同意履歴を返す。
	ListContactConsents(ctx context.Context, userID, contactID string) ([]*model.Consent, error)
	// GetConsentOverview は種別ごとの有効な同意件数を返す。
	GetConsentOverview(ctx context.Context, userID string) (map[model.ConsentKind]int, error)
}

// ConsentHandler は同意管理のHTTPハンドラー。
type ConsentHandler struct {
	consentService ConsentServiceInterface
}

// NewConsentHandler はConsentHandlerを生成する。
func NewConsentHandler(consentService ConsentServiceInterface) *ConsentHandler {
	return &ConsentHandler{
		consentService: consentService,
	}
}

// grantConsentRequest は同意記録リクエストのボディ。
type grantConsentRequest struct {
	Kind      string     `json:"kind"`
	Method    string     `json:"method"`
	Note      string     `json:"note"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// revokeConsentRequest は同意取り消しリクエストのボディ。
type revokeConsentRequest struct {
	Kind string `json:"kind"`
}

// consentResponse は同意記録のAPIレスポンス。
type consentResponse struct {
	ID        string     `json:"id"`
	ContactID string     `json:"contact_id"`
	Kind      string     `json:"kind"`
	Status    string     `json:"status"`
	Method    string     `json:"method"`
	Note      string     `json:"note,omitempty"`
	GrantedAt time.Time  `json:"granted_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// checkConsentResponse は同意確認のAPIレスポンス。
type checkConsentResponse struct {
	Kind   string `json:"kind"`
	Active bool   `json:"active"`
}

// GrantConsent は連絡先に同意を記録する。
// POST /api/contacts/:id/consents
func (h *ConsentHandler) GrantConsent(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	contactID := chi.URLParam(r, "id")

	var req grantConsentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	consent, err := h.consentService.GrantConsent(
		r.Context(), userID, contactID,
		model.ConsentKind(req.Kind), model.ConsentMethod(req.Method),
		req.Note, req.ExpiresAt,
	)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toConsentResponse(consent))
}

// ListContactConsents は連絡先の同意履歴を取得する。
// GET /api/contacts/:id/consents
func (h *ConsentHandler) ListContactConsents(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	consents, err := h.consentService.ListContactConsents(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]consentResponse, len(consents))
	for i, consent := range consents {
		results[i] = toConsentResponse(consent)
	}

	writeJSON(w, http.StatusOK, results)
}

// RevokeConsent は同意を取り消す。
// POST /api/contacts/:id/consents/revoke
func (h *ConsentHandler) RevokeConsent(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	contactID := chi.URLParam(r, "id")

	var req revokeConsentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.consentService.RevokeConsent(r.Context(), userID, contactID, model.ConsentKind(req.Kind)); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CheckConsent は指定種別の同意が有効かどうかを確認する。
// GET /api/contacts/:id/consents/check?kind=email_marketing
func (h *ConsentHandler) CheckConsent(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	contactID := chi.URLParam(r, "id")

	kind := r.URL.Query().Get("kind")
	if kind == "" {
		invalidQueryParam(w, "kindを指定してください。")
		return
	}

	active, err := h.consentService.CheckConsent(r.Context(), userID, contactID, model.ConsentKind(kind))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, checkConsentResponse{
		Kind:   kind,
		Active: active,
	})
}

// GetOverview は種別ごとの有効な同意件数を取得する。
// GET /api/consents/overview
func (h *ConsentHandler) GetOverview(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	overview, err := h.consentService.GetConsentOverview(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make(map[string]int, len(overview))
	for kind, count := range overview {
		results[string(kind)] = count
	}

	writeJSON(w, http.StatusOK, results)
}

// toConsentResponse はmodel.ConsentからAPIレスポンスに変換する。
func toConsentResponse(consent *model.Consent) consentResponse {
	return consentResponse{
		ID:        consent.ID,
		ContactID: consent.ContactID,
		Kind:      string(consent.Kind),
		Status:    string(consent.Status),
		Method:    string(consent.Method),
		Note:      consent.Note,
		GrantedAt: consent.GrantedAt,
		RevokedAt: consent.RevokedAt,
		ExpiresAt: consent.ExpiresAt,
	}
}
