package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/renraku/internal/model"
)

// IdentityServiceInterface は識別子ハンドラーが必要とするサービスインターフェース。
type IdentityServiceInterface interface {
	// AddEmail はメールアドレス識別子を連絡先に追加する。
	AddEmail(ctx context.Context, userID, contactID, raw string) (*model.Identity, error)
	// AddPhone は電話番号識別子を連絡先に追加する。
	AddPhone(ctx context.Context, userID, contactID, raw string) (*model.Identity, error)
	// AddHandle はSNSハンドル識別子を連絡先に追加する。プロバイダー必須。
	AddHandle(ctx context.Context, userID, contactID, provider, raw string) (*model.Identity, error)
	// AddProviderID は外部サービス発行のID識別子を連絡先に追加する。プロバイダー必須。
	AddProviderID(ctx context.Context, userID, contactID, provider, id string) (*model.Identity, error)
	// GetContactIdentities は連絡先の識別子一覧を登録順で返す。
	GetContactIdentities(ctx context.Context, userID, contactID string) ([]*model.Identity, error)
	// RemoveIdentity は識別子を1件削除する。
	RemoveIdentity(ctx context.Context, userID, identityID string) error
	// Resolve は識別子から連絡先を解決する。
	// email → phone → handle → provider_id の固定優先順位で照合し、
	// 最初の一致を返す。どれにも一致しない場合はnilを返す。
	Resolve(ctx context.Context, userID, email, phone, handle, providerID, provider string) (*string, error)
	// FindDuplicateIdentities は複数の連絡先に共有されている識別子値のグループを返す。
	FindDuplicateIdentities(ctx context.Context, userID string) ([]model.DuplicateGroup, error)
	// GetIdentityStats は種別ごとの識別子件数を返す。0件の種別は含まれない。
	GetIdentityStats(ctx context.Context, userID string) (map[model.IdentityKind]int, error)
}

// IdentityHandler は連絡先識別子管理のHTTPハンドラー。
type IdentityHandler struct {
	service IdentityServiceInterface
}

// NewIdentityHandler はIdentityHandlerを生成する。
func NewIdentityHandler(service IdentityServiceInterface) *IdentityHandler {
	return &IdentityHandler{
		service: service,
	}
}

// addIdentityRequest は識別子追加リクエストのボディ。
type addIdentityRequest struct {
	Kind     string `json:"kind"`
	Value    string `json:"value"`
	Provider string `json:"provider"`
}

// resolveRequest は識別子解決リクエストのボディ。
// 指定した識別子だけが照合対象になる。
type resolveRequest struct {
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Handle     string `json:"handle"`
	ProviderID string `json:"provider_id"`
	Provider   string `json:"provider"`
}

// resolveResponse は識別子解決のレスポンス。一致がない場合contact_idはnull。
type resolveResponse struct {
	ContactID *string `json:"contact_id"`
}

// identityResponse は識別子情報のAPIレスポンス。
type identityResponse struct {
	ID        string    `json:"id"`
	ContactID string    `json:"contact_id"`
	Kind      string    `json:"kind"`
	Value     string    `json:"value"`
	Provider  string    `json:"provider,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// duplicateGroupResponse は重複識別子グループのAPIレスポンス。
type duplicateGroupResponse struct {
	Kind       string   `json:"kind"`
	Value      string   `json:"value"`
	Provider   string   `json:"provider,omitempty"`
	ContactIDs []string `json:"contact_ids"`
}

// AddIdentity は連絡先に識別子を追加する。
// POST /api/contacts/:id/identities
func (h *IdentityHandler) AddIdentity(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	contactID := chi.URLParam(r, "id")

	var req addIdentityRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	// 種別ごとに正規化・検証が異なるため、サービス側の専用メソッドに振り分ける
	var identity *model.Identity
	var err error
	switch model.IdentityKind(req.Kind) {
	case model.IdentityKindEmail:
		identity, err = h.service.AddEmail(r.Context(), userID, contactID, req.Value)
	case model.IdentityKindPhone:
		identity, err = h.service.AddPhone(r.Context(), userID, contactID, req.Value)
	case model.IdentityKindHandle:
		identity, err = h.service.AddHandle(r.Context(), userID, contactID, req.Provider, req.Value)
	case model.IdentityKindProviderID:
		identity, err = h.service.AddProviderID(r.Context(), userID, contactID, req.Provider, req.Value)
	default:
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidIdentityKindError(req.Kind))
		return
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toIdentityResponse(identity))
}

// ListContactIdentities は連絡先の識別子一覧を取得する。
// GET /api/contacts/:id/identities
func (h *IdentityHandler) ListContactIdentities(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	identities, err := h.service.GetContactIdentities(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]identityResponse, len(identities))
	for i, identity := range identities {
		results[i] = toIdentityResponse(identity)
	}

	writeJSON(w, http.StatusOK, results)
}

// RemoveIdentity は識別子を削除する。
// DELETE /api/identities/:id
func (h *IdentityHandler) RemoveIdentity(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.RemoveIdentity(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Resolve は識別子から連絡先を解決する。
// POST /api/identities/resolve
func (h *IdentityHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req resolveRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	contactID, err := h.service.Resolve(r.Context(), userID, req.Email, req.Phone, req.Handle, req.ProviderID, req.Provider)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// 一致なしはエラーではなく contact_id: null
	writeJSON(w, http.StatusOK, resolveResponse{ContactID: contactID})
}

// ListDuplicates は複数の連絡先に共有されている識別子のグループ一覧を取得する。
// GET /api/identities/duplicates
func (h *IdentityHandler) ListDuplicates(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	groups, err := h.service.FindDuplicateIdentities(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]duplicateGroupResponse, len(groups))
	for i, group := range groups {
		results[i] = duplicateGroupResponse{
			Kind:       string(group.Kind),
			Value:      group.Value,
			Provider:   group.Provider,
			ContactIDs: group.ContactIDs,
		}
	}

	writeJSON(w, http.StatusOK, results)
}

// GetStats は種別ごとの識別子件数を取得する。
// GET /api/identities/stats
func (h *IdentityHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	stats, err := h.service.GetIdentityStats(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make(map[string]int, len(stats))
	for kind, count := range stats {
		results[string(kind)] = count
	}

	writeJSON(w, http.StatusOK, results)
}

// toIdentityResponse はmodel.IdentityからAPIレスポンスに変換する。
func toIdentityResponse(identity *model.Identity) identityResponse {
	return identityResponse{
		ID:        identity.ID,
		ContactID: identity.ContactID,
		Kind:      string(identity.Kind),
		Value:     identity.Value,
		Provider:  identity.Provider,
		CreatedAt: identity.CreatedAt,
	}
}
