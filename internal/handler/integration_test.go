package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/renraku/internal/middleware"
	"github.com/hitoshi/renraku/internal/model"
)

// TestIntegration_MeEndpoint_WithSessionCookie は/auth/meがセッションCookieから
// ログインユーザーを解決することを検証する。
func TestIntegration_MeEndpoint_WithSessionCookie(t *testing.T) {
	deps := newTestRouterDeps(t)
	deps.AuthService = &mockAuthService{
		getCurrentUserFn: func(ctx context.Context, sessionID string) (*model.User, error) {
			if sessionID != "valid-session" {
				t.Errorf("sessionID = %q, want %q", sessionID, "valid-session")
			}
			return &model.User{
				ID:    "user-123",
				Email: "hanako@example.com",
				Name:  "山田花子",
			}, nil
		},
	}

	router := NewRouter(deps)

	req := withSession(httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["email"] != "hanako@example.com" {
		t.Errorf("email = %v, want %q", body["email"], "hanako@example.com")
	}
	if body["name"] != "山田花子" {
		t.Errorf("name = %v, want %q", body["name"], "山田花子")
	}
}

// TestIntegration_ContactLifecycle は連絡先の作成・取得・アーカイブが
// ルーター経由で一貫して動作することを検証する。
func TestIntegration_ContactLifecycle(t *testing.T) {
	var (
		mu    sync.Mutex
		store = map[string]*model.Contact{}
	)

	deps := newTestRouterDeps(t)
	deps.ContactService = &mockContactService{
		createContactFn: func(ctx context.Context, userID, firstName, lastName, company, notes string) (*model.Contact, error) {
			mu.Lock()
			defer mu.Unlock()
			contact := &model.Contact{
				ID:        "contact-id-1",
				UserID:    userID,
				FirstName: firstName,
				LastName:  lastName,
				Company:   company,
			}
			store[contact.ID] = contact
			return contact, nil
		},
		getContactFn: func(ctx context.Context, userID, contactID string) (*model.Contact, error) {
			mu.Lock()
			defer mu.Unlock()
			return store[contactID], nil
		},
		archiveContactFn: func(ctx context.Context, userID, contactID string) (*model.Contact, error) {
			mu.Lock()
			defer mu.Unlock()
			contact, ok := store[contactID]
			if !ok {
				return nil, model.NewContactNotFoundError(contactID)
			}
			contact.Archived = true
			return contact, nil
		},
	}

	router := NewRouter(deps)

	// 1. 作成
	body := `{"first_name": "花子", "last_name": "山田", "company": "山田歯科"}`
	req := httptest.NewRequest(http.MethodPost, "/api/contacts", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req = withSession(req)
	req = withCSRF(req)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want %d", w.Result().StatusCode, http.StatusCreated)
	}

	var created map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode create response: %v", err)
	}
	contactID, _ := created["id"].(string)
	if contactID == "" {
		t.Fatal("expected contact ID in create response")
	}

	// 2. 取得
	req = withSession(httptest.NewRequest(http.MethodGet, "/api/contacts/"+contactID, nil))
	w = httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("get status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	var fetched map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&fetched); err != nil {
		t.Fatalf("failed to decode get response: %v", err)
	}
	if fetched["display_name"] != "花子 山田" {
		t.Errorf("display_name = %v, want %q", fetched["display_name"], "花子 山田")
	}

	// 3. アーカイブ
	req = httptest.NewRequest(http.MethodPost, "/api/contacts/"+contactID+"/archive", nil)
	req = withSession(req)
	req = withCSRF(req)
	w = httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("archive status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	var archived map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&archived); err != nil {
		t.Fatalf("failed to decode archive response: %v", err)
	}
	if archived["archived"] != true {
		t.Errorf("archived = %v, want true", archived["archived"])
	}
}

// TestIntegration_RateLimit_Returns429AfterBurst はバーストを使い切った後の
// リクエストが429で拒否されることを検証する。
func TestIntegration_RateLimit_Returns429AfterBurst(t *testing.T) {
	deps := newTestRouterDeps(t)

	// バースト2、補充はほぼゼロのリミッターに差し替える
	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:     rate.Limit(0.001),
		GeneralBurst:    2,
		AccountRegRate:  rate.Limit(0.001),
		AccountRegBurst: 1,
		CleanupInterval: 1 * time.Minute,
	})
	t.Cleanup(rl.Stop)
	deps.RateLimiter = rl

	router := NewRouter(deps)

	doRequest := func() int {
		req := withSession(httptest.NewRequest(http.MethodGet, "/api/contacts", nil))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Result().StatusCode
	}

	if got := doRequest(); got != http.StatusOK {
		t.Fatalf("request 1 status = %d, want %d", got, http.StatusOK)
	}
	if got := doRequest(); got != http.StatusOK {
		t.Fatalf("request 2 status = %d, want %d", got, http.StatusOK)
	}

	status := doRequest()
	if status != http.StatusTooManyRequests {
		t.Errorf("request 3 status = %d, want %d", status, http.StatusTooManyRequests)
	}
}

// TestIntegration_CSRFCookieIssuedOnSafeRequest は保護ルートへのGETリクエストで
// CSRFトークンCookieが発行されることを検証する。
func TestIntegration_CSRFCookieIssuedOnSafeRequest(t *testing.T) {
	router := NewRouter(newTestRouterDeps(t))

	req := withSession(httptest.NewRequest(http.MethodGet, "/api/contacts", nil))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var issued bool
	for _, cookie := range resp.Cookies() {
		if cookie.Name == "csrf_token" && cookie.Value != "" {
			issued = true
		}
	}
	if !issued {
		t.Error("expected csrf_token cookie to be issued")
	}
}

// TestIntegration_CSRFTokenMismatch_Returns403 はCookieとヘッダーのトークンが
// 一致しない状態変更リクエストが拒否されることを検証する。
func TestIntegration_CSRFTokenMismatch_Returns403(t *testing.T) {
	router := NewRouter(newTestRouterDeps(t))

	body := `{"name": "要フォロー"}`
	req := httptest.NewRequest(http.MethodPost, "/api/tags", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req = withSession(req)
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "cookie-token"})
	req.Header.Set("X-CSRF-Token", "different-token")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusForbidden)
	}
}

// TestIntegration_ExpiredSession_Returns401 はセッションが見つからない場合に
// 保護ルートへのアクセスが拒否されることを検証する。
func TestIntegration_ExpiredSession_Returns401(t *testing.T) {
	deps := newTestRouterDeps(t)
	deps.SessionFinder = &mockSessionFinder{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			// 期限切れセッションはリポジトリ層でnilになる
			return nil, nil
		},
	}

	router := NewRouter(deps)

	req := withSession(httptest.NewRequest(http.MethodGet, "/api/momentum", nil))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}
