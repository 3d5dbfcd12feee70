package calendar

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxIconSize はアカウントアイコンの最大サイズ（2MB）。
const maxIconSize = 2 * 1024 * 1024

// iconTimeout はアイコン取得のタイムアウト。
const iconTimeout = 5 * time.Second

// IconFetcherService はカレンダー提供元サイトのアイコン取得のインターフェース。
type IconFetcherService interface {
	// FetchIcon は指定URLからアイコン画像を取得する。
	// 取得失敗時はnilデータと空MIMEを返す（エラーは返さない）。
	FetchIcon(ctx context.Context, iconURL string) (data []byte, mimeType string, err error)

	// FetchIconForSite はサイトURLからアイコンを推測して取得する。
	// /favicon.ico を試行し、取得失敗時はnilデータと空MIMEを返す。
	FetchIconForSite(ctx context.Context, siteURL string) (data []byte, mimeType string, err error)
}

// IconFetcher はアイコン取得機能の実装。
// アイコンは表示用の飾りにすぎないため、失敗してもアカウント登録は継続する。
type IconFetcher struct {
	ssrfGuard SSRFValidator
}

// NewIconFetcher はIconFetcherの新しいインスタンスを生成する。
func NewIconFetcher(ssrfGuard SSRFValidator) *IconFetcher {
	return &IconFetcher{
		ssrfGuard: ssrfGuard,
	}
}

// FetchIcon は指定URLからアイコン画像を取得する。
// 取得失敗時はnilデータと空MIMEを返す（アイコンなしとして保存される）。
func (f *IconFetcher) FetchIcon(ctx context.Context, iconURL string) ([]byte, string, error) {
	if iconURL == "" {
		return nil, "", nil
	}

	// SSRF検証
	if f.ssrfGuard != nil {
		if err := f.ssrfGuard.ValidateURL(iconURL); err != nil {
			slog.Warn("アイコン取得: SSRFブロック", "url", iconURL, "error", err)
			return nil, "", nil
		}
	}

	client := f.getHTTPClient()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, iconURL, nil)
	if err != nil {
		slog.Warn("アイコン取得: リクエスト作成失敗", "url", iconURL, "error", err)
		return nil, "", nil
	}
	req.Header.Set("User-Agent", "Renraku/1.0")

	resp, err := client.Do(req)
	if err != nil {
		slog.Warn("アイコン取得: HTTPリクエスト失敗", "url", iconURL, "error", err)
		return nil, "", nil
	}
	defer resp.Body.Close()

	// 2xx以外はアイコン取得失敗として扱う
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("アイコン取得: HTTPステータス異常", "url", iconURL, "status", resp.StatusCode)
		return nil, "", nil
	}

	// レスポンスボディを読み込み（最大2MB）
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxIconSize+1))
	if err != nil {
		slog.Warn("アイコン取得: レスポンス読み取り失敗", "url", iconURL, "error", err)
		return nil, "", nil
	}

	// サイズ超過チェック
	if int64(len(body)) > maxIconSize {
		slog.Warn("アイコン取得: サイズ超過", "url", iconURL, "size", len(body))
		return nil, "", nil
	}

	contentType := resp.Header.Get("Content-Type")
	mimeType := extractMimeType(contentType)

	// 画像でない場合はnilを返す
	if !isImageMime(mimeType) {
		slog.Warn("アイコン取得: 画像以外のContent-Type", "url", iconURL, "contentType", contentType)
		return nil, "", nil
	}

	return body, mimeType, nil
}

// FetchIconForSite はサイトURLからアイコンを推測して取得する。
// /favicon.ico を試行し、取得失敗時はnilデータと空MIMEを返す。
func (f *IconFetcher) FetchIconForSite(ctx context.Context, siteURL string) ([]byte, string, error) {
	iconURL := guessDefaultIconURL(siteURL)
	if iconURL == "" {
		return nil, "", nil
	}
	return f.FetchIcon(ctx, iconURL)
}

// getHTTPClient はHTTPクライアントを取得する。
func (f *IconFetcher) getHTTPClient() *http.Client {
	if f.ssrfGuard != nil {
		return f.ssrfGuard.NewSafeClient(iconTimeout, maxIconSize)
	}
	return &http.Client{Timeout: iconTimeout}
}

// guessDefaultIconURL はサイトURLからデフォルトのfavicon URLを推測する。
func guessDefaultIconURL(siteURL string) string {
	if siteURL == "" {
		return ""
	}

	u, err := url.Parse(siteURL)
	if err != nil {
		return ""
	}

	// パスを/favicon.icoに設定
	u.Path = "/favicon.ico"
	u.RawQuery = ""
	u.Fragment = ""

	return u.String()
}

// extractMimeType はContent-Typeヘッダーからメディアタイプを抽出する。
func extractMimeType(contentType string) string {
	if contentType == "" {
		return ""
	}
	// セミコロンの前の部分（charset等を除去）
	parts := strings.SplitN(contentType, ";", 2)
	return strings.TrimSpace(strings.ToLower(parts[0]))
}

// isImageMime はMIMEタイプが画像かどうかを判定する。
func isImageMime(mimeType string) bool {
	if mimeType == "" {
		return false
	}
	imageTypes := []string{
		"image/png",
		"image/jpeg",
		"image/gif",
		"image/svg+xml",
		"image/x-icon",
		"image/vnd.microsoft.icon",
		"image/webp",
		"image/bmp",
		"image/ico",
	}
	for _, t := range imageTypes {
		if mimeType == t {
			return true
		}
	}
	// image/ で始まるものは許可
	return strings.HasPrefix(mimeType, "image/")
}

// compile-time interface check
var _ IconFetcherService = (*IconFetcher)(nil)
