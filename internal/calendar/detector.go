// Package calendar は外部カレンダー連携と予定管理のドメインロジックを提供する。
package calendar

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/renraku/internal/model"
	"golang.org/x/net/html"
)

// CalendarCandidate はHTMLから検出されたiCalendarフィード候補を表す。
type CalendarCandidate struct {
	URL   string
	Title string
}

// SSRFValidator はSSRF検証のインターフェース。
// security.SSRFGuardServiceを抽象化してテスタビリティを向上させる。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// CalendarDetector はiCalendarフィードの自動検出機能を提供する。
type CalendarDetector struct {
	ssrfGuard SSRFValidator
}

// NewCalendarDetector はCalendarDetectorの新しいインスタンスを生成する。
func NewCalendarDetector(ssrfGuard SSRFValidator) *CalendarDetector {
	return &CalendarDetector{
		ssrfGuard: ssrfGuard,
	}
}

// calendarContentType はiCalendarフィードとして認識するContent-Type。
const calendarContentType = "text/calendar"

// IsDirectCalendar はContent-Typeとボディを解析して、
// 指定されたレスポンスがiCalendarフィードかどうかを判定する。
// Content-Typeがtext/calendarでなくても、ボディがVCALENDARで始まる場合は
// フィードとみなす（.icsをtext/plainで配信するサーバーがあるため）。
func (d *CalendarDetector) IsDirectCalendar(contentType string, body []byte) bool {
	// Content-Typeからメディアタイプを抽出（charsetなどのパラメータを除去）
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	mediaType = strings.ToLower(mediaType)

	if mediaType == calendarContentType {
		return true
	}

	return isVCalendarBody(body)
}

// isVCalendarBody はボディの先頭部分を解析してiCalendarフィードかを判定する。
func isVCalendarBody(body []byte) bool {
	if len(body) == 0 {
		return false
	}

	// 先頭4KBを検査（BOMや空行を挟んでBEGIN:VCALENDARが現れるのに十分）
	checkSize := 4096
	if len(body) < checkSize {
		checkSize = len(body)
	}
	prefix := strings.TrimLeft(string(body[:checkSize]), "\xef\xbb\xbf \t\r\n")

	return strings.HasPrefix(strings.ToUpper(prefix), "BEGIN:VCALENDAR")
}

// ParseCalendarLinksFromHTML はHTMLのheadタグからiCalendarフィードリンクを解析・検出する。
// 相対URLはbaseURLを基準に絶対URLに解決される。
func (d *CalendarDetector) ParseCalendarLinksFromHTML(htmlBody []byte, baseURL string) []CalendarCandidate {
	var candidates []CalendarCandidate

	baseU, err := url.Parse(baseURL)
	if err != nil {
		return candidates
	}

	tokenizer := html.NewTokenizer(bytes.NewReader(htmlBody))
	inHead := false

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return candidates

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			tagName := string(tn)

			if tagName == "head" {
				inHead = true
				continue
			}

			if tagName == "body" {
				// bodyに入ったらheadの解析を終了
				return candidates
			}

			if !inHead || tagName != "link" || !hasAttr {
				continue
			}

			// link要素の属性を解析
			var rel, linkType, href, title string
			for {
				key, val, more := tokenizer.TagAttr()
				k := strings.ToLower(string(key))
				v := string(val)
				switch k {
				case "rel":
					rel = strings.ToLower(v)
				case "type":
					linkType = strings.ToLower(v)
				case "href":
					href = v
				case "title":
					title = v
				}
				if !more {
					break
				}
			}

			// rel="alternate" かつ text/calendar のリンクのみ対象
			if rel != "alternate" || href == "" {
				continue
			}
			if linkType != calendarContentType {
				continue
			}

			// 相対URLを絶対URLに解決し、webcalスキームはhttpsに読み替える
			resolvedURL := resolveURL(baseU, href)
			if resolvedURL == "" {
				continue
			}

			candidates = append(candidates, CalendarCandidate{
				URL:   FoldWebcalScheme(resolvedURL),
				Title: title,
			})

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "head" {
				return candidates
			}
		}
	}
}

// resolveURL は相対URLをベースURLを基準に絶対URLに解決する。
func resolveURL(base *url.URL, rawRef string) string {
	ref, err := url.Parse(rawRef)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// SelectBestCandidate は複数のフィード候補から優先順位に従って最適なフィードを選択する。
// 優先順位: 同一ホスト > 先頭
func (d *CalendarDetector) SelectBestCandidate(candidates []CalendarCandidate, inputURL string) *CalendarCandidate {
	if len(candidates) == 0 {
		return nil
	}

	inputHost := extractHost(inputURL)

	// スコアリング: 同一ホスト(+100) + 先頭優先（同スコアならインデックスが小さい方）
	bestIdx := 0
	bestScore := -1

	for i, c := range candidates {
		score := 0

		candidateHost := extractHost(c.URL)
		if candidateHost == inputHost {
			score += 100
		}

		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}

	return &candidates[bestIdx]
}

// extractHost はURLからホスト名を抽出する。
func extractHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// FoldWebcalScheme はwebcal://スキームのURLをhttps://に読み替える。
// webcal以外のURLはそのまま返す。
func FoldWebcalScheme(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if !strings.EqualFold(u.Scheme, "webcal") {
		return rawURL
	}
	u.Scheme = "https"
	return u.String()
}

// DetectCalendarURL はURLがiCalendarフィードかHTMLかを判定し、フィードURLを返す。
// 1. webcal://スキームをhttps://に読み替え
// 2. SSRF検証を実行
// 3. URLにHTTPリクエストを送信
// 4. Content-Typeとボディからフィードかどうかを判定
// 5. HTMLの場合はheadタグからフィードリンクを検出し、優先順位で選択
// 6. フィード未検出の場合はエラー（原因カテゴリ + 対処方法）を返す
func (d *CalendarDetector) DetectCalendarURL(ctx context.Context, inputURL string) (string, error) {
	// 空URLチェック
	if inputURL == "" {
		return "", model.NewInvalidURLError("URLが入力されていません")
	}

	// webcal://はhttps://の別名として扱う
	inputURL = FoldWebcalScheme(inputURL)

	// SSRF検証
	if d.ssrfGuard != nil {
		if err := d.ssrfGuard.ValidateURL(inputURL); err != nil {
			return "", model.NewSSRFBlockedError()
		}
	}

	// HTTPリクエスト送信
	client := d.getHTTPClient()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, inputURL, nil)
	if err != nil {
		return "", model.NewInvalidURLError(err.Error())
	}
	req.Header.Set("User-Agent", "Renraku/1.0")
	req.Header.Set("Accept", "text/calendar, text/html, */*")

	resp, err := client.Do(req)
	if err != nil {
		return "", model.NewFetchFailedError(err.Error())
	}
	defer resp.Body.Close()

	// レスポンスボディを読み込み（最大5MB）
	const maxBodySize = 5 * 1024 * 1024
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", model.NewFetchFailedError(fmt.Sprintf("レスポンスの読み取りに失敗: %v", err))
	}

	contentType := resp.Header.Get("Content-Type")

	// フィード直接判定
	if d.IsDirectCalendar(contentType, body) {
		return inputURL, nil
	}

	// HTMLの場合: headタグからフィードリンクを検出
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if !strings.Contains(strings.ToLower(mediaType), "html") {
		// HTMLでもiCalendarフィードでもない場合
		return "", model.NewCalendarNotDetectedError(inputURL)
	}

	candidates := d.ParseCalendarLinksFromHTML(body, inputURL)
	if len(candidates) == 0 {
		return "", model.NewCalendarNotDetectedError(inputURL)
	}

	// 優先順位に従って最適なフィードを選択
	best := d.SelectBestCandidate(candidates, inputURL)
	if best == nil {
		return "", model.NewCalendarNotDetectedError(inputURL)
	}

	return best.URL, nil
}

// getHTTPClient はHTTPクライアントを取得する。
// SSRFGuardが設定されている場合はSSRF防止付きクライアントを返す。
func (d *CalendarDetector) getHTTPClient() *http.Client {
	if d.ssrfGuard != nil {
		return d.ssrfGuard.NewSafeClient(10*time.Second, 5*1024*1024)
	}
	return &http.Client{Timeout: 10 * time.Second}
}
