package calendar

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/renraku/internal/model"
)

// sampleICS はテスト用の最小iCalendarフィード。
const sampleICS = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Renraku Test//EN
BEGIN:VEVENT
UID:evt-1@example.com
DTSTART:20250120T090000Z
DTEND:20250120T100000Z
SUMMARY:Test Event
END:VEVENT
END:VCALENDAR
`

// --- IsDirectCalendar のテスト ---

// TestIsDirectCalendar_CalendarContentType はContent-Typeがtext/calendarの場合にtrueを返すことをテストする。
func TestIsDirectCalendar_CalendarContentType(t *testing.T) {
	d := NewCalendarDetector(nil)
	if !d.IsDirectCalendar("text/calendar", nil) {
		t.Error("text/calendar はiCalendarフィードと判定されるべき")
	}
}

// TestIsDirectCalendar_ContentTypeWithCharset はcharsetパラメータ付きでも正しく判定することをテストする。
func TestIsDirectCalendar_ContentTypeWithCharset(t *testing.T) {
	d := NewCalendarDetector(nil)
	if !d.IsDirectCalendar("text/calendar; charset=utf-8", nil) {
		t.Error("text/calendar; charset=utf-8 はiCalendarフィードと判定されるべき")
	}
}

// TestIsDirectCalendar_PlainTextWithVCalendarBody はtext/plain配信でもVCALENDARボディで判定することをテストする。
func TestIsDirectCalendar_PlainTextWithVCalendarBody(t *testing.T) {
	d := NewCalendarDetector(nil)
	if !d.IsDirectCalendar("text/plain", []byte(sampleICS)) {
		t.Error("text/plain + VCALENDARボディ はiCalendarフィードと判定されるべき")
	}
}

// TestIsDirectCalendar_OctetStreamWithVCalendarBody はapplication/octet-stream配信でも判定することをテストする。
func TestIsDirectCalendar_OctetStreamWithVCalendarBody(t *testing.T) {
	d := NewCalendarDetector(nil)
	if !d.IsDirectCalendar("application/octet-stream", []byte(sampleICS)) {
		t.Error("application/octet-stream + VCALENDARボディ はiCalendarフィードと判定されるべき")
	}
}

// TestIsDirectCalendar_LowercaseBody は小文字のbegin:vcalendarでも判定することをテストする。
func TestIsDirectCalendar_LowercaseBody(t *testing.T) {
	d := NewCalendarDetector(nil)
	body := []byte("begin:vcalendar\nversion:2.0\nend:vcalendar\n")
	if !d.IsDirectCalendar("text/plain", body) {
		t.Error("小文字のbegin:vcalendarもiCalendarフィードと判定されるべき")
	}
}

// TestIsDirectCalendar_BOMAndLeadingWhitespace はBOMや空行を挟んだボディでも判定することをテストする。
func TestIsDirectCalendar_BOMAndLeadingWhitespace(t *testing.T) {
	d := NewCalendarDetector(nil)
	body := []byte("\xef\xbb\xbf\r\n  BEGIN:VCALENDAR\nVERSION:2.0\nEND:VCALENDAR\n")
	if !d.IsDirectCalendar("text/plain", body) {
		t.Error("BOM付きボディもiCalendarフィードと判定されるべき")
	}
}

// TestIsDirectCalendar_HTMLBody はHTMLボディがフィードと判定されないことをテストする。
func TestIsDirectCalendar_HTMLBody(t *testing.T) {
	d := NewCalendarDetector(nil)
	body := []byte(`<html><head><title>Test</title></head><body></body></html>`)
	if d.IsDirectCalendar("text/html", body) {
		t.Error("text/html + HTMLボディ はiCalendarフィードと判定されるべきではない")
	}
}

// TestIsDirectCalendar_EmptyBody は空ボディがフィードと判定されないことをテストする。
func TestIsDirectCalendar_EmptyBody(t *testing.T) {
	d := NewCalendarDetector(nil)
	if d.IsDirectCalendar("text/plain", nil) {
		t.Error("text/plain + 空ボディ はiCalendarフィードと判定されるべきではない")
	}
}

// --- ParseCalendarLinksFromHTML のテスト ---

// TestParseCalendarLinksFromHTML_SingleLink はHTMLから単一のカレンダーリンクを検出することをテストする。
func TestParseCalendarLinksFromHTML_SingleLink(t *testing.T) {
	d := NewCalendarDetector(nil)
	html := `<html><head>
		<link rel="alternate" type="text/calendar" title="Studio Calendar" href="https://example.com/calendar.ics">
	</head><body></body></html>`

	links := d.ParseCalendarLinksFromHTML([]byte(html), "https://example.com")

	if len(links) != 1 {
		t.Fatalf("期待: 1リンク, 結果: %d リンク", len(links))
	}
	if links[0].URL != "https://example.com/calendar.ics" {
		t.Errorf("期待URL: https://example.com/calendar.ics, 結果: %s", links[0].URL)
	}
	if links[0].Title != "Studio Calendar" {
		t.Errorf("期待タイトル: Studio Calendar, 結果: %s", links[0].Title)
	}
}

// TestParseCalendarLinksFromHTML_RelativeURL は相対URLが正しく絶対URLに解決されることをテストする。
func TestParseCalendarLinksFromHTML_RelativeURL(t *testing.T) {
	d := NewCalendarDetector(nil)
	html := `<html><head>
		<link rel="alternate" type="text/calendar" href="/schedule/basic.ics">
	</head><body></body></html>`

	links := d.ParseCalendarLinksFromHTML([]byte(html), "https://studio.example.com/about")

	if len(links) != 1 {
		t.Fatalf("期待: 1リンク, 結果: %d リンク", len(links))
	}
	if links[0].URL != "https://studio.example.com/schedule/basic.ics" {
		t.Errorf("期待URL: https://studio.example.com/schedule/basic.ics, 結果: %s", links[0].URL)
	}
}

// TestParseCalendarLinksFromHTML_WebcalHref はwebcal://のhrefがhttps://に読み替えられることをテストする。
func TestParseCalendarLinksFromHTML_WebcalHref(t *testing.T) {
	d := NewCalendarDetector(nil)
	html := `<html><head>
		<link rel="alternate" type="text/calendar" href="webcal://example.com/feed.ics">
	</head><body></body></html>`

	links := d.ParseCalendarLinksFromHTML([]byte(html), "https://example.com")

	if len(links) != 1 {
		t.Fatalf("期待: 1リンク, 結果: %d リンク", len(links))
	}
	if links[0].URL != "https://example.com/feed.ics" {
		t.Errorf("期待URL: https://example.com/feed.ics, 結果: %s", links[0].URL)
	}
}

// TestParseCalendarLinksFromHTML_IgnoreOtherTypes はtext/calendar以外のalternateリンクを無視することをテストする。
func TestParseCalendarLinksFromHTML_IgnoreOtherTypes(t *testing.T) {
	d := NewCalendarDetector(nil)
	html := `<html><head>
		<link rel="stylesheet" type="text/css" href="/style.css">
		<link rel="alternate" type="application/rss+xml" href="/feed.xml">
		<link rel="icon" href="/favicon.ico">
		<link rel="alternate" type="text/calendar" href="/calendar.ics">
	</head><body></body></html>`

	links := d.ParseCalendarLinksFromHTML([]byte(html), "https://example.com")

	if len(links) != 1 {
		t.Fatalf("期待: 1リンク, 結果: %d リンク", len(links))
	}
	if links[0].URL != "https://example.com/calendar.ics" {
		t.Errorf("期待URL: https://example.com/calendar.ics, 結果: %s", links[0].URL)
	}
}

// TestParseCalendarLinksFromHTML_NoLinks はカレンダーリンクがないHTMLで空スライスを返すことをテストする。
func TestParseCalendarLinksFromHTML_NoLinks(t *testing.T) {
	d := NewCalendarDetector(nil)
	html := `<html><head><title>No Calendar</title></head><body></body></html>`

	links := d.ParseCalendarLinksFromHTML([]byte(html), "https://example.com")

	if len(links) != 0 {
		t.Errorf("期待: 0リンク, 結果: %d リンク", len(links))
	}
}

// --- SelectBestCandidate（優先順位ロジック）のテスト ---

// TestSelectBestCandidate_SameHostPreferred は同一ホストの候補が優先されることをテストする。
func TestSelectBestCandidate_SameHostPreferred(t *testing.T) {
	d := NewCalendarDetector(nil)
	candidates := []CalendarCandidate{
		{URL: "https://other.com/calendar.ics", Title: "Other"},
		{URL: "https://example.com/calendar.ics", Title: "Same Host"},
	}

	best := d.SelectBestCandidate(candidates, "https://example.com")

	if best.URL != "https://example.com/calendar.ics" {
		t.Errorf("同一ホストの候補が優先されるべき。期待: https://example.com/calendar.ics, 結果: %s", best.URL)
	}
}

// TestSelectBestCandidate_FirstWhenSameCondition は同条件の場合に先頭が選択されることをテストする。
func TestSelectBestCandidate_FirstWhenSameCondition(t *testing.T) {
	d := NewCalendarDetector(nil)
	candidates := []CalendarCandidate{
		{URL: "https://example.com/cal1.ics", Title: "First"},
		{URL: "https://example.com/cal2.ics", Title: "Second"},
	}

	best := d.SelectBestCandidate(candidates, "https://example.com")

	if best.URL != "https://example.com/cal1.ics" {
		t.Errorf("同条件なら先頭が選択されるべき。期待: https://example.com/cal1.ics, 結果: %s", best.URL)
	}
}

// TestSelectBestCandidate_EmptyCandidates は候補が0件の場合にnilを返すことをテストする。
func TestSelectBestCandidate_EmptyCandidates(t *testing.T) {
	d := NewCalendarDetector(nil)

	best := d.SelectBestCandidate([]CalendarCandidate{}, "https://example.com")

	if best != nil {
		t.Error("候補が0件の場合はnilを返すべき")
	}
}

// --- FoldWebcalScheme のテスト ---

// TestFoldWebcalScheme はwebcal://スキームのhttps://読み替えをテストする。
func TestFoldWebcalScheme(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "webcalはhttpsに読み替えられる",
			input: "webcal://example.com/feed.ics",
			want:  "https://example.com/feed.ics",
		},
		{
			name:  "大文字のWEBCALも読み替えられる",
			input: "WEBCAL://example.com/feed.ics",
			want:  "https://example.com/feed.ics",
		},
		{
			name:  "パスとクエリは維持される",
			input: "webcal://example.com/u/1/basic.ics?key=abc",
			want:  "https://example.com/u/1/basic.ics?key=abc",
		},
		{
			name:  "httpsはそのまま",
			input: "https://example.com/feed.ics",
			want:  "https://example.com/feed.ics",
		},
		{
			name:  "httpはそのまま",
			input: "http://example.com/feed.ics",
			want:  "http://example.com/feed.ics",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FoldWebcalScheme(tt.input)
			if got != tt.want {
				t.Errorf("FoldWebcalScheme(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// --- DetectCalendarURL（統合テスト）---

// TestDetectCalendarURL_DirectICS はiCalendarフィードURLが直接入力された場合のテスト。
func TestDetectCalendarURL_DirectICS(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		fmt.Fprint(w, sampleICS)
	}))
	defer server.Close()

	guard := &mockSSRFGuard{}
	d := NewCalendarDetector(guard)

	feedURL, err := d.DetectCalendarURL(context.Background(), server.URL+"/calendar.ics")
	if err != nil {
		t.Fatalf("DetectCalendarURL returned error: %v", err)
	}
	if feedURL != server.URL+"/calendar.ics" {
		t.Errorf("期待URL: %s/calendar.ics, 結果: %s", server.URL, feedURL)
	}
}

// TestDetectCalendarURL_PlainTextICS はtext/plain配信のICSをボディで検出するテスト。
func TestDetectCalendarURL_PlainTextICS(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, sampleICS)
	}))
	defer server.Close()

	guard := &mockSSRFGuard{}
	d := NewCalendarDetector(guard)

	feedURL, err := d.DetectCalendarURL(context.Background(), server.URL+"/basic.ics")
	if err != nil {
		t.Fatalf("DetectCalendarURL returned error: %v", err)
	}
	if feedURL != server.URL+"/basic.ics" {
		t.Errorf("期待URL: %s/basic.ics, 結果: %s", server.URL, feedURL)
	}
}

// TestDetectCalendarURL_HTMLWithCalendarLink はHTMLページにカレンダーリンクがある場合のテスト。
func TestDetectCalendarURL_HTMLWithCalendarLink(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, `<html><head>
				<link rel="alternate" type="text/calendar" href="/calendar.ics">
			</head><body></body></html>`)
		case "/calendar.ics":
			w.Header().Set("Content-Type", "text/calendar")
			fmt.Fprint(w, sampleICS)
		}
	}))
	defer server.Close()

	guard := &mockSSRFGuard{}
	d := NewCalendarDetector(guard)

	feedURL, err := d.DetectCalendarURL(context.Background(), server.URL+"/")
	if err != nil {
		t.Fatalf("DetectCalendarURL returned error: %v", err)
	}
	if feedURL != server.URL+"/calendar.ics" {
		t.Errorf("期待URL: %s/calendar.ics, 結果: %s", server.URL, feedURL)
	}
}

// TestDetectCalendarURL_HTMLPrefersSameHost はHTMLに複数リンクがある場合に同一ホストを優先するテスト。
func TestDetectCalendarURL_HTMLPrefersSameHost(t *testing.T) {
	var serverURL string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprintf(w, `<html><head>
				<link rel="alternate" type="text/calendar" href="https://external.com/shared.ics">
				<link rel="alternate" type="text/calendar" href="%s/own.ics">
			</head><body></body></html>`, serverURL)
		case "/own.ics":
			w.Header().Set("Content-Type", "text/calendar")
			fmt.Fprint(w, sampleICS)
		}
	}))
	defer server.Close()
	serverURL = server.URL

	guard := &mockSSRFGuard{}
	d := NewCalendarDetector(guard)

	feedURL, err := d.DetectCalendarURL(context.Background(), server.URL+"/")
	if err != nil {
		t.Fatalf("DetectCalendarURL returned error: %v", err)
	}
	if feedURL != server.URL+"/own.ics" {
		t.Errorf("同一ホストのリンクが優先されるべき。期待: %s/own.ics, 結果: %s", server.URL, feedURL)
	}
}

// TestDetectCalendarURL_HTMLNoCalendarLink はカレンダーリンクがないHTMLでエラーを返すテスト。
func TestDetectCalendarURL_HTMLNoCalendarLink(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>No Calendar</title></head><body></body></html>`)
	}))
	defer server.Close()

	guard := &mockSSRFGuard{}
	d := NewCalendarDetector(guard)

	_, err := d.DetectCalendarURL(context.Background(), server.URL+"/")
	if err == nil {
		t.Fatal("カレンダー未検出時はエラーを返すべき")
	}

	apiErr, ok := err.(*model.APIError)
	if !ok {
		t.Fatalf("APIError型が期待されるが、%T が返された", err)
	}
	if apiErr.Code != model.ErrCodeCalendarNotDetected {
		t.Errorf("期待エラーコード: %s, 結果: %s", model.ErrCodeCalendarNotDetected, apiErr.Code)
	}
	if apiErr.Action == "" {
		t.Error("対処方法が空であるべきではない")
	}
}

// TestDetectCalendarURL_NonCalendarNonHTML はカレンダーでもHTMLでもないレスポンスでエラーを返すテスト。
func TestDetectCalendarURL_NonCalendarNonHTML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"message":"not a calendar"}`)
	}))
	defer server.Close()

	guard := &mockSSRFGuard{}
	d := NewCalendarDetector(guard)

	_, err := d.DetectCalendarURL(context.Background(), server.URL+"/api")
	if err == nil {
		t.Fatal("JSONレスポンスはエラーを返すべき")
	}

	apiErr, ok := err.(*model.APIError)
	if !ok {
		t.Fatalf("APIError型が期待されるが、%T が返された", err)
	}
	if apiErr.Code != model.ErrCodeCalendarNotDetected {
		t.Errorf("期待エラーコード: %s, 結果: %s", model.ErrCodeCalendarNotDetected, apiErr.Code)
	}
}

// TestDetectCalendarURL_SSRFBlocked はSSRF検証で拒否されるURLのテスト。
func TestDetectCalendarURL_SSRFBlocked(t *testing.T) {
	guard := &mockSSRFGuard{blockAll: true}
	d := NewCalendarDetector(guard)

	_, err := d.DetectCalendarURL(context.Background(), "http://192.168.1.1/calendar.ics")
	if err == nil {
		t.Fatal("SSRF検証でブロックされるURLはエラーを返すべき")
	}

	apiErr, ok := err.(*model.APIError)
	if !ok {
		t.Fatalf("APIError型が期待されるが、%T が返された", err)
	}
	if apiErr.Code != model.ErrCodeSSRFBlocked {
		t.Errorf("期待エラーコード: %s, 結果: %s", model.ErrCodeSSRFBlocked, apiErr.Code)
	}
}

// TestDetectCalendarURL_EmptyURL は空URLがエラーを返すことをテストする。
func TestDetectCalendarURL_EmptyURL(t *testing.T) {
	guard := &mockSSRFGuard{}
	d := NewCalendarDetector(guard)

	_, err := d.DetectCalendarURL(context.Background(), "")
	if err == nil {
		t.Fatal("空URLはエラーを返すべき")
	}

	apiErr, ok := err.(*model.APIError)
	if !ok {
		t.Fatalf("APIError型が期待されるが、%T が返された", err)
	}
	if apiErr.Code != model.ErrCodeInvalidURL {
		t.Errorf("期待エラーコード: %s, 結果: %s", model.ErrCodeInvalidURL, apiErr.Code)
	}
}

// --- mockSSRFGuard ---

// mockSSRFGuard はテスト用のSSRFGuardモック。
type mockSSRFGuard struct {
	blockAll bool
}

func (m *mockSSRFGuard) NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client {
	return &http.Client{Timeout: timeout}
}

func (m *mockSSRFGuard) ValidateURL(rawURL string) error {
	if m.blockAll {
		return fmt.Errorf("blocked by SSRF guard")
	}
	return nil
}
