package model

import "time"

// SyncStatus はカレンダーアカウントの同期状態を表す。
type SyncStatus string

const (
	// SyncStatusActive は通常の同期対象状態。
	SyncStatusActive SyncStatus = "active"
	// SyncStatusError は直近の同期が失敗しリトライ待ちの状態。
	SyncStatusError SyncStatus = "error"
	// SyncStatusStopped は連続失敗の上限到達などで同期を停止した状態。
	SyncStatusStopped SyncStatus = "stopped"
)

// CalendarAccount は外部カレンダー（iCalendarフィード）との連携1件を表す。
type CalendarAccount struct {
	ID                  string
	UserID              string
	Name                string
	FeedURL             string
	SiteURL             string
	IconData            []byte // サイトのfavicon。未取得の場合はnil
	IconMime            string
	ETag                string
	LastModified        string
	SyncStatus          SyncStatus
	SyncIntervalMinutes int
	LastSyncAt          *time.Time
	NextSyncAt          time.Time
	LastError           string
	ConsecutiveFailures int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// CalendarEvent はカレンダー上の予定1件を表す。
// AccountIDがnilの場合は手動登録の予定、非nilの場合は外部カレンダーから
// 同期された予定（API経由の編集・削除は不可）。
// EndTimeはStartTimeより厳密に後でなければならない。
type CalendarEvent struct {
	ID          string
	UserID      string
	AccountID   *string
	ProviderUID string // 同期元のiCalendar UID。手動予定では空
	Title       string
	Description string
	Location    string
	StartTime   time.Time
	EndTime     time.Time
	AllDay      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsSynced は外部カレンダー由来の予定かどうかを返す。
func (e *CalendarEvent) IsSynced() bool {
	return e.AccountID != nil
}

// TimeSlot は空き時間計算の結果1件を表す。永続化はされない。
// 常に EndTime - StartTime == DurationMinutes分 が成り立つ。
type TimeSlot struct {
	StartTime       time.Time
	EndTime         time.Time
	DurationMinutes int
}
