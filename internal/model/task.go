package model

import "time"

// ProjectStatus は案件のステータスを表す。
type ProjectStatus string

const (
	// ProjectStatusActive は進行中の案件。
	ProjectStatusActive ProjectStatus = "active"
	// ProjectStatusCompleted は完了した案件。
	ProjectStatusCompleted ProjectStatus = "completed"
	// ProjectStatusArchived はアーカイブ済みの案件。新規タスク追加不可。
	ProjectStatusArchived ProjectStatus = "archived"
)

// Project はタスクをまとめる案件を表す。
type Project struct {
	ID          string
	UserID      string
	Name        string
	Description string
	Status      ProjectStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TaskStatus はタスクのステータスを表す。
type TaskStatus string

const (
	// TaskStatusOpen は未着手のタスク。
	TaskStatusOpen TaskStatus = "open"
	// TaskStatusInProgress は進行中のタスク。
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusDone は完了したタスク。CompletedAtが設定される。
	TaskStatusDone TaskStatus = "done"
)

// IsValidTaskStatus はタスクステータスが定義済みかどうかを判定する。
func IsValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusOpen, TaskStatusInProgress, TaskStatusDone:
		return true
	default:
		return false
	}
}

// Task は実行すべき作業1件を表す。
// 案件・連絡先への紐付けは任意で、親が削除されてもタスク自体は残る
// （参照だけがnilに戻る）。
type Task struct {
	ID          string
	UserID      string
	ProjectID   *string
	ContactID   *string
	Title       string
	Notes       string
	Status      TaskStatus
	DueAt       *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsOverdue は期限切れかどうかを判定する。完了済みタスクは期限切れ扱いしない。
func (t *Task) IsOverdue(now time.Time) bool {
	if t.Status == TaskStatusDone || t.DueAt == nil {
		return false
	}
	return t.DueAt.Before(now)
}

// TaskFilter はタスク一覧取得の絞り込み条件。
type TaskFilter struct {
	Status    TaskStatus // 空 = 全ステータス
	ProjectID string     // 空 = 全案件
	ContactID string     // 空 = 全連絡先
	DueBefore *time.Time // 指定時刻より前に期限が来るタスクのみ
	Overdue   bool       // trueなら期限切れのみ
	Limit     int        // 1〜100にクランプされる
	Cursor    string     // 前ページ最終行のID
}

// ProjectProgress は案件ごとのタスク進捗を表す。
type ProjectProgress struct {
	Project   Project
	OpenCount int
	DoneCount int
}

// MomentumSummary はダッシュボード表示用の活動量サマリー。
type MomentumSummary struct {
	OpenTasks       int
	InProgressTasks int
	DoneLast7Days   int
	OverdueTasks    int
	Projects        []ProjectProgress
}
