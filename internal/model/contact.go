package model

import (
	"strings"
	"time"
)

// Contact は顧客・取引先などの連絡先を表す。
// NotesはHTMLサニタイズ済みの状態で保持する。
type Contact struct {
	ID        string
	UserID    string
	FirstName string
	LastName  string
	Company   string
	Notes     string
	Archived  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DisplayName は一覧表示用の名前を返す。
// 氏名が空の場合は会社名にフォールバックする。
func (c *Contact) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
	if name != "" {
		return name
	}
	return strings.TrimSpace(c.Company)
}

// HasName は氏名または会社名のいずれかが入力されているかを返す。
func (c *Contact) HasName() bool {
	return c.DisplayName() != ""
}

// ContactFilter は連絡先一覧取得の絞り込み条件。
type ContactFilter struct {
	Archived *bool  // nil = 全件
	Search   string // 姓・名・会社名の部分一致
	Limit    int    // 1〜100にクランプされる
	Cursor   string // 前ページ最終行のID（キーセットページング）
}
