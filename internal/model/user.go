// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザー（テナント）を表す。
// CRM内の全データはUserのIDでスコープされる。
type User struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LoginIdentity は外部IdPとの紐付け情報を表す。
// 将来的に複数のIdP（Google, GitHub等）に対応可能な構造。
// 連絡先の識別子（Identity）とは別物で、認証専用。
type LoginIdentity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
