// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/renraku/internal/model"
	"github.com/hitoshi/renraku/internal/repository"
)

// DataDeleter はユーザー単位でデータを一括削除するインターフェース。
// 各リポジトリのDeleteByUserIDがそのまま実装になる。
type DataDeleter interface {
	DeleteByUserID(ctx context.Context, userID string) error
}

// WithdrawDeps は退会処理の削除対象コラボレーターをまとめる。
type WithdrawDeps struct {
	Consents         DataDeleter
	Tags             DataDeleter
	Tasks            DataDeleter
	Projects         DataDeleter
	Identities       DataDeleter
	Contacts         DataDeleter
	CalendarEvents   DataDeleter
	CalendarAccounts DataDeleter
}

// Service はユーザー管理のサービス層。
// 退会処理のビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	deps        WithdrawDeps
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	deps WithdrawDeps,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		deps:        deps,
	}
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: sessions → consents → contact_tags/tags → tasks → projects
// → contact_identities → contacts → calendar_events → calendar_accounts
// → user（+ CASCADE: login_identities）
// 参照される側のテーブルを後に消すことでFK違反を避ける。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	// ユーザー存在確認
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	slog.Info("退会処理を開始します",
		slog.String("user_id", userID),
	)

	// 1. セッションを削除
	if s.sessionRepo != nil {
		if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("セッションの削除に失敗しました: %w", err)
		}
	}

	// 2. 連絡先に紐付くデータ → 連絡先 → カレンダーの順で削除
	steps := []struct {
		name    string
		deleter DataDeleter
	}{
		{"同意記録", s.deps.Consents},
		{"タグ", s.deps.Tags},
		{"タスク", s.deps.Tasks},
		{"案件", s.deps.Projects},
		{"識別子", s.deps.Identities},
		{"連絡先", s.deps.Contacts},
		{"予定", s.deps.CalendarEvents},
		{"カレンダーアカウント", s.deps.CalendarAccounts},
	}
	for _, step := range steps {
		if step.deleter == nil {
			continue
		}
		if err := step.deleter.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("%sの削除に失敗しました: %w", step.name, err)
		}
	}

	// 3. ユーザーを削除（login_identitiesはCASCADE削除）
	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("退会処理が完了しました",
		slog.String("user_id", userID),
	)

	return nil
}
