package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/renraku/internal/model"
	"github.com/hitoshi/renraku/internal/repository"
)

// maxAccountsPerUser はユーザーあたりのカレンダーアカウント上限。
const maxAccountsPerUser = 10

// defaultSyncIntervalMinutes は新規アカウントのデフォルト同期間隔（分）。
const defaultSyncIntervalMinutes = 60

// 同期間隔の設定可能範囲。30分刻みで30分〜12時間。
const (
	minSyncIntervalMinutes  = 30
	maxSyncIntervalMinutes  = 720
	syncIntervalStepMinutes = 30
)

// Detector はiCalendarフィード検出のインターフェース。
// テスタビリティのためCalendarDetectorを抽象化する。
type Detector interface {
	DetectCalendarURL(ctx context.Context, inputURL string) (string, error)
}

// AccountService はカレンダーアカウント登録・管理のサービス層。
// 検出 → アカウント保存 → アイコン取得のフローを統括する。
type AccountService struct {
	accountRepo repository.CalendarAccountRepository
	eventRepo   repository.EventRepository
	detector    Detector
	iconFetcher IconFetcherService
}

// NewAccountService はAccountServiceの新しいインスタンスを生成する。
func NewAccountService(
	accountRepo repository.CalendarAccountRepository,
	eventRepo repository.EventRepository,
	detector Detector,
	iconFetcher IconFetcherService,
) *AccountService {
	return &AccountService{
		accountRepo: accountRepo,
		eventRepo:   eventRepo,
		detector:    detector,
		iconFetcher: iconFetcher,
	}
}

// RegisterAccount はURLからiCalendarフィードを検出しアカウントを登録する。
// フロー: アカウント上限チェック → フィード検出 → 重複チェック → アカウント作成 → アイコン取得
// nameが空白の場合はフィードURLを表示名として使う。
func (s *AccountService) RegisterAccount(ctx context.Context, userID, inputURL, name string) (*model.CalendarAccount, error) {
	// 1. アカウント上限チェック
	count, err := s.accountRepo.CountByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("アカウント数の確認に失敗しました: %w", err)
	}
	if count >= maxAccountsPerUser {
		return nil, model.NewAccountLimitReachedError()
	}

	// 2. カレンダーURL検出
	feedURL, err := s.detector.DetectCalendarURL(ctx, inputURL)
	if err != nil {
		return nil, err
	}

	// 3. 同一ユーザー・同一フィードの重複チェック
	existing, err := s.accountRepo.FindByUserAndFeedURL(ctx, userID, feedURL)
	if err != nil {
		return nil, fmt.Errorf("アカウントの検索に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateAccountError()
	}

	// 4. アカウント作成
	name = strings.TrimSpace(name)
	if name == "" {
		name = feedURL
	}

	now := time.Now()
	account := &model.CalendarAccount{
		ID:                  uuid.New().String(),
		UserID:              userID,
		Name:                name,
		FeedURL:             feedURL,
		SiteURL:             extractSiteURL(inputURL),
		SyncStatus:          model.SyncStatusActive,
		SyncIntervalMinutes: defaultSyncIntervalMinutes,
		NextSyncAt:          now, // 登録直後に初回同期を走らせる
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("アカウントの保存に失敗しました: %w", err)
	}

	// 5. アイコン取得（同期で実行。取得失敗時はアイコンなしのまま登録を完了する）
	s.fetchAndSaveIcon(ctx, account)

	return account, nil
}

// ListAccounts はユーザーのカレンダーアカウント一覧を返す。
func (s *AccountService) ListAccounts(ctx context.Context, userID string) ([]*model.CalendarAccount, error) {
	accounts, err := s.accountRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("アカウント一覧の取得に失敗しました: %w", err)
	}
	return accounts, nil
}

// GetAccount はカレンダーアカウントを取得する。見つからない場合はnilを返す。
func (s *AccountService) GetAccount(ctx context.Context, userID, accountID string) (*model.CalendarAccount, error) {
	account, err := s.accountRepo.FindByID(ctx, userID, accountID)
	if err != nil {
		return nil, fmt.Errorf("アカウントの取得に失敗しました: %w", err)
	}
	return account, nil
}

// GetAccountIcon はアカウントのアイコン画像を返す。
// アイコン未取得の場合はnilデータと空MIMEを返す。
func (s *AccountService) GetAccountIcon(ctx context.Context, userID, accountID string) ([]byte, string, error) {
	account, err := s.accountRepo.FindByID(ctx, userID, accountID)
	if err != nil {
		return nil, "", fmt.Errorf("アカウントの取得に失敗しました: %w", err)
	}
	if account == nil {
		return nil, "", model.NewAccountNotFoundError(accountID)
	}
	return account.IconData, account.IconMime, nil
}

// UpdateAccountSettingsInput はアカウント設定更新の入力。nilのフィールドは変更しない。
type UpdateAccountSettingsInput struct {
	Name                *string
	SyncIntervalMinutes *int
}

// UpdateAccountSettings はアカウントの表示名・同期間隔を更新する。
// 同期間隔は30分〜720分かつ30分刻みのみ許可される。
// 空白のみの名前は無視され、既存の表示名が維持される。
func (s *AccountService) UpdateAccountSettings(ctx context.Context, userID, accountID string, input UpdateAccountSettingsInput) (*model.CalendarAccount, error) {
	account, err := s.accountRepo.FindByID(ctx, userID, accountID)
	if err != nil {
		return nil, fmt.Errorf("アカウントの取得に失敗しました: %w", err)
	}
	if account == nil {
		return nil, model.NewAccountNotFoundError(accountID)
	}

	if input.SyncIntervalMinutes != nil {
		minutes := *input.SyncIntervalMinutes
		if minutes < minSyncIntervalMinutes || minutes > maxSyncIntervalMinutes || minutes%syncIntervalStepMinutes != 0 {
			return nil, model.NewInvalidSyncIntervalError(minutes)
		}
		account.SyncIntervalMinutes = minutes
	}

	if input.Name != nil {
		if name := strings.TrimSpace(*input.Name); name != "" {
			account.Name = name
		}
	}

	account.UpdatedAt = time.Now()

	if err := s.accountRepo.Update(ctx, account); err != nil {
		return nil, fmt.Errorf("アカウント設定の更新に失敗しました: %w", err)
	}

	return account, nil
}

// ResumeSync は停止状態のアカウントの同期を再開する。
// stopped以外の状態からの再開はエラーになる。
// 失敗カウンタとエラー内容をリセットし、即座に次回同期を予約する。
func (s *AccountService) ResumeSync(ctx context.Context, userID, accountID string) (*model.CalendarAccount, error) {
	account, err := s.accountRepo.FindByID(ctx, userID, accountID)
	if err != nil {
		return nil, fmt.Errorf("アカウントの取得に失敗しました: %w", err)
	}
	if account == nil {
		return nil, model.NewAccountNotFoundError(accountID)
	}
	if account.SyncStatus != model.SyncStatusStopped {
		return nil, model.NewAccountNotStoppedError()
	}

	account.SyncStatus = model.SyncStatusActive
	account.ConsecutiveFailures = 0
	account.LastError = ""
	account.NextSyncAt = time.Now()

	if err := s.accountRepo.UpdateSyncState(ctx, account); err != nil {
		return nil, fmt.Errorf("同期状態の更新に失敗しました: %w", err)
	}

	return account, nil
}

// DeleteAccount はアカウントと配下の同期予定を削除する。
// 手動登録の予定は影響を受けない。
func (s *AccountService) DeleteAccount(ctx context.Context, userID, accountID string) error {
	account, err := s.accountRepo.FindByID(ctx, userID, accountID)
	if err != nil {
		return fmt.Errorf("アカウントの取得に失敗しました: %w", err)
	}
	if account == nil {
		return model.NewAccountNotFoundError(accountID)
	}

	// 1. 配下の同期予定を削除
	if err := s.eventRepo.DeleteByAccount(ctx, account.ID); err != nil {
		return fmt.Errorf("同期予定の削除に失敗しました: %w", err)
	}

	// 2. アカウント本体を削除
	if _, err := s.accountRepo.Delete(ctx, userID, account.ID); err != nil {
		return fmt.Errorf("アカウントの削除に失敗しました: %w", err)
	}

	return nil
}

// fetchAndSaveIcon はカレンダー提供元サイトのアイコンを取得して保存する。
// 取得失敗時はログ出力のみで、エラーを返さない。
func (s *AccountService) fetchAndSaveIcon(ctx context.Context, account *model.CalendarAccount) {
	if s.iconFetcher == nil {
		return
	}

	// サイトURLからアイコンを取得
	siteURL := account.SiteURL
	if siteURL == "" {
		siteURL = account.FeedURL
	}

	data, mimeType, err := s.iconFetcher.FetchIconForSite(ctx, siteURL)
	if err != nil {
		slog.Warn("アイコン取得エラー", "accountID", account.ID, "siteURL", siteURL, "error", err)
		return
	}

	if data == nil {
		slog.Info("アイコン未検出（なしとして保存）", "accountID", account.ID, "siteURL", siteURL)
		return
	}

	if err := s.accountRepo.UpdateIcon(ctx, account.ID, data, mimeType); err != nil {
		slog.Warn("アイコン保存エラー", "accountID", account.ID, "error", err)
		return
	}

	account.IconData = data
	account.IconMime = mimeType
	slog.Info("アイコン保存完了", "accountID", account.ID, "mimeType", mimeType, "size", len(data))
}

// extractSiteURL は入力URLからサイトURLを抽出する。
func extractSiteURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return FoldWebcalScheme(u.String())
}
