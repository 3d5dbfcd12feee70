package calsync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/renraku/internal/model"
	"github.com/hitoshi/renraku/internal/repository"
)

// Sanitizer はリモート由来テキストの無害化インターフェース。
type Sanitizer interface {
	SanitizePlain(text string) string
}

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// MetricsRecorder は同期処理のメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordSyncSuccess(accountID string)
	RecordSyncFailure(accountID string, reason string)
	RecordParseFailure(accountID string)
	RecordHTTPStatus(statusCode int)
	RecordSyncLatency(duration time.Duration)
	RecordEventsUpserted(count int)
}

// Syncer は個別カレンダーアカウントのHTTPフェッチとICSパース、予定の保存を行う。
// ETag/Last-Modifiedを使用した条件付きGET、SSRF検証、
// golang-icalによるパース、(account_id, provider_uid)単位のUPSERTを実行する。
type Syncer struct {
	accountRepo repository.CalendarAccountRepository
	eventRepo   repository.EventRepository
	sanitizer   Sanitizer
	ssrfGuard   SSRFValidator
	metrics     MetricsRecorder
	logger      *slog.Logger
	timeout     time.Duration
	maxBodySize int64
}

// NewSyncer はSyncerの新しいインスタンスを生成する。
func NewSyncer(
	accountRepo repository.CalendarAccountRepository,
	eventRepo repository.EventRepository,
	sanitizer Sanitizer,
	ssrfGuard SSRFValidator,
	metrics MetricsRecorder,
	logger *slog.Logger,
	timeout time.Duration,
	maxBodySize int64,
) *Syncer {
	return &Syncer{
		accountRepo: accountRepo,
		eventRepo:   eventRepo,
		sanitizer:   sanitizer,
		ssrfGuard:   ssrfGuard,
		metrics:     metrics,
		logger:      logger,
		timeout:     timeout,
		maxBodySize: maxBodySize,
	}
}

// SyncAccount はアカウントのICSフィードをフェッチし、結果に応じて同期状態を更新する。
// AccountSyncerServiceインターフェースを実装する。
func (s *Syncer) SyncAccount(ctx context.Context, account *model.CalendarAccount) error {
	start := time.Now()

	// SSRF検証
	if err := s.ssrfGuard.ValidateURL(account.FeedURL); err != nil {
		s.logger.Error("SSRF検証に失敗しました",
			slog.String("account_id", account.ID),
			slog.String("feed_url", account.FeedURL),
			slog.String("error", err.Error()),
		)
		ApplySyncStop(account, fmt.Sprintf("SSRF検証失敗: %s", err.Error()))
		s.updateSyncState(ctx, account)
		s.metrics.RecordSyncFailure(account.ID, "ssrf")
		return fmt.Errorf("SSRF検証に失敗: %w", err)
	}

	// HTTPリクエスト構築
	client := s.ssrfGuard.NewSafeClient(s.timeout, s.maxBodySize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, account.FeedURL, nil)
	if err != nil {
		return fmt.Errorf("リクエスト作成に失敗: %w", err)
	}

	req.Header.Set("User-Agent", "Renraku/1.0 Calendar Sync")
	req.Header.Set("Accept", "text/calendar, text/plain, */*")

	// 条件付きGET: ETag
	if account.ETag != "" {
		req.Header.Set("If-None-Match", account.ETag)
	}
	// 条件付きGET: Last-Modified（無ければ前回同期時刻で代用）
	if account.LastModified != "" {
		req.Header.Set("If-Modified-Since", account.LastModified)
	} else if account.LastSyncAt != nil {
		req.Header.Set("If-Modified-Since", account.LastSyncAt.UTC().Format(http.TimeFormat))
	}

	// HTTPリクエスト実行
	resp, err := client.Do(req)
	if err != nil {
		s.logger.Error("HTTPリクエストに失敗しました",
			slog.String("account_id", account.ID),
			slog.String("feed_url", account.FeedURL),
			slog.String("error", err.Error()),
		)
		ApplySyncFailure(account, fmt.Sprintf("HTTPリクエスト失敗: %s", err.Error()))
		s.updateSyncState(ctx, account)
		s.metrics.RecordSyncFailure(account.ID, "http_request")
		return fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(start)
	s.metrics.RecordHTTPStatus(resp.StatusCode)

	// HTTPステータスに基づく処理分岐
	result := ClassifyHTTPStatus(resp.StatusCode)

	switch result {
	case SyncResultNotModified:
		// 304: コンテンツ未変更 - next_sync_atのみ更新
		s.logger.Info("カレンダーフィードは未変更です（304）",
			slog.String("account_id", account.ID),
			slog.String("feed_url", account.FeedURL),
			slog.Int("http_status", resp.StatusCode),
			slog.Float64("duration_ms", float64(duration.Milliseconds())),
		)
		ApplySyncSuccess(account)
		s.metrics.RecordSyncSuccess(account.ID)
		s.metrics.RecordSyncLatency(duration)
		return s.accountRepo.UpdateSyncState(ctx, account)

	case SyncResultStop:
		// 404/410: 同期停止
		reason := fmt.Sprintf("HTTPステータス %d により同期を停止しました", resp.StatusCode)
		s.logger.Warn("カレンダー同期を停止します",
			slog.String("account_id", account.ID),
			slog.String("feed_url", account.FeedURL),
			slog.Int("http_status", resp.StatusCode),
			slog.String("reason", reason),
		)
		ApplySyncStop(account, reason)
		s.metrics.RecordSyncFailure(account.ID, "http_status")
		return s.accountRepo.UpdateSyncState(ctx, account)

	case SyncResultBackoff:
		// 429/5xx: バックオフ
		reason := fmt.Sprintf("HTTPステータス %d によりバックオフを適用しました", resp.StatusCode)
		s.logger.Warn("カレンダー同期にバックオフを適用します",
			slog.String("account_id", account.ID),
			slog.String("feed_url", account.FeedURL),
			slog.Int("http_status", resp.StatusCode),
			slog.Int("consecutive_failures", account.ConsecutiveFailures+1),
		)
		ApplySyncFailure(account, reason)
		s.metrics.RecordSyncFailure(account.ID, "http_status")
		return s.accountRepo.UpdateSyncState(ctx, account)

	case SyncResultOK:
		// 2xx: 正常フェッチ - 以下で処理を続行
	default:
		// その他のステータスコード（401/403等）はリトライ対象
		s.logger.Warn("予期しないHTTPステータスコード",
			slog.String("account_id", account.ID),
			slog.Int("http_status", resp.StatusCode),
		)
		ApplySyncFailure(account, fmt.Sprintf("予期しないHTTPステータス: %d", resp.StatusCode))
		s.metrics.RecordSyncFailure(account.ID, "http_status")
		return s.accountRepo.UpdateSyncState(ctx, account)
	}

	// レスポンスボディを読み込み（最大サイズ制限付き）
	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBodySize))
	if err != nil {
		s.logger.Error("レスポンスボディの読み取りに失敗しました",
			slog.String("account_id", account.ID),
			slog.String("error", err.Error()),
		)
		ApplySyncFailure(account, fmt.Sprintf("レスポンス読み取り失敗: %s", err.Error()))
		s.metrics.RecordSyncFailure(account.ID, "read_body")
		return s.accountRepo.UpdateSyncState(ctx, account)
	}

	// ETag/Last-Modifiedを保存
	if etag := resp.Header.Get("ETag"); etag != "" {
		account.ETag = etag
	}
	if lastMod := resp.Header.Get("Last-Modified"); lastMod != "" {
		account.LastModified = lastMod
	}

	// golang-icalでフィードをパース
	parsed, skipped, err := ParseICS(body)
	if err != nil {
		s.logger.Error("ICSのパースに失敗しました",
			slog.String("account_id", account.ID),
			slog.String("feed_url", account.FeedURL),
			slog.String("error", err.Error()),
		)
		ApplySyncFailure(account, fmt.Sprintf("パース失敗: %s", err.Error()))
		s.metrics.RecordParseFailure(account.ID)
		s.updateSyncState(ctx, account)
		return nil // パース失敗は同期エラーとしない（カウントして継続）
	}

	// (account_id, provider_uid)単位で予定をUPSERT
	inserted, updated, keepUIDs, err := s.upsertEvents(ctx, account, parsed)
	if err != nil {
		s.logger.Error("予定のUPSERTに失敗しました",
			slog.String("account_id", account.ID),
			slog.String("error", err.Error()),
		)
		ApplySyncFailure(account, fmt.Sprintf("予定UPSERT失敗: %s", err.Error()))
		s.metrics.RecordSyncFailure(account.ID, "db")
		s.updateSyncState(ctx, account)
		return nil
	}

	// 同期元から消えたUIDの予定を削除
	removed, err := s.eventRepo.DeleteVanished(ctx, account.ID, keepUIDs)
	if err != nil {
		s.logger.Error("同期元から消えた予定の削除に失敗しました",
			slog.String("account_id", account.ID),
			slog.String("error", err.Error()),
		)
		ApplySyncFailure(account, fmt.Sprintf("予定削除失敗: %s", err.Error()))
		s.metrics.RecordSyncFailure(account.ID, "db")
		s.updateSyncState(ctx, account)
		return nil
	}

	ApplySyncSuccess(account)

	// アカウント状態を更新
	if updateErr := s.accountRepo.UpdateSyncState(ctx, account); updateErr != nil {
		s.logger.Error("アカウント状態の更新に失敗しました",
			slog.String("account_id", account.ID),
			slog.String("error", updateErr.Error()),
		)
		return updateErr
	}

	s.metrics.RecordSyncSuccess(account.ID)
	s.metrics.RecordEventsUpserted(inserted + updated)
	s.metrics.RecordSyncLatency(duration)

	s.logger.Info("カレンダー同期が完了しました",
		slog.String("account_id", account.ID),
		slog.String("feed_url", account.FeedURL),
		slog.Int("http_status", resp.StatusCode),
		slog.Int("events_inserted", inserted),
		slog.Int("events_updated", updated),
		slog.Int("events_removed", int(removed)),
		slog.Int("events_skipped", skipped),
		slog.Int("events_count", len(parsed)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// upsertEvents はパース済み予定を保存し、挿入数・更新数・残存UID一覧を返す。
// リモート由来のテキスト項目は保存前に全てプレーンテキスト化する。
func (s *Syncer) upsertEvents(ctx context.Context, account *model.CalendarAccount, parsed []ParsedEvent) (int, int, []string, error) {
	inserted := 0
	updated := 0
	keepUIDs := make([]string, 0, len(parsed))

	for _, ev := range parsed {
		title := s.sanitizer.SanitizePlain(ev.Title)
		description := s.sanitizer.SanitizePlain(ev.Description)
		location := s.sanitizer.SanitizePlain(ev.Location)

		keepUIDs = append(keepUIDs, ev.UID)

		existing, err := s.eventRepo.FindByAccountAndUID(ctx, account.ID, ev.UID)
		if err != nil {
			return inserted, updated, keepUIDs, err
		}

		now := time.Now()

		if existing == nil {
			accountID := account.ID
			event := &model.CalendarEvent{
				ID:          uuid.NewString(),
				UserID:      account.UserID,
				AccountID:   &accountID,
				ProviderUID: ev.UID,
				Title:       title,
				Description: description,
				Location:    location,
				StartTime:   ev.StartTime,
				EndTime:     ev.EndTime,
				AllDay:      ev.AllDay,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := s.eventRepo.Create(ctx, event); err != nil {
				return inserted, updated, keepUIDs, err
			}
			inserted++
			continue
		}

		// 変更が無ければ書き込みを省略する
		if !eventChanged(existing, title, description, location, ev) {
			continue
		}

		existing.Title = title
		existing.Description = description
		existing.Location = location
		existing.StartTime = ev.StartTime
		existing.EndTime = ev.EndTime
		existing.AllDay = ev.AllDay
		existing.UpdatedAt = now

		if err := s.eventRepo.Update(ctx, existing); err != nil {
			return inserted, updated, keepUIDs, err
		}
		updated++
	}

	return inserted, updated, keepUIDs, nil
}

// eventChanged は既存の予定とパース結果に差分があるかを判定する。
func eventChanged(existing *model.CalendarEvent, title, description, location string, ev ParsedEvent) bool {
	return existing.Title != title ||
		existing.Description != description ||
		existing.Location != location ||
		!existing.StartTime.Equal(ev.StartTime) ||
		!existing.EndTime.Equal(ev.EndTime) ||
		existing.AllDay != ev.AllDay
}

// updateSyncState はアカウント状態を更新し、失敗した場合はログに記録する。
func (s *Syncer) updateSyncState(ctx context.Context, account *model.CalendarAccount) {
	if err := s.accountRepo.UpdateSyncState(ctx, account); err != nil {
		s.logger.Error("アカウント状態の更新に失敗しました",
			slog.String("account_id", account.ID),
			slog.String("error", err.Error()),
		)
	}
}
