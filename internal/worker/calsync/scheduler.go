// Package calsync はカレンダーフィードのバックグラウンド同期処理を提供する。
// スケジューラ、シンカー、リトライ/バックオフ戦略、ICSパーサを含む。
package calsync

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/renraku/internal/model"
	"github.com/hitoshi/renraku/internal/repository"
)

// AccountSyncerService はカレンダー同期の実行インターフェース。
type AccountSyncerService interface {
	// SyncAccount は指定アカウントを同期し、結果に応じてアカウント状態を更新する。
	SyncAccount(ctx context.Context, account *model.CalendarAccount) error
}

// syncBatchSize は1サイクルで取得する同期対象アカウントの上限。
const syncBatchSize = 20

// Scheduler はカレンダー同期のスケジューリングと並列制御を行う。
// ティッカーで同期対象アカウントを取得し、semaphoreパターンで
// 最大並列数を制御しながら同期を実行する。
type Scheduler struct {
	accountRepo    repository.CalendarAccountRepository
	syncer         AccountSyncerService
	logger         *slog.Logger
	maxConcurrency int
	syncTimeout    time.Duration
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値5、
// syncTimeoutが0以下の場合はデフォルト値30秒を使用する。
func NewScheduler(
	accountRepo repository.CalendarAccountRepository,
	syncer AccountSyncerService,
	logger *slog.Logger,
	maxConcurrency int,
	syncTimeout time.Duration,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 5
	}
	if syncTimeout <= 0 {
		syncTimeout = 30 * time.Second
	}
	return &Scheduler{
		accountRepo:    accountRepo,
		syncer:         syncer,
		logger:         logger,
		maxConcurrency: maxConcurrency,
		syncTimeout:    syncTimeout,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("同期スケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("同期サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("同期スケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("同期サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は同期対象アカウントを1回取得し、並列で同期を実行する。
// semaphoreパターンで最大並列数を制御し、アカウントごとにタイムアウトを設定する。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()

	// 同期対象アカウントを取得（FOR UPDATE SKIP LOCKED）
	accounts, err := s.accountRepo.ListDueForSync(ctx, syncBatchSize)
	if err != nil {
		return err
	}

	if len(accounts) == 0 {
		s.logger.Info("同期対象のアカウントはありません")
		return nil
	}

	s.logger.Info("同期サイクルを開始します",
		slog.Int("account_count", len(accounts)),
	)

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for _, account := range accounts {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(a *model.CalendarAccount) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			syncCtx, cancel := context.WithTimeout(ctx, s.syncTimeout)
			defer cancel()

			if err := s.syncer.SyncAccount(syncCtx, a); err != nil {
				s.logger.Error("カレンダー同期に失敗しました",
					slog.String("account_id", a.ID),
					slog.String("feed_url", a.FeedURL),
					slog.String("error", err.Error()),
				)
			}
		}(account)
	}

	wg.Wait()

	duration := time.Since(start)
	s.logger.Info("同期サイクルが完了しました",
		slog.Int("account_count", len(accounts)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
