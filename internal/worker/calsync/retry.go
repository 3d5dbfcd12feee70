package calsync

import (
	"fmt"
	"time"

	"github.com/hitoshi/renraku/internal/model"
)

// SyncResult はHTTPステータスコードに基づく同期結果の分類。
type SyncResult int

const (
	// SyncResultOK は同期成功（2xx）。
	SyncResultOK SyncResult = iota
	// SyncResultNotModified はコンテンツ未変更（304）。
	SyncResultNotModified
	// SyncResultStop は同期停止が必要なステータス（404/410）。
	SyncResultStop
	// SyncResultBackoff はバックオフが必要なステータス（429/5xx）。
	SyncResultBackoff
	// SyncResultUnknown は上記以外のステータスコード。バックオフとして扱う。
	// 401/403は共有リンクの一時的な失効で発生しうるため停止対象には含めない。
	SyncResultUnknown
)

const (
	// initialBackoff は指数バックオフの初回遅延（30分）。
	initialBackoff = 30 * time.Minute
	// maxBackoff は指数バックオフの最大遅延（12時間）。
	maxBackoff = 12 * time.Hour
	// maxConsecutiveFailures は同期停止に至る連続失敗回数の閾値。
	maxConsecutiveFailures = 10
	// defaultSyncIntervalMinutes は同期間隔が未設定の場合のフォールバック。
	defaultSyncIntervalMinutes = 60
)

// ClassifyHTTPStatus はHTTPステータスコードを同期結果に分類する。
func ClassifyHTTPStatus(statusCode int) SyncResult {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return SyncResultOK
	case statusCode == 304:
		return SyncResultNotModified
	case statusCode == 404 || statusCode == 410:
		return SyncResultStop
	case statusCode == 429:
		return SyncResultBackoff
	case statusCode >= 500:
		return SyncResultBackoff
	default:
		return SyncResultUnknown
	}
}

// CalculateBackoff は連続失敗回数に基づいて指数バックオフ遅延を計算する。
// 初回30分、2倍ずつ増加、最大12時間。
func CalculateBackoff(consecutiveFailures int) time.Duration {
	delay := initialBackoff
	for i := 0; i < consecutiveFailures; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// ApplySyncSuccess は同期成功時にアカウントの状態をリセットする。
// 連続失敗回数を0にし、同期間隔に基づいてnext_sync_atを設定する。
func ApplySyncSuccess(account *model.CalendarAccount) {
	now := time.Now()
	interval := account.SyncIntervalMinutes
	if interval <= 0 {
		interval = defaultSyncIntervalMinutes
	}
	account.SyncStatus = model.SyncStatusActive
	account.ConsecutiveFailures = 0
	account.LastError = ""
	account.LastSyncAt = &now
	account.NextSyncAt = now.Add(time.Duration(interval) * time.Minute)
	account.UpdatedAt = now
}

// ApplySyncFailure は同期失敗時にアカウントへバックオフ戦略を適用する。
// 連続失敗回数をインクリメントし、指数バックオフでnext_sync_atを設定する。
// 連続失敗回数が閾値に達した場合は同期を停止する。
func ApplySyncFailure(account *model.CalendarAccount, reason string) {
	now := time.Now()
	account.ConsecutiveFailures++
	account.UpdatedAt = now

	if account.ConsecutiveFailures >= maxConsecutiveFailures {
		account.SyncStatus = model.SyncStatusStopped
		account.LastError = fmt.Sprintf("連続%d回の同期失敗により同期を停止しました: %s", account.ConsecutiveFailures, reason)
		return
	}

	account.SyncStatus = model.SyncStatusError
	account.LastError = reason
	account.NextSyncAt = now.Add(CalculateBackoff(account.ConsecutiveFailures - 1))
}

// ApplySyncStop はアカウントの同期を停止する。
// sync_statusをstoppedに設定し、エラーメッセージを記録する。
func ApplySyncStop(account *model.CalendarAccount, reason string) {
	account.SyncStatus = model.SyncStatusStopped
	account.LastError = reason
	account.UpdatedAt = time.Now()
}
