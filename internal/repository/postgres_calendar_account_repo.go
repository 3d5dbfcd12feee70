package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/renraku/internal/model"
)

// PostgresCalendarAccountRepo はPostgreSQLを使用したカレンダーアカウントリポジトリ。
type PostgresCalendarAccountRepo struct {
	db *sql.DB
}

// NewPostgresCalendarAccountRepo はPostgresCalendarAccountRepoを生成する。
func NewPostgresCalendarAccountRepo(db *sql.DB) *PostgresCalendarAccountRepo {
	return &PostgresCalendarAccountRepo{db: db}
}

const calendarAccountColumns = `id, user_id, name, feed_url, site_url, icon_data, icon_mime,
	        etag, last_modified, sync_status, sync_interval_minutes,
	        last_sync_at, next_sync_at, last_error, consecutive_failures,
	        created_at, updated_at`

// scanCalendarAccount は1行分のカレンダーアカウントを読み取る。
func scanCalendarAccount(scan func(dest ...interface{}) error) (*model.CalendarAccount, error) {
	account := &model.CalendarAccount{}
	var iconData []byte
	var iconMime, siteURL, etag, lastModified, lastError sql.NullString
	var lastSyncAt sql.NullTime

	err := scan(
		&account.ID, &account.UserID, &account.Name, &account.FeedURL, &siteURL,
		&iconData, &iconMime,
		&etag, &lastModified, &account.SyncStatus, &account.SyncIntervalMinutes,
		&lastSyncAt, &account.NextSyncAt, &lastError, &account.ConsecutiveFailures,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	account.IconData = iconData
	account.IconMime = nullStringValue(iconMime)
	account.SiteURL = nullStringValue(siteURL)
	account.ETag = nullStringValue(etag)
	account.LastModified = nullStringValue(lastModified)
	account.LastError = nullStringValue(lastError)
	if lastSyncAt.Valid {
		t := lastSyncAt.Time
		account.LastSyncAt = &t
	}

	return account, nil
}

// FindByID はユーザースコープ内で指定IDのアカウントを取得する。
// 見つからない場合はnilを返す。
func (r *PostgresCalendarAccountRepo) FindByID(ctx context.Context, userID, id string) (*model.CalendarAccount, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+calendarAccountColumns+`
		 FROM calendar_accounts WHERE user_id = $1 AND id = $2`,
		userID, id,
	)

	account, err := scanCalendarAccount(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("カレンダーアカウントの取得に失敗しました: %w", err)
	}

	return account, nil
}

// FindByUserAndFeedURL はフィードURLでアカウントを検索する。見つからない場合はnilを返す。
func (r *PostgresCalendarAccountRepo) FindByUserAndFeedURL(ctx context.Context, userID, feedURL string) (*model.CalendarAccount, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+calendarAccountColumns+`
		 FROM calendar_accounts WHERE user_id = $1 AND feed_url = $2`,
		userID, feedURL,
	)

	account, err := scanCalendarAccount(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("フィードURLによるカレンダーアカウントの検索に失敗しました: %w", err)
	}

	return account, nil
}

// CountByUserID はユーザーのアカウント数を返す。
func (r *PostgresCalendarAccountRepo) CountByUserID(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM calendar_accounts WHERE user_id = $1`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("カレンダーアカウント数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// Create はアカウントを作成する。
func (r *PostgresCalendarAccountRepo) Create(ctx context.Context, account *model.CalendarAccount) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO calendar_accounts (id, user_id, name, feed_url, site_url, icon_data, icon_mime,
		                                etag, last_modified, sync_status, sync_interval_minutes,
		                                last_sync_at, next_sync_at, last_error, consecutive_failures,
		                                created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		account.ID, account.UserID, account.Name, account.FeedURL, nullString(account.SiteURL),
		account.IconData, nullString(account.IconMime),
		nullString(account.ETag), nullString(account.LastModified),
		account.SyncStatus, account.SyncIntervalMinutes,
		account.LastSyncAt, account.NextSyncAt,
		nullString(account.LastError), account.ConsecutiveFailures,
		account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("カレンダーアカウントの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はアカウントの設定項目（名前・同期間隔・ステータス等）を更新する。
func (r *PostgresCalendarAccountRepo) Update(ctx context.Context, account *model.CalendarAccount) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE calendar_accounts SET
		    name = $3, sync_status = $4, sync_interval_minutes = $5,
		    next_sync_at = $6, consecutive_failures = $7, last_error = $8,
		    updated_at = $9
		 WHERE user_id = $1 AND id = $2`,
		account.UserID, account.ID, account.Name,
		account.SyncStatus, account.SyncIntervalMinutes,
		account.NextSyncAt, account.ConsecutiveFailures,
		nullString(account.LastError), account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("カレンダーアカウントの更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("カレンダーアカウントが見つかりません: %s", account.ID)
	}
	return nil
}

// UpdateIcon はアカウントのアイコンデータを更新する。
func (r *PostgresCalendarAccountRepo) UpdateIcon(ctx context.Context, accountID string, iconData []byte, iconMime string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE calendar_accounts SET icon_data = $2, icon_mime = $3, updated_at = now() WHERE id = $1`,
		accountID, iconData, nullString(iconMime),
	)
	if err != nil {
		return fmt.Errorf("アイコンの更新に失敗しました: %w", err)
	}
	return nil
}

// ListByUserID はユーザーのアカウント一覧をcreated_at昇順で返す。
func (r *PostgresCalendarAccountRepo) ListByUserID(ctx context.Context, userID string) ([]*model.CalendarAccount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+calendarAccountColumns+`
		 FROM calendar_accounts
		 WHERE user_id = $1
		 ORDER BY created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("カレンダーアカウント一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var accounts []*model.CalendarAccount
	for rows.Next() {
		account, err := scanCalendarAccount(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("カレンダーアカウントの読み取りに失敗しました: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("カレンダーアカウント一覧の走査に失敗しました: %w", err)
	}

	return accounts, nil
}

// ListDueForSync は同期対象のアカウントを取得する。
// next_sync_at <= now() かつ sync_status IN ('active','error') の行を
// FOR UPDATE SKIP LOCKEDで排他的に取得する。
func (r *PostgresCalendarAccountRepo) ListDueForSync(ctx context.Context, limit int) ([]*model.CalendarAccount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+calendarAccountColumns+`
		 FROM calendar_accounts
		 WHERE next_sync_at <= now()
		   AND sync_status IN ('active', 'error')
		 ORDER BY next_sync_at ASC
		 LIMIT $1
		 FOR UPDATE SKIP LOCKED`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("同期対象アカウントの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var accounts []*model.CalendarAccount
	for rows.Next() {
		account, err := scanCalendarAccount(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("同期対象アカウントの読み取りに失敗しました: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("同期対象アカウントの走査に失敗しました: %w", err)
	}

	return accounts, nil
}

// UpdateSyncState はアカウントの同期状態を更新する。
func (r *PostgresCalendarAccountRepo) UpdateSyncState(ctx context.Context, account *model.CalendarAccount) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE calendar_accounts SET
		    sync_status = $2,
		    consecutive_failures = $3,
		    last_error = $4,
		    last_sync_at = $5,
		    next_sync_at = $6,
		    etag = $7,
		    last_modified = $8,
		    updated_at = now()
		 WHERE id = $1`,
		account.ID,
		account.SyncStatus,
		account.ConsecutiveFailures,
		nullString(account.LastError),
		account.LastSyncAt,
		account.NextSyncAt,
		nullString(account.ETag),
		nullString(account.LastModified),
	)
	if err != nil {
		return fmt.Errorf("同期状態の更新に失敗しました: %w", err)
	}
	return nil
}

// Delete はユーザースコープ内でアカウントを削除する。削除件数を返す。
func (r *PostgresCalendarAccountRepo) Delete(ctx context.Context, userID, id string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM calendar_accounts WHERE user_id = $1 AND id = $2`,
		userID, id,
	)
	if err != nil {
		return 0, fmt.Errorf("カレンダーアカウントの削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	return rowsAffected, nil
}

// DeleteByUserID はユーザーの全アカウントを削除する。
func (r *PostgresCalendarAccountRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM calendar_accounts WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("ユーザーの全カレンダーアカウントの削除に失敗しました: %w", err)
	}
	return nil
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// compile-time interface check
var _ CalendarAccountRepository = (*PostgresCalendarAccountRepo)(nil)
