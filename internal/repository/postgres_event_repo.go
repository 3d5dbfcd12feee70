package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/renraku/internal/model"
	"github.com/lib/pq"
)

// PostgresEventRepo はPostgreSQLを使用したカレンダー予定リポジトリ。
type PostgresEventRepo struct {
	db *sql.DB
}

// NewPostgresEventRepo はPostgresEventRepoを生成する。
func NewPostgresEventRepo(db *sql.DB) *PostgresEventRepo {
	return &PostgresEventRepo{db: db}
}

const eventColumns = `id, user_id, account_id, provider_uid, title, description, location,
	        start_time, end_time, all_day, created_at, updated_at`

// scanEvent は1行分の予定を読み取る。
func scanEvent(scan func(dest ...interface{}) error) (*model.CalendarEvent, error) {
	event := &model.CalendarEvent{}
	var accountID, providerUID, description, location sql.NullString

	err := scan(
		&event.ID, &event.UserID, &accountID, &providerUID,
		&event.Title, &description, &location,
		&event.StartTime, &event.EndTime, &event.AllDay,
		&event.CreatedAt, &event.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if accountID.Valid {
		id := accountID.String
		event.AccountID = &id
	}
	event.ProviderUID = nullStringValue(providerUID)
	event.Description = nullStringValue(description)
	event.Location = nullStringValue(location)

	return event, nil
}

// FindByID はユーザースコープ内で指定IDの予定を取得する。
// 見つからない場合はnilを返す。
func (r *PostgresEventRepo) FindByID(ctx context.Context, userID, id string) (*model.CalendarEvent, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+`
		 FROM calendar_events WHERE user_id = $1 AND id = $2`,
		userID, id,
	)

	event, err := scanEvent(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("予定の取得に失敗しました: %w", err)
	}

	return event, nil
}

// FindByAccountAndUID は同期元UIDで予定を検索する。見つからない場合はnilを返す。
func (r *PostgresEventRepo) FindByAccountAndUID(ctx context.Context, accountID, providerUID string) (*model.CalendarEvent, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+`
		 FROM calendar_events WHERE account_id = $1 AND provider_uid = $2`,
		accountID, providerUID,
	)

	event, err := scanEvent(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("UIDによる予定の検索に失敗しました: %w", err)
	}

	return event, nil
}

// Create は予定を作成する。
func (r *PostgresEventRepo) Create(ctx context.Context, event *model.CalendarEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO calendar_events (id, user_id, account_id, provider_uid, title, description,
		                              location, start_time, end_time, all_day, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		event.ID, event.UserID, event.AccountID, nullString(event.ProviderUID),
		event.Title, nullString(event.Description), nullString(event.Location),
		event.StartTime, event.EndTime, event.AllDay,
		event.CreatedAt, event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("予定の作成に失敗しました: %w", err)
	}
	return nil
}

// Update は予定を上書き更新する。対象が存在しない場合はエラーを返す。
func (r *PostgresEventRepo) Update(ctx context.Context, event *model.CalendarEvent) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE calendar_events SET
		    title = $3, description = $4, location = $5,
		    start_time = $6, end_time = $7, all_day = $8, updated_at = $9
		 WHERE user_id = $1 AND id = $2`,
		event.UserID, event.ID, event.Title,
		nullString(event.Description), nullString(event.Location),
		event.StartTime, event.EndTime, event.AllDay, event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("予定の更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("予定が見つかりません: %s", event.ID)
	}
	return nil
}

// ListOverlapping は [from, to) と重なる予定をstart_time昇順で返す。
// 重なり判定は半開区間同士の start_time < to AND end_time > from で行う。
func (r *PostgresEventRepo) ListOverlapping(ctx context.Context, userID string, from, to time.Time) ([]*model.CalendarEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventColumns+`
		 FROM calendar_events
		 WHERE user_id = $1
		   AND start_time < $3
		   AND end_time > $2
		 ORDER BY start_time ASC, id ASC`,
		userID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("期間内の予定の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var events []*model.CalendarEvent
	for rows.Next() {
		event, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("予定の読み取りに失敗しました: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("予定一覧の走査に失敗しました: %w", err)
	}

	return events, nil
}

// Delete はユーザースコープ内で予定を削除する。削除件数を返す。
func (r *PostgresEventRepo) Delete(ctx context.Context, userID, id string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM calendar_events WHERE user_id = $1 AND id = $2`,
		userID, id,
	)
	if err != nil {
		return 0, fmt.Errorf("予定の削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	return rowsAffected, nil
}

// DeleteVanished は同期元から消えたUIDの予定を削除する。
// keepUIDsが空の場合はアカウント配下の同期予定を全て削除する。
func (r *PostgresEventRepo) DeleteVanished(ctx context.Context, accountID string, keepUIDs []string) (int64, error) {
	var result sql.Result
	var err error

	if len(keepUIDs) == 0 {
		result, err = r.db.ExecContext(ctx,
			`DELETE FROM calendar_events WHERE account_id = $1`,
			accountID,
		)
	} else {
		result, err = r.db.ExecContext(ctx,
			`DELETE FROM calendar_events
			 WHERE account_id = $1 AND provider_uid <> ALL($2)`,
			accountID, pq.Array(keepUIDs),
		)
	}
	if err != nil {
		return 0, fmt.Errorf("同期元から消えた予定の削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	return rowsAffected, nil
}

// DeleteByAccount はアカウント配下の同期予定を全て削除する。
func (r *PostgresEventRepo) DeleteByAccount(ctx context.Context, accountID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM calendar_events WHERE account_id = $1`,
		accountID,
	)
	if err != nil {
		return fmt.Errorf("アカウント配下の予定の削除に失敗しました: %w", err)
	}
	return nil
}

// DeleteSyncedBefore は終了時刻がcutoff以前の同期予定を削除し、件数を返す。
// account_id IS NULL の手動予定は削除対象外。
func (r *PostgresEventRepo) DeleteSyncedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM calendar_events
		 WHERE account_id IS NOT NULL AND end_time <= $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("保持期間を過ぎた予定の削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	return rowsAffected, nil
}

// DeleteByUserID はユーザーの全予定を削除する。
func (r *PostgresEventRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM calendar_events WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("ユーザーの全予定の削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ EventRepository = (*PostgresEventRepo)(nil)
