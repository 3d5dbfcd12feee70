package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/renraku/internal/model"
)

// PostgresConsentRepo はPostgreSQLを使用した同意台帳リポジトリ。
type PostgresConsentRepo struct {
	db *sql.DB
}

// NewPostgresConsentRepo はPostgresConsentRepoを生成する。
func NewPostgresConsentRepo(db *sql.DB) *PostgresConsentRepo {
	return &PostgresConsentRepo{db: db}
}

const consentColumns = `id, user_id, contact_id, kind, status, method, note,
	        granted_at, revoked_at, expires_at, created_at`

// scanConsent は1行分の同意記録を読み取る。
func scanConsent(scan func(dest ...interface{}) error) (*model.Consent, error) {
	consent := &model.Consent{}
	var note sql.NullString
	var revokedAt, expiresAt sql.NullTime

	err := scan(
		&consent.ID, &consent.UserID, &consent.ContactID,
		&consent.Kind, &consent.Status, &consent.Method, &note,
		&consent.GrantedAt, &revokedAt, &expiresAt, &consent.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	consent.Note = nullStringValue(note)
	if revokedAt.Valid {
		t := revokedAt.Time
		consent.RevokedAt = &t
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		consent.ExpiresAt = &t
	}

	return consent, nil
}

// Create は同意レコードを作成する。
func (r *PostgresConsentRepo) Create(ctx context.Context, consent *model.Consent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO consents (id, user_id, contact_id, kind, status, method, note,
		                       granted_at, revoked_at, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		consent.ID, consent.UserID, consent.ContactID,
		consent.Kind, consent.Status, consent.Method, nullString(consent.Note),
		consent.GrantedAt, consent.RevokedAt, consent.ExpiresAt, consent.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("同意記録の作成に失敗しました: %w", err)
	}
	return nil
}

// FindActive は指定種別の有効な同意を取得する。
// 複数存在する場合は最新のgranted_atの行を返す。見つからない場合はnilを返す。
func (r *PostgresConsentRepo) FindActive(ctx context.Context, userID, contactID string, kind model.ConsentKind, now time.Time) (*model.Consent, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+consentColumns+`
		 FROM consents
		 WHERE user_id = $1 AND contact_id = $2 AND kind = $3
		   AND status = 'granted'
		   AND revoked_at IS NULL
		   AND (expires_at IS NULL OR expires_at > $4)
		 ORDER BY granted_at DESC, id DESC
		 LIMIT 1`,
		userID, contactID, kind, now,
	)

	consent, err := scanConsent(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("有効な同意の取得に失敗しました: %w", err)
	}

	return consent, nil
}

// RevokeActive は指定種別の有効な同意を全て取り消す。取り消し件数を返す。
func (r *PostgresConsentRepo) RevokeActive(ctx context.Context, userID, contactID string, kind model.ConsentKind, revokedAt time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE consents SET status = 'revoked', revoked_at = $4
		 WHERE user_id = $1 AND contact_id = $2 AND kind = $3
		   AND status = 'granted' AND revoked_at IS NULL`,
		userID, contactID, kind, revokedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("同意の取り消しに失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	return rowsAffected, nil
}

// ListByContact は連絡先の同意履歴をgranted_at降順で返す。
func (r *PostgresConsentRepo) ListByContact(ctx context.Context, userID, contactID string) ([]*model.Consent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+consentColumns+`
		 FROM consents
		 WHERE user_id = $1 AND contact_id = $2
		 ORDER BY granted_at DESC, id DESC`,
		userID, contactID,
	)
	if err != nil {
		return nil, fmt.Errorf("同意履歴の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var consents []*model.Consent
	for rows.Next() {
		consent, err := scanConsent(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("同意記録の読み取りに失敗しました: %w", err)
		}
		consents = append(consents, consent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("同意履歴の走査に失敗しました: %w", err)
	}

	return consents, nil
}

// CountActiveByKind は種別ごとの有効な同意数を返す。0件の種別は含まれない。
func (r *PostgresConsentRepo) CountActiveByKind(ctx context.Context, userID string, now time.Time) (map[model.ConsentKind]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT kind, COUNT(*)
		 FROM consents
		 WHERE user_id = $1
		   AND status = 'granted'
		   AND revoked_at IS NULL
		   AND (expires_at IS NULL OR expires_at > $2)
		 GROUP BY kind`,
		userID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("種別ごとの同意数の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.ConsentKind]int)
	for rows.Next() {
		var kind model.ConsentKind
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("同意数の読み取りに失敗しました: %w", err)
		}
		counts[kind] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("同意数の走査に失敗しました: %w", err)
	}

	return counts, nil
}

// ReassignContact はfromContactIDの同意記録をtoContactIDに付け替える。
func (r *PostgresConsentRepo) ReassignContact(ctx context.Context, userID, fromContactID, toContactID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE consents SET contact_id = $3
		 WHERE user_id = $1 AND contact_id = $2`,
		userID, fromContactID, toContactID,
	)
	if err != nil {
		return 0, fmt.Errorf("同意記録の連絡先付け替えに失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	return rowsAffected, nil
}

// DeleteByContact は連絡先の同意記録を全て削除する。
func (r *PostgresConsentRepo) DeleteByContact(ctx context.Context, userID, contactID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM consents WHERE user_id = $1 AND contact_id = $2`,
		userID, contactID,
	)
	if err != nil {
		return 0, fmt.Errorf("連絡先の同意記録の削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	return rowsAffected, nil
}

// DeleteByUserID はユーザーの全同意記録を削除する。
func (r *PostgresConsentRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM consents WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("ユーザーの全同意記録の削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ConsentRepository = (*PostgresConsentRepo)(nil)
