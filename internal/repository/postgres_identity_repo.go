package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/renraku/internal/model"
	"github.com/lib/pq"
)

// PostgresIdentityRepo はPostgreSQLを使用した連絡先識別子リポジトリ。
// 全クエリがuser_idを述語に含み、テナント境界を越える読み書きを行わない。
type PostgresIdentityRepo struct {
	db *sql.DB
}

// NewPostgresIdentityRepo はPostgresIdentityRepoを生成する。
func NewPostgresIdentityRepo(db *sql.DB) *PostgresIdentityRepo {
	return &PostgresIdentityRepo{db: db}
}

// Create は識別子を作成する。同一連絡先に同一の (kind, value, provider) が
// 既に登録されている場合は挿入せず既存行を返す（冪等）。
// テーブルには一意制約を張らない。マージで同じ値の行が1件の連絡先に
// 集まることを許容するためで、重複はfindDuplicateIdentitiesで検出する。
func (r *PostgresIdentityRepo) Create(ctx context.Context, identity *model.Identity) (*model.Identity, error) {
	existing, err := r.findExact(ctx, identity)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	created := &model.Identity{}
	err = r.db.QueryRowContext(ctx,
		`INSERT INTO contact_identities (id, user_id, contact_id, kind, value, provider, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, user_id, contact_id, kind, value, provider, created_at`,
		identity.ID, identity.UserID, identity.ContactID, identity.Kind, identity.Value, identity.Provider, identity.CreatedAt,
	).Scan(&created.ID, &created.UserID, &created.ContactID, &created.Kind, &created.Value, &created.Provider, &created.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("識別子の作成に失敗しました: %w", err)
	}

	return created, nil
}

// findExact は (user_id, contact_id, kind, value, provider) 完全一致の行を
// 登録順で1件取得する。見つからない場合はnilを返す。
func (r *PostgresIdentityRepo) findExact(ctx context.Context, identity *model.Identity) (*model.Identity, error) {
	existing := &model.Identity{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, contact_id, kind, value, provider, created_at
		 FROM contact_identities
		 WHERE user_id = $1 AND contact_id = $2 AND kind = $3 AND value = $4 AND provider = $5
		 ORDER BY created_at ASC, id ASC
		 LIMIT 1`,
		identity.UserID, identity.ContactID, identity.Kind, identity.Value, identity.Provider,
	).Scan(&existing.ID, &existing.UserID, &existing.ContactID, &existing.Kind, &existing.Value, &existing.Provider, &existing.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("既存識別子の検索に失敗しました: %w", err)
	}

	return existing, nil
}

// FindByID は指定IDの識別子を取得する。見つからない場合はnilを返す。
func (r *PostgresIdentityRepo) FindByID(ctx context.Context, userID, id string) (*model.Identity, error) {
	identity := &model.Identity{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, contact_id, kind, value, provider, created_at
		 FROM contact_identities
		 WHERE user_id = $1 AND id = $2`,
		userID, id,
	).Scan(&identity.ID, &identity.UserID, &identity.ContactID, &identity.Kind, &identity.Value, &identity.Provider, &identity.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("識別子の取得に失敗しました: %w", err)
	}

	return identity, nil
}

// FindFirstByKindValue は正規化済みの値で識別子を1件検索する。
// 複数の連絡先が同じ値を持つ場合は登録が最も古い行を返す。
// 見つからない場合はnilを返す。
func (r *PostgresIdentityRepo) FindFirstByKindValue(ctx context.Context, userID string, kind model.IdentityKind, value, provider string) (*model.Identity, error) {
	identity := &model.Identity{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, contact_id, kind, value, provider, created_at
		 FROM contact_identities
		 WHERE user_id = $1 AND kind = $2 AND value = $3 AND provider = $4
		 ORDER BY created_at ASC, id ASC
		 LIMIT 1`,
		userID, kind, value, provider,
	).Scan(&identity.ID, &identity.UserID, &identity.ContactID, &identity.Kind, &identity.Value, &identity.Provider, &identity.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("値による識別子の検索に失敗しました: %w", err)
	}

	return identity, nil
}

// FindContactIDsByKindValue は同じ識別子値を持つ連絡先IDを重複なしで返す。
func (r *PostgresIdentityRepo) FindContactIDsByKindValue(ctx context.Context, userID string, kind model.IdentityKind, value, provider string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT contact_id
		 FROM contact_identities
		 WHERE user_id = $1 AND kind = $2 AND value = $3 AND provider = $4
		 ORDER BY contact_id`,
		userID, kind, value, provider,
	)
	if err != nil {
		return nil, fmt.Errorf("識別子による連絡先の検索に失敗しました: %w", err)
	}
	defer rows.Close()

	var contactIDs []string
	for rows.Next() {
		var contactID string
		if err := rows.Scan(&contactID); err != nil {
			return nil, fmt.Errorf("連絡先IDの読み取りに失敗しました: %w", err)
		}
		contactIDs = append(contactIDs, contactID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("連絡先IDの走査に失敗しました: %w", err)
	}

	return contactIDs, nil
}

// ListByContact は連絡先の全識別子をcreated_at昇順で返す。
func (r *PostgresIdentityRepo) ListByContact(ctx context.Context, userID, contactID string) ([]*model.Identity, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, contact_id, kind, value, provider, created_at
		 FROM contact_identities
		 WHERE user_id = $1 AND contact_id = $2
		 ORDER BY created_at ASC, id ASC`,
		userID, contactID,
	)
	if err != nil {
		return nil, fmt.Errorf("識別子一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var identities []*model.Identity
	for rows.Next() {
		identity := &model.Identity{}
		if err := rows.Scan(&identity.ID, &identity.UserID, &identity.ContactID, &identity.Kind, &identity.Value, &identity.Provider, &identity.CreatedAt); err != nil {
			return nil, fmt.Errorf("識別子の読み取りに失敗しました: %w", err)
		}
		identities = append(identities, identity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("識別子一覧の走査に失敗しました: %w", err)
	}

	return identities, nil
}

// ListGroupsWithMultipleContacts は複数の連絡先に共有されている
// (kind, value, provider) グループを返す。テナント全走査。
func (r *PostgresIdentityRepo) ListGroupsWithMultipleContacts(ctx context.Context, userID string) ([]model.DuplicateGroup, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT kind, value, provider, array_agg(DISTINCT contact_id ORDER BY contact_id)
		 FROM contact_identities
		 WHERE user_id = $1
		 GROUP BY kind, value, provider
		 HAVING COUNT(DISTINCT contact_id) > 1
		 ORDER BY kind, value, provider`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("重複識別子グループの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var groups []model.DuplicateGroup
	for rows.Next() {
		var group model.DuplicateGroup
		var contactIDs []string
		if err := rows.Scan(&group.Kind, &group.Value, &group.Provider, pq.Array(&contactIDs)); err != nil {
			return nil, fmt.Errorf("重複識別子グループの読み取りに失敗しました: %w", err)
		}
		group.ContactIDs = contactIDs
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("重複識別子グループの走査に失敗しました: %w", err)
	}

	return groups, nil
}

// ReassignContact はfromContactIDの識別子を全てtoContactIDに付け替える。
// 行の削除は行わず、contact_idの書き換えのみを単一のUPDATE文で行う。
// 同じ (kind, value, provider) が付け替え先に既にあっても構わず移す。
// 2回目以降の実行は対象行が無く何も起きないため冪等。付け替え件数を返す。
func (r *PostgresIdentityRepo) ReassignContact(ctx context.Context, userID, fromContactID, toContactID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE contact_identities
		 SET contact_id = $3
		 WHERE user_id = $1 AND contact_id = $2`,
		userID, fromContactID, toContactID,
	)
	if err != nil {
		return 0, fmt.Errorf("識別子の付け替えに失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	return rowsAffected, nil
}

// DeleteByID は識別子を削除する。削除件数を返す。
func (r *PostgresIdentityRepo) DeleteByID(ctx context.Context, userID, id string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM contact_identities WHERE user_id = $1 AND id = $2`,
		userID, id,
	)
	if err != nil {
		return 0, fmt.Errorf("識別子の削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	return rowsAffected, nil
}

// DeleteByContact は連絡先の全識別子を削除する。削除件数を返す。
func (r *PostgresIdentityRepo) DeleteByContact(ctx context.Context, userID, contactID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM contact_identities WHERE user_id = $1 AND contact_id = $2`,
		userID, contactID,
	)
	if err != nil {
		return 0, fmt.Errorf("連絡先の全識別子の削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	return rowsAffected, nil
}

// DeleteByUserID はユーザーの全識別子を削除する。
func (r *PostgresIdentityRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM contact_identities WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("ユーザーの全識別子の削除に失敗しました: %w", err)
	}
	return nil
}

// CountByKind は種別ごとの識別子数を返す。0件の種別はマップに含まれない。
func (r *PostgresIdentityRepo) CountByKind(ctx context.Context, userID string) (map[model.IdentityKind]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT kind, COUNT(*)
		 FROM contact_identities
		 WHERE user_id = $1
		 GROUP BY kind`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("種別ごとの識別子数の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.IdentityKind]int)
	for rows.Next() {
		var kind model.IdentityKind
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("識別子数の読み取りに失敗しました: %w", err)
		}
		counts[kind] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("識別子数の走査に失敗しました: %w", err)
	}

	return counts, nil
}

// compile-time interface check
var _ IdentityRepository = (*PostgresIdentityRepo)(nil)
