package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/renraku/internal/model"
)

// PostgresTagRepo はPostgreSQLを使用したタグリポジトリ。
// タグ本体（tags）と連絡先への付与（contact_tags）の両方を扱う。
type PostgresTagRepo struct {
	db *sql.DB
}

// NewPostgresTagRepo はPostgresTagRepoを生成する。
func NewPostgresTagRepo(db *sql.DB) *PostgresTagRepo {
	return &PostgresTagRepo{db: db}
}

// FindByID はユーザースコープ内で指定IDのタグを取得する。
// 見つからない場合はnilを返す。
func (r *PostgresTagRepo) FindByID(ctx context.Context, userID, id string) (*model.Tag, error) {
	tag := &model.Tag{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, color, created_at
		 FROM tags WHERE user_id = $1 AND id = $2`,
		userID, id,
	).Scan(&tag.ID, &tag.UserID, &tag.Name, &tag.Color, &tag.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("タグの取得に失敗しました: %w", err)
	}

	return tag, nil
}

// FindByName はタグ名（大文字小文字を区別しない）でタグを検索する。
// 見つからない場合はnilを返す。
func (r *PostgresTagRepo) FindByName(ctx context.Context, userID, name string) (*model.Tag, error) {
	tag := &model.Tag{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, color, created_at
		 FROM tags WHERE user_id = $1 AND lower(name) = lower($2)`,
		userID, name,
	).Scan(&tag.ID, &tag.UserID, &tag.Name, &tag.Color, &tag.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("タグ名によるタグの検索に失敗しました: %w", err)
	}

	return tag, nil
}

// Create はタグを作成する。
func (r *PostgresTagRepo) Create(ctx context.Context, tag *model.Tag) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tags (id, user_id, name, color, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		tag.ID, tag.UserID, tag.Name, tag.Color, tag.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("タグの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はタグを上書き更新する。対象が存在しない場合はエラーを返す。
func (r *PostgresTagRepo) Update(ctx context.Context, tag *model.Tag) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tags SET name = $3, color = $4
		 WHERE user_id = $1 AND id = $2`,
		tag.UserID, tag.ID, tag.Name, tag.Color,
	)
	if err != nil {
		return fmt.Errorf("タグの更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("タグが見つかりません: %s", tag.ID)
	}
	return nil
}

// ListByUserIDWithCounts はユーザーのタグ一覧を付与先連絡先数付きでname昇順で返す。
func (r *PostgresTagRepo) ListByUserIDWithCounts(ctx context.Context, userID string) ([]model.TagWithCount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT t.id, t.user_id, t.name, t.color, t.created_at, COUNT(ct.contact_id)
		 FROM tags t
		 LEFT JOIN contact_tags ct ON ct.tag_id = t.id
		 WHERE t.user_id = $1
		 GROUP BY t.id, t.user_id, t.name, t.color, t.created_at
		 ORDER BY lower(t.name) ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("タグ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var tags []model.TagWithCount
	for rows.Next() {
		var tc model.TagWithCount
		if err := rows.Scan(&tc.ID, &tc.UserID, &tc.Name, &tc.Color, &tc.CreatedAt, &tc.ContactCount); err != nil {
			return nil, fmt.Errorf("タグの読み取りに失敗しました: %w", err)
		}
		tags = append(tags, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("タグ一覧の走査に失敗しました: %w", err)
	}

	return tags, nil
}

// AttachContact はタグを連絡先に付与する。既に付与済みの場合は何もしない（冪等）。
func (r *PostgresTagRepo) AttachContact(ctx context.Context, userID, contactID, tagID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO contact_tags (user_id, contact_id, tag_id, created_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (contact_id, tag_id) DO NOTHING`,
		userID, contactID, tagID,
	)
	if err != nil {
		return fmt.Errorf("タグの付与に失敗しました: %w", err)
	}
	return nil
}

// DetachContact はタグの付与を解除する。解除件数を返す。
func (r *PostgresTagRepo) DetachContact(ctx context.Context, userID, contactID, tagID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM contact_tags
		 WHERE user_id = $1 AND contact_id = $2 AND tag_id = $3`,
		userID, contactID, tagID,
	)
	if err != nil {
		return 0, fmt.Errorf("タグの付与解除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	return rowsAffected, nil
}

// ListByContact は連絡先に付与されたタグをname昇順で返す。
func (r *PostgresTagRepo) ListByContact(ctx context.Context, userID, contactID string) ([]*model.Tag, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT t.id, t.user_id, t.name, t.color, t.created_at
		 FROM tags t
		 INNER JOIN contact_tags ct ON ct.tag_id = t.id
		 WHERE ct.user_id = $1 AND ct.contact_id = $2
		 ORDER BY lower(t.name) ASC`,
		userID, contactID,
	)
	if err != nil {
		return nil, fmt.Errorf("連絡先のタグ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var tags []*model.Tag
	for rows.Next() {
		tag := &model.Tag{}
		if err := rows.Scan(&tag.ID, &tag.UserID, &tag.Name, &tag.Color, &tag.CreatedAt); err != nil {
			return nil, fmt.Errorf("タグの読み取りに失敗しました: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("連絡先のタグ一覧の走査に失敗しました: %w", err)
	}

	return tags, nil
}

// ListContactsByTag はタグが付与された連絡先をcreated_at降順・IDカーソルで返す。
// limitは呼び出し側で+1済みの値を渡す。
func (r *PostgresTagRepo) ListContactsByTag(ctx context.Context, userID, tagID string, limit int, cursor string) ([]*model.Contact, error) {
	query := `SELECT c.id, c.user_id, c.first_name, c.last_name, c.company, c.notes, c.archived, c.created_at, c.updated_at
	          FROM contacts c
	          INNER JOIN contact_tags ct ON ct.contact_id = c.id
	          WHERE ct.user_id = $1 AND ct.tag_id = $2`
	args := []interface{}{userID, tagID}

	if cursor != "" {
		args = append(args, cursor)
		query += fmt.Sprintf(` AND (c.created_at, c.id) < (SELECT created_at, id FROM contacts WHERE user_id = $1 AND id = $%d)`, len(args))
	}

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY c.created_at DESC, c.id DESC LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("タグによる連絡先の検索に失敗しました: %w", err)
	}
	defer rows.Close()

	var contacts []*model.Contact
	for rows.Next() {
		contact := &model.Contact{}
		if err := rows.Scan(&contact.ID, &contact.UserID, &contact.FirstName, &contact.LastName,
			&contact.Company, &contact.Notes, &contact.Archived, &contact.CreatedAt, &contact.UpdatedAt); err != nil {
			return nil, fmt.Errorf("連絡先の読み取りに失敗しました: %w", err)
		}
		contacts = append(contacts, contact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("連絡先の走査に失敗しました: %w", err)
	}

	return contacts, nil
}

// MoveContactLinks はfromContactIDのタグ付与をtoContactIDへ移す。
// 移動先に同じタグが既に付与されている行は移さず削除する。
func (r *PostgresTagRepo) MoveContactLinks(ctx context.Context, userID, fromContactID, toContactID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE contact_tags AS src SET contact_id = $3
		 WHERE src.user_id = $1 AND src.contact_id = $2
		   AND NOT EXISTS (
		       SELECT 1 FROM contact_tags AS dst
		       WHERE dst.contact_id = $3 AND dst.tag_id = src.tag_id
		   )`,
		userID, fromContactID, toContactID,
	)
	if err != nil {
		return fmt.Errorf("タグ付与の付け替えに失敗しました: %w", err)
	}

	// 移動先に既にあった重複分を削除する
	_, err = r.db.ExecContext(ctx,
		`DELETE FROM contact_tags WHERE user_id = $1 AND contact_id = $2`,
		userID, fromContactID,
	)
	if err != nil {
		return fmt.Errorf("重複したタグ付与の削除に失敗しました: %w", err)
	}

	return nil
}

// DeleteLinksByContact は連絡先の全タグ付与を解除する。
func (r *PostgresTagRepo) DeleteLinksByContact(ctx context.Context, userID, contactID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM contact_tags WHERE user_id = $1 AND contact_id = $2`,
		userID, contactID,
	)
	if err != nil {
		return fmt.Errorf("連絡先のタグ付与の削除に失敗しました: %w", err)
	}
	return nil
}

// Delete はユーザースコープ内でタグを削除する。付与もCASCADE削除される。削除件数を返す。
func (r *PostgresTagRepo) Delete(ctx context.Context, userID, id string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM tags WHERE user_id = $1 AND id = $2`,
		userID, id,
	)
	if err != nil {
		return 0, fmt.Errorf("タグの削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	return rowsAffected, nil
}

// DeleteByUserID はユーザーの全タグを削除する。付与を先に消してからタグ本体を消す。
func (r *PostgresTagRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM contact_tags WHERE user_id = $1`,
		userID,
	); err != nil {
		return fmt.Errorf("ユーザーの全タグ付与の削除に失敗しました: %w", err)
	}
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM tags WHERE user_id = $1`,
		userID,
	); err != nil {
		return fmt.Errorf("ユーザーの全タグの削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ TagRepository = (*PostgresTagRepo)(nil)
