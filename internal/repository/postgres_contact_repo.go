package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/renraku/internal/model"
)

// PostgresContactRepo はPostgreSQLを使用した連絡先リポジトリ。
type PostgresContactRepo struct {
	db *sql.DB
}

// NewPostgresContactRepo はPostgresContactRepoを生成する。
func NewPostgresContactRepo(db *sql.DB) *PostgresContactRepo {
	return &PostgresContactRepo{db: db}
}

// FindByID はユーザースコープ内で指定IDの連絡先を取得する。
// 見つからない場合はnilを返す。
func (r *PostgresContactRepo) FindByID(ctx context.Context, userID, id string) (*model.Contact, error) {
	contact := &model.Contact{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, first_name, last_name, company, notes, archived, created_at, updated_at
		 FROM contacts
		 WHERE user_id = $1 AND id = $2`,
		userID, id,
	).Scan(&contact.ID, &contact.UserID, &contact.FirstName, &contact.LastName, &contact.Company,
		&contact.Notes, &contact.Archived, &contact.CreatedAt, &contact.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("連絡先の取得に失敗しました: %w", err)
	}

	return contact, nil
}

// Create は連絡先を作成する。
func (r *PostgresContactRepo) Create(ctx context.Context, contact *model.Contact) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO contacts (id, user_id, first_name, last_name, company, notes, archived, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		contact.ID, contact.UserID, contact.FirstName, contact.LastName, contact.Company,
		contact.Notes, contact.Archived, contact.CreatedAt, contact.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("連絡先の作成に失敗しました: %w", err)
	}
	return nil
}

// Update は連絡先を上書き更新する。対象が存在しない場合はエラーを返す。
func (r *PostgresContactRepo) Update(ctx context.Context, contact *model.Contact) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE contacts
		 SET first_name = $3, last_name = $4, company = $5, notes = $6, archived = $7, updated_at = $8
		 WHERE user_id = $1 AND id = $2`,
		contact.UserID, contact.ID, contact.FirstName, contact.LastName, contact.Company,
		contact.Notes, contact.Archived, contact.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("連絡先の更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("連絡先が見つかりません: %s", contact.ID)
	}
	return nil
}

// List はユーザーの連絡先一覧をcreated_at降順・IDカーソルで取得する。
// filter.Limitは呼び出し側で+1済みの値を渡し、HasMore判定に使う。
func (r *PostgresContactRepo) List(ctx context.Context, userID string, filter model.ContactFilter) ([]*model.Contact, error) {
	query := `SELECT id, user_id, first_name, last_name, company, notes, archived, created_at, updated_at
	          FROM contacts
	          WHERE user_id = $1`
	args := []interface{}{userID}

	if filter.Archived != nil {
		args = append(args, *filter.Archived)
		query += fmt.Sprintf(" AND archived = $%d", len(args))
	}

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		query += fmt.Sprintf(" AND (first_name ILIKE $%d OR last_name ILIKE $%d OR company ILIKE $%d)", n, n, n)
	}

	// キーセットページング: カーソル行より古い行のみ取得
	if filter.Cursor != "" {
		args = append(args, filter.Cursor)
		n := len(args)
		query += fmt.Sprintf(` AND (created_at, id) < (SELECT created_at, id FROM contacts WHERE user_id = $1 AND id = $%d)`, n)
	}

	args = append(args, filter.Limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("連絡先一覧の取得に失敗しました: %w", err)
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
		return nil, fmt.Errorf("連絡先一覧の走査に失敗しました: %w", err)
	}

	return contacts, nil
}

// CountByUserID はユーザーの連絡先数を返す。
func (r *PostgresContactRepo) CountByUserID(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM contacts WHERE user_id = $1`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("連絡先数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// Delete はユーザースコープ内で連絡先を削除する。削除件数を返す。
func (r *PostgresContactRepo) Delete(ctx context.Context, userID, id string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM contacts WHERE user_id = $1 AND id = $2`,
		userID, id,
	)
	if err != nil {
		return 0, fmt.Errorf("連絡先の削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	return rowsAffected, nil
}

// DeleteByUserID はユーザーの全連絡先を削除する。
func (r *PostgresContactRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM contacts WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("ユーザーの全連絡先の削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ContactRepository = (*PostgresContactRepo)(nil)
