package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/renraku/internal/model"
)

// PostgresTaskRepo はPostgreSQLを使用したタスクリポジトリ。
type PostgresTaskRepo struct {
	db *sql.DB
}

// NewPostgresTaskRepo はPostgresTaskRepoを生成する。
func NewPostgresTaskRepo(db *sql.DB) *PostgresTaskRepo {
	return &PostgresTaskRepo{db: db}
}

const taskColumns = `id, user_id, project_id, contact_id, title, notes, status,
	        due_at, completed_at, created_at, updated_at`

// scanTask は1行分のタスクを読み取る。
func scanTask(scan func(dest ...interface{}) error) (*model.Task, error) {
	task := &model.Task{}
	var projectID, contactID, notes sql.NullString
	var dueAt, completedAt sql.NullTime

	err := scan(
		&task.ID, &task.UserID, &projectID, &contactID,
		&task.Title, &notes, &task.Status,
		&dueAt, &completedAt, &task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if projectID.Valid {
		id := projectID.String
		task.ProjectID = &id
	}
	if contactID.Valid {
		id := contactID.String
		task.ContactID = &id
	}
	task.Notes = nullStringValue(notes)
	if dueAt.Valid {
		t := dueAt.Time
		task.DueAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		task.CompletedAt = &t
	}

	return task, nil
}

// FindByID はユーザースコープ内で指定IDのタスクを取得する。
// 見つからない場合はnilを返す。
func (r *PostgresTaskRepo) FindByID(ctx context.Context, userID, id string) (*model.Task, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+`
		 FROM tasks WHERE user_id = $1 AND id = $2`,
		userID, id,
	)

	task, err := scanTask(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("タスクの取得に失敗しました: %w", err)
	}

	return task, nil
}

// Create はタスクを作成する。
func (r *PostgresTaskRepo) Create(ctx context.Context, task *model.Task) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (id, user_id, project_id, contact_id, title, notes, status,
		                    due_at, completed_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		task.ID, task.UserID, task.ProjectID, task.ContactID,
		task.Title, nullString(task.Notes), task.Status,
		task.DueAt, task.CompletedAt, task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("タスクの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はタスクを上書き更新する。対象が存在しない場合はエラーを返す。
func (r *PostgresTaskRepo) Update(ctx context.Context, task *model.Task) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET
		    project_id = $3, contact_id = $4, title = $5, notes = $6,
		    status = $7, due_at = $8, completed_at = $9, updated_at = $10
		 WHERE user_id = $1 AND id = $2`,
		task.UserID, task.ID, task.ProjectID, task.ContactID,
		task.Title, nullString(task.Notes), task.Status,
		task.DueAt, task.CompletedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("タスクの更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("タスクが見つかりません: %s", task.ID)
	}
	return nil
}

// List はユーザーのタスク一覧をcreated_at降順・IDカーソルで取得する。
func (r *PostgresTaskRepo) List(ctx context.Context, userID string, filter model.TaskFilter) ([]*model.Task, error) {
	query := `SELECT ` + taskColumns + `
	          FROM tasks
	          WHERE user_id = $1`
	args := []interface{}{userID}

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.ProjectID != "" {
		args = append(args, filter.ProjectID)
		query += fmt.Sprintf(" AND project_id = $%d", len(args))
	}
	if filter.ContactID != "" {
		args = append(args, filter.ContactID)
		query += fmt.Sprintf(" AND contact_id = $%d", len(args))
	}
	if filter.DueBefore != nil {
		args = append(args, *filter.DueBefore)
		query += fmt.Sprintf(" AND due_at IS NOT NULL AND due_at < $%d", len(args))
	}
	if filter.Overdue {
		query += " AND status <> 'done' AND due_at IS NOT NULL AND due_at < now()"
	}

	if filter.Cursor != "" {
		args = append(args, filter.Cursor)
		n := len(args)
		query += fmt.Sprintf(` AND (created_at, id) < (SELECT created_at, id FROM tasks WHERE user_id = $1 AND id = $%d)`, n)
	}

	args = append(args, filter.Limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("タスク一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var tasks []*model.Task
	for rows.Next() {
		task, err := scanTask(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("タスクの読み取りに失敗しました: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("タスク一覧の走査に失敗しました: %w", err)
	}

	return tasks, nil
}

// CountByStatus はステータスごとのタスク数を返す。
func (r *PostgresTaskRepo) CountByStatus(ctx context.Context, userID string) (map[model.TaskStatus]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM tasks WHERE user_id = $1 GROUP BY status`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("ステータスごとのタスク数の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.TaskStatus]int)
	for rows.Next() {
		var status model.TaskStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("タスク数の読み取りに失敗しました: %w", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("タスク数の走査に失敗しました: %w", err)
	}

	return counts, nil
}

// CountDoneSince はsince以降に完了したタスク数を返す。
func (r *PostgresTaskRepo) CountDoneSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks
		 WHERE user_id = $1 AND status = 'done' AND completed_at >= $2`,
		userID, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("完了タスク数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// CountOverdue は期限切れの未完了タスク数を返す。
func (r *PostgresTaskRepo) CountOverdue(ctx context.Context, userID string, now time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks
		 WHERE user_id = $1 AND status <> 'done' AND due_at IS NOT NULL AND due_at < $2`,
		userID, now,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("期限切れタスク数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// UnlinkProject は案件配下のタスクのproject_idをNULLに戻す。
func (r *PostgresTaskRepo) UnlinkProject(ctx context.Context, userID, projectID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET project_id = NULL, updated_at = now()
		 WHERE user_id = $1 AND project_id = $2`,
		userID, projectID,
	)
	if err != nil {
		return 0, fmt.Errorf("タスクの案件紐付け解除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	return rowsAffected, nil
}

// UnlinkContact は連絡先に紐付くタスクのcontact_idをNULLに戻す。
func (r *PostgresTaskRepo) UnlinkContact(ctx context.Context, userID, contactID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET contact_id = NULL, updated_at = now()
		 WHERE user_id = $1 AND contact_id = $2`,
		userID, contactID,
	)
	if err != nil {
		return 0, fmt.Errorf("タスクの連絡先紐付け解除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	return rowsAffected, nil
}

// ReassignContact はfromContactIDのタスクをtoContactIDに付け替える。
func (r *PostgresTaskRepo) ReassignContact(ctx context.Context, userID, fromContactID, toContactID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET contact_id = $3, updated_at = now()
		 WHERE user_id = $1 AND contact_id = $2`,
		userID, fromContactID, toContactID,
	)
	if err != nil {
		return 0, fmt.Errorf("タスクの連絡先付け替えに失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	return rowsAffected, nil
}

// Delete はユーザースコープ内でタスクを削除する。削除件数を返す。
func (r *PostgresTaskRepo) Delete(ctx context.Context, userID, id string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE user_id = $1 AND id = $2`,
		userID, id,
	)
	if err != nil {
		return 0, fmt.Errorf("タスクの削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	return rowsAffected, nil
}

// DeleteByUserID はユーザーの全タスクを削除する。
func (r *PostgresTaskRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("ユーザーの全タスクの削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ TaskRepository = (*PostgresTaskRepo)(nil)
