package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/renraku/internal/model"
)

// PostgresProjectRepo はPostgreSQLを使用した案件リポジトリ。
type PostgresProjectRepo struct {
	db *sql.DB
}

// NewPostgresProjectRepo はPostgresProjectRepoを生成する。
func NewPostgresProjectRepo(db *sql.DB) *PostgresProjectRepo {
	return &PostgresProjectRepo{db: db}
}

// FindByID はユーザースコープ内で指定IDの案件を取得する。
// 見つからない場合はnilを返す。
func (r *PostgresProjectRepo) FindByID(ctx context.Context, userID, id string) (*model.Project, error) {
	project := &model.Project{}
	var description sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, description, status, created_at, updated_at
		 FROM projects WHERE user_id = $1 AND id = $2`,
		userID, id,
	).Scan(&project.ID, &project.UserID, &project.Name, &description,
		&project.Status, &project.CreatedAt, &project.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("案件の取得に失敗しました: %w", err)
	}

	project.Description = nullStringValue(description)
	return project, nil
}

// Create は案件を作成する。
func (r *PostgresProjectRepo) Create(ctx context.Context, project *model.Project) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO projects (id, user_id, name, description, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		project.ID, project.UserID, project.Name, nullString(project.Description),
		project.Status, project.CreatedAt, project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("案件の作成に失敗しました: %w", err)
	}
	return nil
}

// Update は案件を上書き更新する。対象が存在しない場合はエラーを返す。
func (r *PostgresProjectRepo) Update(ctx context.Context, project *model.Project) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE projects SET name = $3, description = $4, status = $5, updated_at = $6
		 WHERE user_id = $1 AND id = $2`,
		project.UserID, project.ID, project.Name, nullString(project.Description),
		project.Status, project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("案件の更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("案件が見つかりません: %s", project.ID)
	}
	return nil
}

// ListByUserID はユーザーの案件一覧をcreated_at昇順で返す。statusが空の場合は全件。
func (r *PostgresProjectRepo) ListByUserID(ctx context.Context, userID string, status model.ProjectStatus) ([]*model.Project, error) {
	query := `SELECT id, user_id, name, description, status, created_at, updated_at
	          FROM projects WHERE user_id = $1`
	args := []interface{}{userID}

	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("案件一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var projects []*model.Project
	for rows.Next() {
		project := &model.Project{}
		var description sql.NullString
		if err := rows.Scan(&project.ID, &project.UserID, &project.Name, &description,
			&project.Status, &project.CreatedAt, &project.UpdatedAt); err != nil {
			return nil, fmt.Errorf("案件の読み取りに失敗しました: %w", err)
		}
		project.Description = nullStringValue(description)
		projects = append(projects, project)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("案件一覧の走査に失敗しました: %w", err)
	}

	return projects, nil
}

// ListActiveWithProgress はアクティブな案件をタスク数集計付きで返す。
// 未完了タスク数（open + in_progress）と完了タスク数を1クエリで集計する。
func (r *PostgresProjectRepo) ListActiveWithProgress(ctx context.Context, userID string) ([]model.ProjectProgress, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.user_id, p.name, p.description, p.status, p.created_at, p.updated_at,
		        COUNT(t.id) FILTER (WHERE t.status IN ('open', 'in_progress')) AS open_count,
		        COUNT(t.id) FILTER (WHERE t.status = 'done') AS done_count
		 FROM projects p
		 LEFT JOIN tasks t ON t.project_id = p.id
		 WHERE p.user_id = $1 AND p.status = 'active'
		 GROUP BY p.id, p.user_id, p.name, p.description, p.status, p.created_at, p.updated_at
		 ORDER BY p.created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("案件進捗の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var progresses []model.ProjectProgress
	for rows.Next() {
		var pp model.ProjectProgress
		var description sql.NullString
		if err := rows.Scan(&pp.Project.ID, &pp.Project.UserID, &pp.Project.Name, &description,
			&pp.Project.Status, &pp.Project.CreatedAt, &pp.Project.UpdatedAt,
			&pp.OpenCount, &pp.DoneCount); err != nil {
			return nil, fmt.Errorf("案件進捗の読み取りに失敗しました: %w", err)
		}
		pp.Project.Description = nullStringValue(description)
		progresses = append(progresses, pp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("案件進捗の走査に失敗しました: %w", err)
	}

	return progresses, nil
}

// Delete はユーザースコープ内で案件を削除する。削除件数を返す。
func (r *PostgresProjectRepo) Delete(ctx context.Context, userID, id string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM projects WHERE user_id = $1 AND id = $2`,
		userID, id,
	)
	if err != nil {
		return 0, fmt.Errorf("案件の削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	return rowsAffected, nil
}

// DeleteByUserID はユーザーの全案件を削除する。
func (r *PostgresProjectRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM projects WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("ユーザーの全案件の削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ProjectRepository = (*PostgresProjectRepo)(nil)
