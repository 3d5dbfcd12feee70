package momentum

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/renraku/internal/model"
	"github.com/hitoshi/renraku/internal/repository"
)

// defaultTaskListLimit は一覧取得のデフォルト件数。
const defaultTaskListLimit = 50

// maxTaskListLimit は一覧取得の上限件数。
const maxTaskListLimit = 100

// momentumWindowDays は活動量サマリーで「最近完了した」と数える日数。
const momentumWindowDays = 7

// ContactFinder は連絡先の存在確認のインターフェース。
// repository.ContactRepositoryが実装する。
type ContactFinder interface {
	FindByID(ctx context.Context, userID, id string) (*model.Contact, error)
}

// TaskService はタスクの作成・更新・ステータス変更・削除と
// 活動量サマリーの集計のサービス層。
type TaskService struct {
	taskRepo    repository.TaskRepository
	projectRepo repository.ProjectRepository
	contacts    ContactFinder
	sanitizer   Sanitizer
}

// NewTaskService はTaskServiceの新しいインスタンスを生成する。
func NewTaskService(
	taskRepo repository.TaskRepository,
	projectRepo repository.ProjectRepository,
	contacts ContactFinder,
	sanitizer Sanitizer,
) *TaskService {
	return &TaskService{
		taskRepo:    taskRepo,
		projectRepo: projectRepo,
		contacts:    contacts,
		sanitizer:   sanitizer,
	}
}

// CreateTaskInput はタスク作成の入力。ProjectID・ContactIDは空で未紐付け。
type CreateTaskInput struct {
	Title     string
	Notes     string
	ProjectID string
	ContactID string
	DueAt     *time.Time
}

// UpdateTaskInput はタスク更新の入力。nilのフィールドは変更しない。
// ProjectID・ContactIDに空文字を渡すと紐付けを解除する。
type UpdateTaskInput struct {
	Title     *string
	Notes     *string
	ProjectID *string
	ContactID *string
	DueAt     *time.Time
}

// TaskListResult はListTasksの戻り値。
type TaskListResult struct {
	Tasks      []*model.Task
	NextCursor string
	HasMore    bool
}

// CreateTask はタスクを作成する。タイトルは必須。
// 紐付け先の案件・連絡先は同一テナント内に存在しなければならず、
// アーカイブ済み案件への紐付けは拒否される。
func (s *TaskService) CreateTask(ctx context.Context, userID string, input CreateTaskInput) (*model.Task, error) {
	// 1. タイトルの検証
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, model.NewInvalidTaskTitleError()
	}

	// 2. 紐付け先の検証
	projectID, err := s.resolveProjectLink(ctx, userID, input.ProjectID)
	if err != nil {
		return nil, err
	}
	contactID, err := s.resolveContactLink(ctx, userID, input.ContactID)
	if err != nil {
		return nil, err
	}

	// 3. タスクの保存
	now := time.Now()
	task := &model.Task{
		ID:        uuid.New().String(),
		UserID:    userID,
		ProjectID: projectID,
		ContactID: contactID,
		Title:     title,
		Notes:     s.sanitizer.Sanitize(input.Notes),
		Status:    model.TaskStatusOpen,
		DueAt:     input.DueAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("タスクの作成に失敗しました: %w", err)
	}
	return task, nil
}

// GetTask はタスクを取得する。見つからない場合はnilを返す。
func (s *TaskService) GetTask(ctx context.Context, userID, taskID string) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, userID, taskID)
	if err != nil {
		return nil, fmt.Errorf("タスクの取得に失敗しました: %w", err)
	}
	return task, nil
}

// UpdateTask はタスクを部分更新する。指定されたフィールドのみ書き換え、
// メモは再サニタイズされる。紐付け先の検証はCreateTaskと同じ。
func (s *TaskService) UpdateTask(ctx context.Context, userID, taskID string, input UpdateTaskInput) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, userID, taskID)
	if err != nil {
		return nil, fmt.Errorf("タスクの取得に失敗しました: %w", err)
	}
	if task == nil {
		return nil, model.NewTaskNotFoundError(taskID)
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, model.NewInvalidTaskTitleError()
		}
		task.Title = title
	}
	if input.Notes != nil {
		task.Notes = s.sanitizer.Sanitize(*input.Notes)
	}
	if input.ProjectID != nil {
		projectID, err := s.resolveProjectLink(ctx, userID, *input.ProjectID)
		if err != nil {
			return nil, err
		}
		task.ProjectID = projectID
	}
	if input.ContactID != nil {
		contactID, err := s.resolveContactLink(ctx, userID, *input.ContactID)
		if err != nil {
			return nil, err
		}
		task.ContactID = contactID
	}
	if input.DueAt != nil {
		due := *input.DueAt
		task.DueAt = &due
	}

	task.UpdatedAt = time.Now()
	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("タスクの更新に失敗しました: %w", err)
	}
	return task, nil
}

// SetTaskStatus はタスクのステータスを変更する。
// doneへの遷移でCompletedAtを記録し、doneから離れる遷移でクリアする。
// すでにdoneのタスクをdoneにしても完了時刻は変わらない。
func (s *TaskService) SetTaskStatus(ctx context.Context, userID, taskID string, status model.TaskStatus) (*model.Task, error) {
	if !model.IsValidTaskStatus(status) {
		return nil, model.NewInvalidTaskStatusError(string(status))
	}

	task, err := s.taskRepo.FindByID(ctx, userID, taskID)
	if err != nil {
		return nil, fmt.Errorf("タスクの取得に失敗しました: %w", err)
	}
	if task == nil {
		return nil, model.NewTaskNotFoundError(taskID)
	}

	now := time.Now()
	switch {
	case status == model.TaskStatusDone && task.Status != model.TaskStatusDone:
		completedAt := now
		task.CompletedAt = &completedAt
	case status != model.TaskStatusDone && task.Status == model.TaskStatusDone:
		task.CompletedAt = nil
	}
	task.Status = status
	task.UpdatedAt = now

	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("タスクステータスの更新に失敗しました: %w", err)
	}
	return task, nil
}

// DeleteTask はタスクを削除する。
func (s *TaskService) DeleteTask(ctx context.Context, userID, taskID string) error {
	deleted, err := s.taskRepo.Delete(ctx, userID, taskID)
	if err != nil {
		return fmt.Errorf("タスクの削除に失敗しました: %w", err)
	}
	if deleted == 0 {
		return model.NewTaskNotFoundError(taskID)
	}
	return nil
}

// ListTasks はタスク一覧をカーソルページネーション付きで返す。
// limit+1件を取得してHasMoreを判定する。
func (s *TaskService) ListTasks(ctx context.Context, userID string, filter model.TaskFilter) (*TaskListResult, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultTaskListLimit
	}
	if limit > maxTaskListLimit {
		limit = maxTaskListLimit
	}

	fetch := filter
	fetch.Limit = limit + 1
	tasks, err := s.taskRepo.List(ctx, userID, fetch)
	if err != nil {
		return nil, fmt.Errorf("タスク一覧の取得に失敗しました: %w", err)
	}

	hasMore := len(tasks) > limit
	if hasMore {
		tasks = tasks[:limit] // 余分な1件を除外
	}

	var nextCursor string
	if hasMore && len(tasks) > 0 {
		nextCursor = tasks[len(tasks)-1].ID
	}

	return &TaskListResult{
		Tasks:      tasks,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// GetMomentum はダッシュボード表示用の活動量サマリーを集計する。
// 未着手・進行中の件数、直近7日間の完了数、期限切れ数に加え、
// アクティブな案件ごとのタスク進捗を返す。
func (s *TaskService) GetMomentum(ctx context.Context, userID string) (*model.MomentumSummary, error) {
	now := time.Now()

	counts, err := s.taskRepo.CountByStatus(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ステータスごとのタスク数の取得に失敗しました: %w", err)
	}

	doneRecently, err := s.taskRepo.CountDoneSince(ctx, userID, now.AddDate(0, 0, -momentumWindowDays))
	if err != nil {
		return nil, fmt.Errorf("完了タスク数の取得に失敗しました: %w", err)
	}

	overdue, err := s.taskRepo.CountOverdue(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("期限切れタスク数の取得に失敗しました: %w", err)
	}

	progress, err := s.projectRepo.ListActiveWithProgress(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("案件進捗の取得に失敗しました: %w", err)
	}
	if progress == nil {
		progress = []model.ProjectProgress{}
	}

	return &model.MomentumSummary{
		OpenTasks:       counts[model.TaskStatusOpen],
		InProgressTasks: counts[model.TaskStatusInProgress],
		DoneLast7Days:   doneRecently,
		OverdueTasks:    overdue,
		Projects:        progress,
	}, nil
}

// resolveProjectLink は案件IDを検証して紐付け用ポインタに変換する。
// 空文字は未紐付け（nil）を意味する。
func (s *TaskService) resolveProjectLink(ctx context.Context, userID, projectID string) (*string, error) {
	if projectID == "" {
		return nil, nil
	}
	project, err := s.projectRepo.FindByID(ctx, userID, projectID)
	if err != nil {
		return nil, fmt.Errorf("案件の取得に失敗しました: %w", err)
	}
	if project == nil {
		return nil, model.NewProjectNotFoundError(projectID)
	}
	if project.Status == model.ProjectStatusArchived {
		return nil, model.NewProjectArchivedError()
	}
	return &project.ID, nil
}

// resolveContactLink は連絡先IDを検証して紐付け用ポインタに変換する。
// 空文字は未紐付け（nil）を意味する。
func (s *TaskService) resolveContactLink(ctx context.Context, userID, contactID string) (*string, error) {
	if contactID == "" {
		return nil, nil
	}
	contact, err := s.contacts.FindByID(ctx, userID, contactID)
	if err != nil {
		return nil, fmt.Errorf("連絡先の取得に失敗しました: %w", err)
	}
	if contact == nil {
		return nil, model.NewContactNotFoundError(contactID)
	}
	return &contact.ID, nil
}
