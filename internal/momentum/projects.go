// Package momentum は案件とタスクの進捗管理のドメインロジックを提供する。
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

// Sanitizer はメモのHTMLサニタイズのインターフェース。
// テスタビリティのためsecurity.ContentSanitizerServiceを抽象化する。
type Sanitizer interface {
	Sanitize(rawHTML string) string
}

// ProjectService は案件の作成・更新・ステータス遷移・削除のサービス層。
type ProjectService struct {
	projectRepo repository.ProjectRepository
	taskRepo    repository.TaskRepository
	sanitizer   Sanitizer
}

// NewProjectService はProjectServiceの新しいインスタンスを生成する。
func NewProjectService(
	projectRepo repository.ProjectRepository,
	taskRepo repository.TaskRepository,
	sanitizer Sanitizer,
) *ProjectService {
	return &ProjectService{
		projectRepo: projectRepo,
		taskRepo:    taskRepo,
		sanitizer:   sanitizer,
	}
}

// CreateProjectInput は案件作成の入力。
type CreateProjectInput struct {
	Name        string
	Description string
}

// UpdateProjectInput は案件更新の入力。nilのフィールドは変更しない。
type UpdateProjectInput struct {
	Name        *string
	Description *string
}

// CreateProject は案件を作成する。案件名は必須で、説明は保存前にサニタイズされる。
// 新規案件は常にactiveステータスで始まる。
func (s *ProjectService) CreateProject(ctx context.Context, userID string, input CreateProjectInput) (*model.Project, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, model.NewInvalidProjectNameError()
	}

	now := time.Now()
	project := &model.Project{
		ID:          uuid.New().String(),
		UserID:      userID,
		Name:        name,
		Description: s.sanitizer.Sanitize(input.Description),
		Status:      model.ProjectStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.projectRepo.Create(ctx, project); err != nil {
		return nil, fmt.Errorf("案件の作成に失敗しました: %w", err)
	}
	return project, nil
}

// GetProject は案件を取得する。見つからない場合はnilを返す。
func (s *ProjectService) GetProject(ctx context.Context, userID, projectID string) (*model.Project, error) {
	project, err := s.projectRepo.FindByID(ctx, userID, projectID)
	if err != nil {
		return nil, fmt.Errorf("案件の取得に失敗しました: %w", err)
	}
	return project, nil
}

// UpdateProject は案件を部分更新する。指定されたフィールドのみ書き換え、
// 説明は再サニタイズされる。
func (s *ProjectService) UpdateProject(ctx context.Context, userID, projectID string, input UpdateProjectInput) (*model.Project, error) {
	project, err := s.projectRepo.FindByID(ctx, userID, projectID)
	if err != nil {
		return nil, fmt.Errorf("案件の取得に失敗しました: %w", err)
	}
	if project == nil {
		return nil, model.NewProjectNotFoundError(projectID)
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, model.NewInvalidProjectNameError()
		}
		project.Name = name
	}
	if input.Description != nil {
		project.Description = s.sanitizer.Sanitize(*input.Description)
	}

	project.UpdatedAt = time.Now()
	if err := s.projectRepo.Update(ctx, project); err != nil {
		return nil, fmt.Errorf("案件の更新に失敗しました: %w", err)
	}
	return project, nil
}

// CompleteProject は案件を完了ステータスに遷移させる。
func (s *ProjectService) CompleteProject(ctx context.Context, userID, projectID string) (*model.Project, error) {
	return s.setStatus(ctx, userID, projectID, model.ProjectStatusCompleted)
}

// ArchiveProject は案件をアーカイブする。アーカイブ済み案件には
// 新しいタスクを紐付けられなくなる。
func (s *ProjectService) ArchiveProject(ctx context.Context, userID, projectID string) (*model.Project, error) {
	return s.setStatus(ctx, userID, projectID, model.ProjectStatusArchived)
}

func (s *ProjectService) setStatus(ctx context.Context, userID, projectID string, status model.ProjectStatus) (*model.Project, error) {
	project, err := s.projectRepo.FindByID(ctx, userID, projectID)
	if err != nil {
		return nil, fmt.Errorf("案件の取得に失敗しました: %w", err)
	}
	if project == nil {
		return nil, model.NewProjectNotFoundError(projectID)
	}

	project.Status = status
	project.UpdatedAt = time.Now()
	if err := s.projectRepo.Update(ctx, project); err != nil {
		return nil, fmt.Errorf("案件ステータスの更新に失敗しました: %w", err)
	}
	return project, nil
}

// ListProjects は案件一覧をcreated_at昇順で返す。
// statusが空の場合は全ステータスを対象にする。
func (s *ProjectService) ListProjects(ctx context.Context, userID string, status model.ProjectStatus) ([]*model.Project, error) {
	projects, err := s.projectRepo.ListByUserID(ctx, userID, status)
	if err != nil {
		return nil, fmt.Errorf("案件一覧の取得に失敗しました: %w", err)
	}
	if projects == nil {
		projects = []*model.Project{}
	}
	return projects, nil
}

// DeleteProject は案件を削除する。配下のタスクは削除せず、
// project_idの紐付けだけを解除する。
func (s *ProjectService) DeleteProject(ctx context.Context, userID, projectID string) error {
	project, err := s.projectRepo.FindByID(ctx, userID, projectID)
	if err != nil {
		return fmt.Errorf("案件の取得に失敗しました: %w", err)
	}
	if project == nil {
		return model.NewProjectNotFoundError(projectID)
	}

	// 1. タスクの紐付け解除（タスク自体は残す）
	if _, err := s.taskRepo.UnlinkProject(ctx, userID, projectID); err != nil {
		return fmt.Errorf("タスクの案件紐付け解除に失敗しました: %w", err)
	}

	// 2. 案件本体の削除
	if _, err := s.projectRepo.Delete(ctx, userID, projectID); err != nil {
		return fmt.Errorf("案件の削除に失敗しました: %w", err)
	}
	return nil
}
