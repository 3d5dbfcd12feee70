package momentum

import (
	"context"
	"testing"
	"time"

	"github.com/hitoshi/renraku/internal/model"
)

// --- ProjectService テスト用モック ---
// mockTaskRepo は tasks_test.go に定義済み。

// mockProjectRepo はテスト用のProjectRepositoryモック。
type mockProjectRepo struct {
	projects    map[string]*model.Project
	order       []string
	progress    []model.ProjectProgress
	createCalls int
	updateCalls int
}

func newMockProjectRepo() *mockProjectRepo {
	return &mockProjectRepo{projects: make(map[string]*model.Project)}
}

func (m *mockProjectRepo) add(project *model.Project) {
	m.projects[project.ID] = project
	m.order = append(m.order, project.ID)
}

func (m *mockProjectRepo) FindByID(_ context.Context, userID, id string) (*model.Project, error) {
	p, ok := m.projects[id]
	if !ok || p.UserID != userID {
		return nil, nil
	}
	return p, nil
}

func (m *mockProjectRepo) Create(_ context.Context, project *model.Project) error {
	m.createCalls++
	m.add(project)
	return nil
}

func (m *mockProjectRepo) Update(_ context.Context, project *model.Project) error {
	m.updateCalls++
	m.projects[project.ID] = project
	return nil
}

func (m *mockProjectRepo) ListByUserID(_ context.Context, userID string, status model.ProjectStatus) ([]*model.Project, error) {
	var result []*model.Project
	for _, id := range m.order {
		p, ok := m.projects[id]
		if !ok || p.UserID != userID {
			continue
		}
		if status != "" && p.Status != status {
			continue
		}
		result = append(result, p)
	}
	return result, nil
}

func (m *mockProjectRepo) ListActiveWithProgress(_ context.Context, _ string) ([]model.ProjectProgress, error) {
	return m.progress, nil
}

func (m *mockProjectRepo) Delete(_ context.Context, userID, id string) (int64, error) {
	p, ok := m.projects[id]
	if !ok || p.UserID != userID {
		return 0, nil
	}
	delete(m.projects, id)
	return 1, nil
}

func (m *mockProjectRepo) DeleteByUserID(_ context.Context, userID string) error {
	for id, p := range m.projects {
		if p.UserID == userID {
			delete(m.projects, id)
		}
	}
	return nil
}

// seedProject はテスト用の案件を生成する。
func seedProject(id, userID string, status model.ProjectStatus) *model.Project {
	now := time.Now()
	return &model.Project{
		ID:        id,
		UserID:    userID,
		Name:      "案件 " + id,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func newProjectTestService() (*ProjectService, *mockProjectRepo, *mockTaskRepo) {
	projectRepo := newMockProjectRepo()
	taskRepo := newMockTaskRepo()
	service := NewProjectService(projectRepo, taskRepo, &mockSanitizer{})
	return service, projectRepo, taskRepo
}

// TestCreateProject は案件作成の基本動作を確認する。
func TestCreateProject(t *testing.T) {
	service, projectRepo, _ := newProjectTestService()

	project, err := service.CreateProject(context.Background(), "user-1", CreateProjectInput{
		Name:        "  新店舗立ち上げ  ",
		Description: "<p>4月オープン目標</p>",
	})
	if err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}

	if project.ID == "" {
		t.Error("IDが生成されていない")
	}
	if project.Name != "新店舗立ち上げ" {
		t.Errorf("Name = %q, want %q", project.Name, "新店舗立ち上げ")
	}
	if project.Description != "sanitized(<p>4月オープン目標</p>)" {
		t.Errorf("Description = %q, サニタイズされていない", project.Description)
	}
	if project.Status != model.ProjectStatusActive {
		t.Errorf("Status = %q, want %q", project.Status, model.ProjectStatusActive)
	}
	if projectRepo.createCalls != 1 {
		t.Errorf("createCalls = %d, want 1", projectRepo.createCalls)
	}
}

// TestCreateProject_EmptyName は案件名なしの作成が拒否されることを確認する。
func TestCreateProject_EmptyName(t *testing.T) {
	service, projectRepo, _ := newProjectTestService()

	for _, name := range []string{"", "   "} {
		_, err := service.CreateProject(context.Background(), "user-1", CreateProjectInput{Name: name})
		assertErrorCode(t, err, model.ErrCodeInvalidProjectName)
	}
	if projectRepo.createCalls != 0 {
		t.Errorf("createCalls = %d, want 0", projectRepo.createCalls)
	}
}

// TestGetProject_ScopedToUser は他ユーザーの案件が見えないことを確認する。
func TestGetProject_ScopedToUser(t *testing.T) {
	service, projectRepo, _ := newProjectTestService()
	projectRepo.add(seedProject("prj-1", "user-2", model.ProjectStatusActive))

	project, err := service.GetProject(context.Background(), "user-1", "prj-1")
	if err != nil {
		t.Fatalf("GetProject failed: %v", err)
	}
	if project != nil {
		t.Error("他ユーザーの案件が取得できてしまっている")
	}
}

// TestUpdateProject_PartialFields は指定フィールドのみ更新されることを確認する。
func TestUpdateProject_PartialFields(t *testing.T) {
	service, projectRepo, _ := newProjectTestService()
	projectRepo.add(seedProject("prj-1", "user-1", model.ProjectStatusActive))

	description := "<p>進捗メモ</p>"
	project, err := service.UpdateProject(context.Background(), "user-1", "prj-1", UpdateProjectInput{
		Description: &description,
	})
	if err != nil {
		t.Fatalf("UpdateProject failed: %v", err)
	}

	if project.Name != "案件 prj-1" {
		t.Errorf("Name = %q, 変更されていないはず", project.Name)
	}
	if project.Description != "sanitized(<p>進捗メモ</p>)" {
		t.Errorf("Description = %q, サニタイズされていない", project.Description)
	}
	if projectRepo.updateCalls != 1 {
		t.Errorf("updateCalls = %d, want 1", projectRepo.updateCalls)
	}
}

// TestUpdateProject_CannotClearName は案件名を空にする更新が拒否されることを確認する。
func TestUpdateProject_CannotClearName(t *testing.T) {
	service, projectRepo, _ := newProjectTestService()
	projectRepo.add(seedProject("prj-1", "user-1", model.ProjectStatusActive))

	blank := "   "
	_, err := service.UpdateProject(context.Background(), "user-1", "prj-1", UpdateProjectInput{Name: &blank})
	assertErrorCode(t, err, model.ErrCodeInvalidProjectName)
	if projectRepo.updateCalls != 0 {
		t.Errorf("updateCalls = %d, want 0", projectRepo.updateCalls)
	}
}

// TestUpdateProject_NotFound は存在しない案件の更新を確認する。
func TestUpdateProject_NotFound(t *testing.T) {
	service, _, _ := newProjectTestService()

	name := "新名称"
	_, err := service.UpdateProject(context.Background(), "user-1", "missing", UpdateProjectInput{Name: &name})
	assertErrorCode(t, err, model.ErrCodeProjectNotFound)
}

// TestCompleteProject は完了ステータスへの遷移を確認する。
func TestCompleteProject(t *testing.T) {
	service, projectRepo, _ := newProjectTestService()
	projectRepo.add(seedProject("prj-1", "user-1", model.ProjectStatusActive))

	project, err := service.CompleteProject(context.Background(), "user-1", "prj-1")
	if err != nil {
		t.Fatalf("CompleteProject failed: %v", err)
	}
	if project.Status != model.ProjectStatusCompleted {
		t.Errorf("Status = %q, want %q", project.Status, model.ProjectStatusCompleted)
	}
	if projectRepo.updateCalls != 1 {
		t.Errorf("updateCalls = %d, want 1", projectRepo.updateCalls)
	}
}

// TestArchiveProject はアーカイブステータスへの遷移を確認する。
func TestArchiveProject(t *testing.T) {
	service, projectRepo, _ := newProjectTestService()
	projectRepo.add(seedProject("prj-1", "user-1", model.ProjectStatusActive))

	project, err := service.ArchiveProject(context.Background(), "user-1", "prj-1")
	if err != nil {
		t.Fatalf("ArchiveProject failed: %v", err)
	}
	if project.Status != model.ProjectStatusArchived {
		t.Errorf("Status = %q, want %q", project.Status, model.ProjectStatusArchived)
	}
}

// TestCompleteProject_NotFound は存在しない案件のステータス遷移を確認する。
func TestCompleteProject_NotFound(t *testing.T) {
	service, _, _ := newProjectTestService()

	_, err := service.CompleteProject(context.Background(), "user-1", "missing")
	assertErrorCode(t, err, model.ErrCodeProjectNotFound)
}

// TestListProjects_FiltersByStatus はステータスによる絞り込みを確認する。
func TestListProjects_FiltersByStatus(t *testing.T) {
	service, projectRepo, _ := newProjectTestService()
	projectRepo.add(seedProject("prj-1", "user-1", model.ProjectStatusActive))
	projectRepo.add(seedProject("prj-2", "user-1", model.ProjectStatusCompleted))
	projectRepo.add(seedProject("prj-3", "user-1", model.ProjectStatusArchived))

	active, err := service.ListProjects(context.Background(), "user-1", model.ProjectStatusActive)
	if err != nil {
		t.Fatalf("ListProjects failed: %v", err)
	}
	if len(active) != 1 || active[0].ID != "prj-1" {
		t.Errorf("activeの件数 = %d, want 1 (prj-1)", len(active))
	}

	all, err := service.ListProjects(context.Background(), "user-1", "")
	if err != nil {
		t.Fatalf("ListProjects failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("全件数 = %d, want 3", len(all))
	}
}

// TestListProjects_EmptyReturnsNonNil は0件でも空スライスが返ることを確認する。
func TestListProjects_EmptyReturnsNonNil(t *testing.T) {
	service, _, _ := newProjectTestService()

	projects, err := service.ListProjects(context.Background(), "user-1", "")
	if err != nil {
		t.Fatalf("ListProjects failed: %v", err)
	}
	if projects == nil {
		t.Error("nilではなく空スライスが返るべき")
	}
}

// TestDeleteProject は案件削除でタスクの紐付けだけが外れることを確認する。
func TestDeleteProject(t *testing.T) {
	service, projectRepo, taskRepo := newProjectTestService()
	projectRepo.add(seedProject("prj-1", "user-1", model.ProjectStatusActive))

	projectID := "prj-1"
	linked1 := seedTask("task-1", "user-1", model.TaskStatusOpen, time.Now())
	linked1.ProjectID = &projectID
	linked2 := seedTask("task-2", "user-1", model.TaskStatusDone, time.Now())
	linked2.ProjectID = &projectID
	unrelated := seedTask("task-3", "user-1", model.TaskStatusOpen, time.Now())
	taskRepo.add(linked1)
	taskRepo.add(linked2)
	taskRepo.add(unrelated)

	if err := service.DeleteProject(context.Background(), "user-1", "prj-1"); err != nil {
		t.Fatalf("DeleteProject failed: %v", err)
	}

	if _, ok := projectRepo.projects["prj-1"]; ok {
		t.Error("案件が削除されていない")
	}
	for _, id := range []string{"task-1", "task-2", "task-3"} {
		task, ok := taskRepo.tasks[id]
		if !ok {
			t.Errorf("タスク %s が削除されてしまっている", id)
			continue
		}
		if task.ProjectID != nil {
			t.Errorf("タスク %s のproject_idが解除されていない", id)
		}
	}
}

// TestDeleteProject_NotFound は存在しない案件の削除を確認する。
func TestDeleteProject_NotFound(t *testing.T) {
	service, _, taskRepo := newProjectTestService()

	err := service.DeleteProject(context.Background(), "user-1", "missing")
	assertErrorCode(t, err, model.ErrCodeProjectNotFound)
	if taskRepo.unlinkProjectCalls != 0 {
		t.Errorf("unlinkProjectCalls = %d, want 0", taskRepo.unlinkProjectCalls)
	}
}

// TestDeleteProject_ScopedToUser は他ユーザーの案件が削除できないことを確認する。
func TestDeleteProject_ScopedToUser(t *testing.T) {
	service, projectRepo, _ := newProjectTestService()
	projectRepo.add(seedProject("prj-1", "user-2", model.ProjectStatusActive))

	err := service.DeleteProject(context.Background(), "user-1", "prj-1")
	assertErrorCode(t, err, model.ErrCodeProjectNotFound)
	if _, ok := projectRepo.projects["prj-1"]; !ok {
		t.Error("他ユーザーの案件が削除されてしまっている")
	}
}
