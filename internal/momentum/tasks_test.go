package momentum

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/hitoshi/renraku/internal/model"
)

// --- TaskService テスト用モック ---

// mockTaskRepo はテスト用のTaskRepositoryモック。
type mockTaskRepo struct {
	tasks              map[string]*model.Task
	order              []string
	createCalls        int
	updateCalls        int
	findCalls          int
	unlinkProjectCalls int
	lastListFilter     model.TaskFilter
}

func newMockTaskRepo() *mockTaskRepo {
	return &mockTaskRepo{tasks: make(map[string]*model.Task)}
}

func (m *mockTaskRepo) add(task *model.Task) {
	m.tasks[task.ID] = task
	m.order = append(m.order, task.ID)
}

func (m *mockTaskRepo) FindByID(_ context.Context, userID, id string) (*model.Task, error) {
	m.findCalls++
	t, ok := m.tasks[id]
	if !ok || t.UserID != userID {
		return nil, nil
	}
	return t, nil
}

func (m *mockTaskRepo) Create(_ context.Context, task *model.Task) error {
	m.createCalls++
	m.add(task)
	return nil
}

func (m *mockTaskRepo) Update(_ context.Context, task *model.Task) error {
	m.updateCalls++
	m.tasks[task.ID] = task
	return nil
}

func (m *mockTaskRepo) List(_ context.Context, userID string, filter model.TaskFilter) ([]*model.Task, error) {
	m.lastListFilter = filter
	now := time.Now()

	var all []*model.Task
	for _, id := range m.order {
		t, ok := m.tasks[id]
		if !ok || t.UserID != userID {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.ProjectID != "" && (t.ProjectID == nil || *t.ProjectID != filter.ProjectID) {
			continue
		}
		if filter.ContactID != "" && (t.ContactID == nil || *t.ContactID != filter.ContactID) {
			continue
		}
		if filter.DueBefore != nil && (t.DueAt == nil || !t.DueAt.Before(*filter.DueBefore)) {
			continue
		}
		if filter.Overdue && !t.IsOverdue(now) {
			continue
		}
		all = append(all, t)
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if filter.Cursor != "" {
		next := -1
		for i, t := range all {
			if t.ID == filter.Cursor {
				next = i + 1
				break
			}
		}
		if next >= 0 {
			all = all[next:]
		}
	}
	if filter.Limit > 0 && len(all) > filter.Limit {
		all = all[:filter.Limit]
	}
	return all, nil
}

func (m *mockTaskRepo) CountByStatus(_ context.Context, userID string) (map[model.TaskStatus]int, error) {
	counts := make(map[model.TaskStatus]int)
	for _, t := range m.tasks {
		if t.UserID == userID {
			counts[t.Status]++
		}
	}
	return counts, nil
}

func (m *mockTaskRepo) CountDoneSince(_ context.Context, userID string, since time.Time) (int, error) {
	count := 0
	for _, t := range m.tasks {
		if t.UserID != userID || t.Status != model.TaskStatusDone || t.CompletedAt == nil {
			continue
		}
		if !t.CompletedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *mockTaskRepo) CountOverdue(_ context.Context, userID string, now time.Time) (int, error) {
	count := 0
	for _, t := range m.tasks {
		if t.UserID == userID && t.IsOverdue(now) {
			count++
		}
	}
	return count, nil
}

func (m *mockTaskRepo) UnlinkProject(_ context.Context, userID, projectID string) (int64, error) {
	m.unlinkProjectCalls++
	var unlinked int64
	for _, t := range m.tasks {
		if t.UserID == userID && t.ProjectID != nil && *t.ProjectID == projectID {
			t.ProjectID = nil
			unlinked++
		}
	}
	return unlinked, nil
}

func (m *mockTaskRepo) UnlinkContact(_ context.Context, userID, contactID string) (int64, error) {
	var unlinked int64
	for _, t := range m.tasks {
		if t.UserID == userID && t.ContactID != nil && *t.ContactID == contactID {
			t.ContactID = nil
			unlinked++
		}
	}
	return unlinked, nil
}

func (m *mockTaskRepo) ReassignContact(_ context.Context, userID, fromContactID, toContactID string) (int64, error) {
	var moved int64
	for _, t := range m.tasks {
		if t.UserID == userID && t.ContactID != nil && *t.ContactID == fromContactID {
			to := toContactID
			t.ContactID = &to
			moved++
		}
	}
	return moved, nil
}

func (m *mockTaskRepo) Delete(_ context.Context, userID, id string) (int64, error) {
	t, ok := m.tasks[id]
	if !ok || t.UserID != userID {
		return 0, nil
	}
	delete(m.tasks, id)
	return 1, nil
}

func (m *mockTaskRepo) DeleteByUserID(_ context.Context, userID string) error {
	for id, t := range m.tasks {
		if t.UserID == userID {
			delete(m.tasks, id)
		}
	}
	return nil
}

// mockContactFinder はテスト用のContactFinderモック。
type mockContactFinder struct {
	contacts map[string]*model.Contact
}

func newMockContactFinder() *mockContactFinder {
	return &mockContactFinder{contacts: make(map[string]*model.Contact)}
}

func (m *mockContactFinder) add(contact *model.Contact) {
	m.contacts[contact.ID] = contact
}

func (m *mockContactFinder) FindByID(_ context.Context, userID, id string) (*model.Contact, error) {
	c, ok := m.contacts[id]
	if !ok || c.UserID != userID {
		return nil, nil
	}
	return c, nil
}

// mockSanitizer はサニタイズの呼び出しを可視化するモック。
type mockSanitizer struct{}

func (m *mockSanitizer) Sanitize(rawHTML string) string {
	return "sanitized(" + rawHTML + ")"
}

// seedTask はテスト用のタスクを生成する。
func seedTask(id, userID string, status model.TaskStatus, createdAt time.Time) *model.Task {
	return &model.Task{
		ID:        id,
		UserID:    userID,
		Title:     "タスク " + id,
		Status:    status,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

// taskMocks はTaskServiceテストの依存一式。
type taskMocks struct {
	tasks    *mockTaskRepo
	projects *mockProjectRepo
	contacts *mockContactFinder
}

func newTaskTestService() (*TaskService, *taskMocks) {
	m := &taskMocks{
		tasks:    newMockTaskRepo(),
		projects: newMockProjectRepo(),
		contacts: newMockContactFinder(),
	}
	service := NewTaskService(m.tasks, m.projects, m.contacts, &mockSanitizer{})
	return service, m
}

// assertErrorCode はAPIErrorのエラーコードを検証するテストヘルパー。
func assertErrorCode(t *testing.T, err error, wantCode string) {
	t.Helper()
	if err == nil {
		t.Fatalf("エラーが期待されるがnilが返された (want %s)", wantCode)
	}
	apiErr, ok := err.(*model.APIError)
	if !ok {
		t.Fatalf("APIError型が期待されるが、%T が返された: %v", err, err)
	}
	if apiErr.Code != wantCode {
		t.Errorf("エラーコード = %q, want %q", apiErr.Code, wantCode)
	}
}

// TestCreateTask はタスク作成の基本動作を確認する。
func TestCreateTask(t *testing.T) {
	service, mocks := newTaskTestService()
	mocks.projects.add(seedProject("prj-1", "user-1", model.ProjectStatusActive))
	mocks.contacts.add(&model.Contact{ID: "con-1", UserID: "user-1", FirstName: "花子"})

	due := time.Now().Add(48 * time.Hour)
	task, err := service.CreateTask(context.Background(), "user-1", CreateTaskInput{
		Title:     "  見積書の送付  ",
		Notes:     "<p>宛先を確認</p>",
		ProjectID: "prj-1",
		ContactID: "con-1",
		DueAt:     &due,
	})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	if task.ID == "" {
		t.Error("IDが生成されていない")
	}
	if task.Title != "見積書の送付" {
		t.Errorf("Title = %q, want %q", task.Title, "見積書の送付")
	}
	if task.Notes != "sanitized(<p>宛先を確認</p>)" {
		t.Errorf("Notes = %q, サニタイズされていない", task.Notes)
	}
	if task.Status != model.TaskStatusOpen {
		t.Errorf("Status = %q, want %q", task.Status, model.TaskStatusOpen)
	}
	if task.ProjectID == nil || *task.ProjectID != "prj-1" {
		t.Error("案件への紐付けが設定されていない")
	}
	if task.ContactID == nil || *task.ContactID != "con-1" {
		t.Error("連絡先への紐付けが設定されていない")
	}
	if task.DueAt == nil || !task.DueAt.Equal(due) {
		t.Error("期限が設定されていない")
	}
	if mocks.tasks.createCalls != 1 {
		t.Errorf("createCalls = %d, want 1", mocks.tasks.createCalls)
	}
}

// TestCreateTask_EmptyTitle はタイトルなしの作成が拒否されることを確認する。
func TestCreateTask_EmptyTitle(t *testing.T) {
	service, mocks := newTaskTestService()

	for _, title := range []string{"", "   "} {
		_, err := service.CreateTask(context.Background(), "user-1", CreateTaskInput{Title: title})
		assertErrorCode(t, err, model.ErrCodeInvalidTaskTitle)
	}
	if mocks.tasks.createCalls != 0 {
		t.Errorf("createCalls = %d, want 0", mocks.tasks.createCalls)
	}
}

// TestCreateTask_WithoutLinks は紐付けなしのタスク作成を確認する。
func TestCreateTask_WithoutLinks(t *testing.T) {
	service, _ := newTaskTestService()

	task, err := service.CreateTask(context.Background(), "user-1", CreateTaskInput{Title: "買い出し"})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if task.ProjectID != nil {
		t.Error("ProjectIDはnilであるべき")
	}
	if task.ContactID != nil {
		t.Error("ContactIDはnilであるべき")
	}
	if task.DueAt != nil {
		t.Error("DueAtはnilであるべき")
	}
}

// TestCreateTask_ProjectNotFound は存在しない案件への紐付けを確認する。
func TestCreateTask_ProjectNotFound(t *testing.T) {
	service, mocks := newTaskTestService()

	_, err := service.CreateTask(context.Background(), "user-1", CreateTaskInput{
		Title:     "準備",
		ProjectID: "missing",
	})
	assertErrorCode(t, err, model.ErrCodeProjectNotFound)
	if mocks.tasks.createCalls != 0 {
		t.Errorf("createCalls = %d, want 0", mocks.tasks.createCalls)
	}
}

// TestCreateTask_ArchivedProject はアーカイブ済み案件への紐付けが
// 拒否されることを確認する。
func TestCreateTask_ArchivedProject(t *testing.T) {
	service, mocks := newTaskTestService()
	mocks.projects.add(seedProject("prj-1", "user-1", model.ProjectStatusArchived))

	_, err := service.CreateTask(context.Background(), "user-1", CreateTaskInput{
		Title:     "準備",
		ProjectID: "prj-1",
	})
	assertErrorCode(t, err, model.ErrCodeProjectArchived)
	if mocks.tasks.createCalls != 0 {
		t.Errorf("createCalls = %d, want 0", mocks.tasks.createCalls)
	}
}

// TestCreateTask_ContactNotFound は存在しない連絡先への紐付けを確認する。
func TestCreateTask_ContactNotFound(t *testing.T) {
	service, _ := newTaskTestService()

	_, err := service.CreateTask(context.Background(), "user-1", CreateTaskInput{
		Title:     "準備",
		ContactID: "missing",
	})
	assertErrorCode(t, err, model.ErrCodeContactNotFound)
}

// TestCreateTask_ProjectScopedToUser は他ユーザーの案件に紐付けできないことを確認する。
func TestCreateTask_ProjectScopedToUser(t *testing.T) {
	service, mocks := newTaskTestService()
	mocks.projects.add(seedProject("prj-1", "user-2", model.ProjectStatusActive))

	_, err := service.CreateTask(context.Background(), "user-1", CreateTaskInput{
		Title:     "準備",
		ProjectID: "prj-1",
	})
	assertErrorCode(t, err, model.ErrCodeProjectNotFound)
}

// TestGetTask_ScopedToUser は他ユーザーのタスクが見えないことを確認する。
func TestGetTask_ScopedToUser(t *testing.T) {
	service, mocks := newTaskTestService()
	mocks.tasks.add(seedTask("task-1", "user-2", model.TaskStatusOpen, time.Now()))

	task, err := service.GetTask(context.Background(), "user-1", "task-1")
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if task != nil {
		t.Error("他ユーザーのタスクが取得できてしまっている")
	}
}

// TestUpdateTask_PartialFields は指定フィールドのみ更新されることを確認する。
func TestUpdateTask_PartialFields(t *testing.T) {
	service, mocks := newTaskTestService()
	mocks.tasks.add(seedTask("task-1", "user-1", model.TaskStatusOpen, time.Now()))

	notes := "<p>追記</p>"
	task, err := service.UpdateTask(context.Background(), "user-1", "task-1", UpdateTaskInput{
		Notes: &notes,
	})
	if err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}

	if task.Title != "タスク task-1" {
		t.Errorf("Title = %q, 変更されていないはず", task.Title)
	}
	if task.Notes != "sanitized(<p>追記</p>)" {
		t.Errorf("Notes = %q, サニタイズされていない", task.Notes)
	}
	if mocks.tasks.updateCalls != 1 {
		t.Errorf("updateCalls = %d, want 1", mocks.tasks.updateCalls)
	}
}

// TestUpdateTask_RelinkProject は案件への付け替えを確認する。
func TestUpdateTask_RelinkProject(t *testing.T) {
	service, mocks := newTaskTestService()
	mocks.projects.add(seedProject("prj-1", "user-1", model.ProjectStatusActive))
	mocks.tasks.add(seedTask("task-1", "user-1", model.TaskStatusOpen, time.Now()))

	projectID := "prj-1"
	task, err := service.UpdateTask(context.Background(), "user-1", "task-1", UpdateTaskInput{
		ProjectID: &projectID,
	})
	if err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}
	if task.ProjectID == nil || *task.ProjectID != "prj-1" {
		t.Error("案件への紐付けが設定されていない")
	}
}

// TestUpdateTask_ClearProjectLink は空文字指定で紐付けが解除されることを確認する。
func TestUpdateTask_ClearProjectLink(t *testing.T) {
	service, mocks := newTaskTestService()
	projectID := "prj-1"
	task := seedTask("task-1", "user-1", model.TaskStatusOpen, time.Now())
	task.ProjectID = &projectID
	mocks.tasks.add(task)

	empty := ""
	updated, err := service.UpdateTask(context.Background(), "user-1", "task-1", UpdateTaskInput{
		ProjectID: &empty,
	})
	if err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}
	if updated.ProjectID != nil {
		t.Error("案件への紐付けが解除されていない")
	}
}

// TestUpdateTask_ArchivedProjectRejected はアーカイブ済み案件への
// 付け替えが拒否されることを確認する。
func TestUpdateTask_ArchivedProjectRejected(t *testing.T) {
	service, mocks := newTaskTestService()
	mocks.projects.add(seedProject("prj-1", "user-1", model.ProjectStatusArchived))
	mocks.tasks.add(seedTask("task-1", "user-1", model.TaskStatusOpen, time.Now()))

	projectID := "prj-1"
	_, err := service.UpdateTask(context.Background(), "user-1", "task-1", UpdateTaskInput{
		ProjectID: &projectID,
	})
	assertErrorCode(t, err, model.ErrCodeProjectArchived)
	if mocks.tasks.updateCalls != 0 {
		t.Errorf("updateCalls = %d, want 0", mocks.tasks.updateCalls)
	}
}

// TestUpdateTask_CannotClearTitle はタイトルを空にする更新が拒否されることを確認する。
func TestUpdateTask_CannotClearTitle(t *testing.T) {
	service, mocks := newTaskTestService()
	mocks.tasks.add(seedTask("task-1", "user-1", model.TaskStatusOpen, time.Now()))

	blank := "   "
	_, err := service.UpdateTask(context.Background(), "user-1", "task-1", UpdateTaskInput{Title: &blank})
	assertErrorCode(t, err, model.ErrCodeInvalidTaskTitle)
	if mocks.tasks.updateCalls != 0 {
		t.Errorf("updateCalls = %d, want 0", mocks.tasks.updateCalls)
	}
}

// TestUpdateTask_NotFound は存在しないタスクの更新を確認する。
func TestUpdateTask_NotFound(t *testing.T) {
	service, _ := newTaskTestService()

	title := "新タイトル"
	_, err := service.UpdateTask(context.Background(), "user-1", "missing", UpdateTaskInput{Title: &title})
	assertErrorCode(t, err, model.ErrCodeTaskNotFound)
}

// TestSetTaskStatus_DoneStampsCompletedAt はdoneへの遷移で
// 完了時刻が記録されることを確認する。
func TestSetTaskStatus_DoneStampsCompletedAt(t *testing.T) {
	service, mocks := newTaskTestService()
	mocks.tasks.add(seedTask("task-1", "user-1", model.TaskStatusInProgress, time.Now()))

	before := time.Now()
	task, err := service.SetTaskStatus(context.Background(), "user-1", "task-1", model.TaskStatusDone)
	if err != nil {
		t.Fatalf("SetTaskStatus failed: %v", err)
	}

	if task.Status != model.TaskStatusDone {
		t.Errorf("Status = %q, want %q", task.Status, model.TaskStatusDone)
	}
	if task.CompletedAt == nil {
		t.Fatal("CompletedAtが記録されていない")
	}
	if task.CompletedAt.Before(before) || task.CompletedAt.After(time.Now().Add(time.Second)) {
		t.Errorf("CompletedAt = %v, 現在時刻前後であるべき", task.CompletedAt)
	}
}

// TestSetTaskStatus_LeavingDoneClearsCompletedAt はdoneから離れる遷移で
// 完了時刻がクリアされることを確認する。
func TestSetTaskStatus_LeavingDoneClearsCompletedAt(t *testing.T) {
	service, mocks := newTaskTestService()
	completedAt := time.Now().Add(-time.Hour)
	task := seedTask("task-1", "user-1", model.TaskStatusDone, time.Now().Add(-2*time.Hour))
	task.CompletedAt = &completedAt
	mocks.tasks.add(task)

	updated, err := service.SetTaskStatus(context.Background(), "user-1", "task-1", model.TaskStatusInProgress)
	if err != nil {
		t.Fatalf("SetTaskStatus failed: %v", err)
	}
	if updated.Status != model.TaskStatusInProgress {
		t.Errorf("Status = %q, want %q", updated.Status, model.TaskStatusInProgress)
	}
	if updated.CompletedAt != nil {
		t.Error("CompletedAtがクリアされていない")
	}
}

// TestSetTaskStatus_DoneTwiceKeepsTimestamp はdoneのタスクを再度doneにしても
// 完了時刻が変わらないことを確認する。
func TestSetTaskStatus_DoneTwiceKeepsTimestamp(t *testing.T) {
	service, mocks := newTaskTestService()
	completedAt := time.Now().Add(-time.Hour)
	task := seedTask("task-1", "user-1", model.TaskStatusDone, time.Now().Add(-2*time.Hour))
	task.CompletedAt = &completedAt
	mocks.tasks.add(task)

	updated, err := service.SetTaskStatus(context.Background(), "user-1", "task-1", model.TaskStatusDone)
	if err != nil {
		t.Fatalf("SetTaskStatus failed: %v", err)
	}
	if updated.CompletedAt == nil || !updated.CompletedAt.Equal(completedAt) {
		t.Error("完了時刻が上書きされてしまっている")
	}
}

// TestSetTaskStatus_InvalidStatus は未定義ステータスが拒否されることを確認する。
func TestSetTaskStatus_InvalidStatus(t *testing.T) {
	service, mocks := newTaskTestService()
	mocks.tasks.add(seedTask("task-1", "user-1", model.TaskStatusOpen, time.Now()))

	_, err := service.SetTaskStatus(context.Background(), "user-1", "task-1", model.TaskStatus("cancelled"))
	assertErrorCode(t, err, model.ErrCodeInvalidTaskStatus)
	if mocks.tasks.findCalls != 0 {
		t.Errorf("findCalls = %d, ステータス検証は取得前に行われるべき", mocks.tasks.findCalls)
	}
}

// TestSetTaskStatus_NotFound は存在しないタスクのステータス変更を確認する。
func TestSetTaskStatus_NotFound(t *testing.T) {
	service, _ := newTaskTestService()

	_, err := service.SetTaskStatus(context.Background(), "user-1", "missing", model.TaskStatusDone)
	assertErrorCode(t, err, model.ErrCodeTaskNotFound)
}

// TestDeleteTask はタスク削除を確認する。
func TestDeleteTask(t *testing.T) {
	service, mocks := newTaskTestService()
	mocks.tasks.add(seedTask("task-1", "user-1", model.TaskStatusOpen, time.Now()))

	if err := service.DeleteTask(context.Background(), "user-1", "task-1"); err != nil {
		t.Fatalf("DeleteTask failed: %v", err)
	}
	if _, ok := mocks.tasks.tasks["task-1"]; ok {
		t.Error("タスクが削除されていない")
	}
}

// TestDeleteTask_NotFound は存在しないタスクの削除を確認する。
func TestDeleteTask_NotFound(t *testing.T) {
	service, _ := newTaskTestService()

	err := service.DeleteTask(context.Background(), "user-1", "missing")
	assertErrorCode(t, err, model.ErrCodeTaskNotFound)
}

// TestDeleteTask_ScopedToUser は他ユーザーのタスクが削除できないことを確認する。
func TestDeleteTask_ScopedToUser(t *testing.T) {
	service, mocks := newTaskTestService()
	mocks.tasks.add(seedTask("task-1", "user-2", model.TaskStatusOpen, time.Now()))

	err := service.DeleteTask(context.Background(), "user-1", "task-1")
	assertErrorCode(t, err, model.ErrCodeTaskNotFound)
	if _, ok := mocks.tasks.tasks["task-1"]; !ok {
		t.Error("他ユーザーのタスクが削除されてしまっている")
	}
}

// TestListTasks_DefaultLimit は未指定時のデフォルト件数+1でリポジトリが
// 呼ばれることを確認する。
func TestListTasks_DefaultLimit(t *testing.T) {
	service, mocks := newTaskTestService()

	if _, err := service.ListTasks(context.Background(), "user-1", model.TaskFilter{}); err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if mocks.tasks.lastListFilter.Limit != defaultTaskListLimit+1 {
		t.Errorf("リポジトリに渡されたLimit = %d, want %d", mocks.tasks.lastListFilter.Limit, defaultTaskListLimit+1)
	}
}

// TestListTasks_ClampsLimit は上限を超えた件数指定がクランプされることを確認する。
func TestListTasks_ClampsLimit(t *testing.T) {
	service, mocks := newTaskTestService()

	if _, err := service.ListTasks(context.Background(), "user-1", model.TaskFilter{Limit: 500}); err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if mocks.tasks.lastListFilter.Limit != maxTaskListLimit+1 {
		t.Errorf("リポジトリに渡されたLimit = %d, want %d", mocks.tasks.lastListFilter.Limit, maxTaskListLimit+1)
	}
}

// TestListTasks_Pagination はカーソルページネーションの動作を確認する。
func TestListTasks_Pagination(t *testing.T) {
	service, mocks := newTaskTestService()
	base := time.Now()
	mocks.tasks.add(seedTask("task-1", "user-1", model.TaskStatusOpen, base.Add(-3*time.Hour)))
	mocks.tasks.add(seedTask("task-2", "user-1", model.TaskStatusOpen, base.Add(-2*time.Hour)))
	mocks.tasks.add(seedTask("task-3", "user-1", model.TaskStatusOpen, base.Add(-time.Hour)))

	// 1ページ目: 新しい順に2件
	first, err := service.ListTasks(context.Background(), "user-1", model.TaskFilter{Limit: 2})
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(first.Tasks) != 2 {
		t.Fatalf("1ページ目の件数 = %d, want 2", len(first.Tasks))
	}
	if first.Tasks[0].ID != "task-3" || first.Tasks[1].ID != "task-2" {
		t.Errorf("並び順 = [%s, %s], want [task-3, task-2]", first.Tasks[0].ID, first.Tasks[1].ID)
	}
	if !first.HasMore {
		t.Error("HasMore = false, want true")
	}
	if first.NextCursor != "task-2" {
		t.Errorf("NextCursor = %q, want %q", first.NextCursor, "task-2")
	}

	// 2ページ目: 残り1件
	second, err := service.ListTasks(context.Background(), "user-1", model.TaskFilter{Limit: 2, Cursor: first.NextCursor})
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(second.Tasks) != 1 || second.Tasks[0].ID != "task-1" {
		t.Fatalf("2ページ目の件数 = %d, want 1 (task-1)", len(second.Tasks))
	}
	if second.HasMore {
		t.Error("HasMore = true, want false")
	}
	if second.NextCursor != "" {
		t.Errorf("NextCursor = %q, want empty", second.NextCursor)
	}
}

// TestListTasks_StatusFilter はステータスによる絞り込みを確認する。
func TestListTasks_StatusFilter(t *testing.T) {
	service, mocks := newTaskTestService()
	mocks.tasks.add(seedTask("task-1", "user-1", model.TaskStatusOpen, time.Now()))
	mocks.tasks.add(seedTask("task-2", "user-1", model.TaskStatusDone, time.Now()))

	result, err := service.ListTasks(context.Background(), "user-1", model.TaskFilter{Status: model.TaskStatusDone})
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(result.Tasks) != 1 || result.Tasks[0].ID != "task-2" {
		t.Errorf("絞り込み結果の件数 = %d, want 1 (task-2)", len(result.Tasks))
	}
}

// TestListTasks_OverdueFilter は期限切れのみの絞り込みを確認する。
func TestListTasks_OverdueFilter(t *testing.T) {
	service, mocks := newTaskTestService()
	yesterday := time.Now().Add(-24 * time.Hour)
	tomorrow := time.Now().Add(24 * time.Hour)

	overdue := seedTask("task-1", "user-1", model.TaskStatusOpen, time.Now())
	overdue.DueAt = &yesterday
	upcoming := seedTask("task-2", "user-1", model.TaskStatusOpen, time.Now())
	upcoming.DueAt = &tomorrow
	doneLate := seedTask("task-3", "user-1", model.TaskStatusDone, time.Now())
	doneLate.DueAt = &yesterday
	mocks.tasks.add(overdue)
	mocks.tasks.add(upcoming)
	mocks.tasks.add(doneLate)

	result, err := service.ListTasks(context.Background(), "user-1", model.TaskFilter{Overdue: true})
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(result.Tasks) != 1 || result.Tasks[0].ID != "task-1" {
		t.Errorf("期限切れの件数 = %d, want 1 (task-1)", len(result.Tasks))
	}
}

// TestListTasks_DueBeforeFilter は期限による絞り込みを確認する。
func TestListTasks_DueBeforeFilter(t *testing.T) {
	service, mocks := newTaskTestService()
	soon := time.Now().Add(12 * time.Hour)
	later := time.Now().Add(72 * time.Hour)

	urgent := seedTask("task-1", "user-1", model.TaskStatusOpen, time.Now())
	urgent.DueAt = &soon
	relaxed := seedTask("task-2", "user-1", model.TaskStatusOpen, time.Now())
	relaxed.DueAt = &later
	noDue := seedTask("task-3", "user-1", model.TaskStatusOpen, time.Now())
	mocks.tasks.add(urgent)
	mocks.tasks.add(relaxed)
	mocks.tasks.add(noDue)

	cutoff := time.Now().Add(24 * time.Hour)
	result, err := service.ListTasks(context.Background(), "user-1", model.TaskFilter{DueBefore: &cutoff})
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(result.Tasks) != 1 || result.Tasks[0].ID != "task-1" {
		t.Errorf("期限絞り込みの件数 = %d, want 1 (task-1)", len(result.Tasks))
	}
}

// TestGetMomentum は活動量サマリーの集計を確認する。
func TestGetMomentum(t *testing.T) {
	service, mocks := newTaskTestService()
	now := time.Now()

	mocks.tasks.add(seedTask("task-1", "user-1", model.TaskStatusOpen, now))
	mocks.tasks.add(seedTask("task-2", "user-1", model.TaskStatusOpen, now))
	mocks.tasks.add(seedTask("task-3", "user-1", model.TaskStatusInProgress, now))

	recentDone := seedTask("task-4", "user-1", model.TaskStatusDone, now)
	recentAt := now.Add(-48 * time.Hour)
	recentDone.CompletedAt = &recentAt
	mocks.tasks.add(recentDone)

	oldDone := seedTask("task-5", "user-1", model.TaskStatusDone, now)
	oldAt := now.Add(-9 * 24 * time.Hour)
	oldDone.CompletedAt = &oldAt
	mocks.tasks.add(oldDone)

	overdueTask := seedTask("task-6", "user-1", model.TaskStatusOpen, now)
	pastDue := now.Add(-24 * time.Hour)
	overdueTask.DueAt = &pastDue
	mocks.tasks.add(overdueTask)

	// 他ユーザーのタスクは集計に入らない
	mocks.tasks.add(seedTask("task-7", "user-2", model.TaskStatusOpen, now))

	mocks.projects.progress = []model.ProjectProgress{
		{Project: *seedProject("prj-1", "user-1", model.ProjectStatusActive), OpenCount: 2, DoneCount: 1},
	}

	summary, err := service.GetMomentum(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetMomentum failed: %v", err)
	}

	if summary.OpenTasks != 3 {
		t.Errorf("OpenTasks = %d, want 3", summary.OpenTasks)
	}
	if summary.InProgressTasks != 1 {
		t.Errorf("InProgressTasks = %d, want 1", summary.InProgressTasks)
	}
	if summary.DoneLast7Days != 1 {
		t.Errorf("DoneLast7Days = %d, want 1", summary.DoneLast7Days)
	}
	if summary.OverdueTasks != 1 {
		t.Errorf("OverdueTasks = %d, want 1", summary.OverdueTasks)
	}
	if len(summary.Projects) != 1 || summary.Projects[0].OpenCount != 2 {
		t.Errorf("Projects = %+v, 案件進捗が含まれるべき", summary.Projects)
	}
}

// TestGetMomentum_EmptyState はタスクゼロでも空のサマリーが返ることを確認する。
func TestGetMomentum_EmptyState(t *testing.T) {
	service, _ := newTaskTestService()

	summary, err := service.GetMomentum(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetMomentum failed: %v", err)
	}
	if summary.OpenTasks != 0 || summary.InProgressTasks != 0 || summary.DoneLast7Days != 0 || summary.OverdueTasks != 0 {
		t.Errorf("空状態のサマリー = %+v, 全て0であるべき", summary)
	}
	if summary.Projects == nil {
		t.Error("Projectsはnilではなく空スライスであるべき")
	}
}
