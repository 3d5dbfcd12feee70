package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/renraku/internal/model"
)

// createTaskRequest はタスク作成リクエストのボディ。
type createTaskRequest struct {
	Title     string     `json:"title"`
	Notes     string     `json:"notes"`
	ProjectID string     `json:"project_id"`
	ContactID string     `json:"contact_id"`
	DueAt     *time.Time `json:"due_at"`
}

// updateTaskRequest はタスク更新リクエストのボディ。省略したフィールドは変更しない。
// project_id・contact_idに空文字を渡すと紐付けを解除する。
type updateTaskRequest struct {
	Title     *string    `json:"title"`
	Notes     *string    `json:"notes"`
	ProjectID *string    `json:"project_id"`
	ContactID *string    `json:"contact_id"`
	DueAt     *time.Time `json:"due_at"`
}

// ProjectServiceInterface は案件ハンドラーが必要とするサービスインターフェース。
type ProjectServiceInterface interface {
	// CreateProject は案件を作成する。案件名は必須。
	CreateProject(ctx context.Context, userID, name, description string) (*model.Project, error)
	// UpdateProject は案件を部分更新する。nilのフィールドは変更しない。
	UpdateProject(ctx context.Context, userID, projectID string, name, description *string) (*model.Project, error)
	// CompleteProject は案件を完了にする。
	CompleteProject(ctx context.Context, userID, projectID string) (*model.Project, error)
	// ArchiveProject は案件をアーカイブする。以後の新規タスク追加は拒否される。
	ArchiveProject(ctx context.Context, userID, projectID string) (*model.Project, error)
	// ListProjects は案件一覧を返す。statusが空の場合は全ステータス。
	ListProjects(ctx context.Context, userID string, status model.ProjectStatus) ([]*model.Project, error)
	// DeleteProject は案件を削除する。配下のタスクは残り、紐付けだけが解除される。
	DeleteProject(ctx context.Context, userID, projectID string) error
}

// TaskServiceInterface はタスクハンドラーが必要とするサービスインターフェース。
type TaskServiceInterface interface {
	// CreateTask はタスクを作成する。タイトル必須。
	CreateTask(ctx context.Context, userID string, req createTaskRequest) (*model.Task, error)
	// GetTask はタスクを取得する。見つからない場合はnilを返す。
	GetTask(ctx context.Context, userID, taskID string) (*model.Task, error)
	// UpdateTask はタスクを部分更新する。
	UpdateTask(ctx context.Context, userID, taskID string, req updateTaskRequest) (*model.Task, error)
	// SetTaskStatus はタスクのステータスを変更する。
	// doneへの遷移は完了時刻を記録し、doneからの離脱はそれをクリアする。
	SetTaskStatus(ctx context.Context, userID, taskID string, status model.TaskStatus) (*model.Task, error)
	// DeleteTask はタスクを削除する。
	DeleteTask(ctx context.Context, userID, taskID string) error
	// ListTasks はタスク一覧をフィルタ・ページネーション付きで返す。
	ListTasks(ctx context.Context, userID string, filter model.TaskFilter) (*taskListResult, error)
	// GetMomentum はダッシュボード表示用の活動量サマリーを返す。
	GetMomentum(ctx context.Context, userID string) (*model.MomentumSummary, error)
}

// MomentumHandler は案件・タスク管理のHTTPハンドラー。
type MomentumHandler struct {
	projects ProjectServiceInterface
	tasks    TaskServiceInterface
}

// NewMomentumHandler はMomentumHandlerを生成する。
func NewMomentumHandler(projects ProjectServiceInterface, tasks TaskServiceInterface) *MomentumHandler {
	return &MomentumHandler{
		projects: projects,
		tasks:    tasks,
	}
}

// --- レスポンス型 ---

// projectResponse は案件情報のAPIレスポンス。
type projectResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// taskResponse はタスク情報のAPIレスポンス。
type taskResponse struct {
	ID          string     `json:"id"`
	ProjectID   *string    `json:"project_id,omitempty"`
	ContactID   *string    `json:"contact_id,omitempty"`
	Title       string     `json:"title"`
	Notes       string     `json:"notes,omitempty"`
	Status      string     `json:"status"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// taskListResult はタスク一覧のレスポンス。
type taskListResult struct {
	Tasks      []taskResponse `json:"tasks"`
	NextCursor string         `json:"next_cursor,omitempty"`
	HasMore    bool           `json:"has_more"`
}

// projectProgressResponse は案件ごとのタスク進捗のAPIレスポンス。
type projectProgressResponse struct {
	projectResponse
	OpenCount int `json:"open_count"`
	DoneCount int `json:"done_count"`
}

// momentumResponse は活動量サマリーのAPIレスポンス。
type momentumResponse struct {
	OpenTasks       int                       `json:"open_tasks"`
	InProgressTasks int                       `json:"in_progress_tasks"`
	DoneLast7Days   int                       `json:"done_last_7_days"`
	OverdueTasks    int                       `json:"overdue_tasks"`
	Projects        []projectProgressResponse `json:"projects"`
}

// taskStatusRequest はタスクステータス変更リクエストのボディ。
type taskStatusRequest struct {
	Status string `json:"status"`
}

// --- 案件 ---

// CreateProject は案件を作成する。
// POST /api/projects
func (h *MomentumHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	project, err := h.projects.CreateProject(r.Context(), userID, req.Name, req.Description)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toProjectResponse(project))
}

// ListProjects は案件一覧を取得する。
// GET /api/projects?status=active|completed|archived
func (h *MomentumHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	status := model.ProjectStatus(r.URL.Query().Get("status"))
	switch status {
	case "", model.ProjectStatusActive, model.ProjectStatusCompleted, model.ProjectStatusArchived:
	default:
		invalidQueryParam(w, "statusにはactive、completed、archivedのいずれかを指定してください。")
		return
	}

	projects, err := h.projects.ListProjects(r.Context(), userID, status)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]projectResponse, len(projects))
	for i, project := range projects {
		results[i] = toProjectResponse(project)
	}

	writeJSON(w, http.StatusOK, results)
}

// UpdateProject は案件を更新する。
// PUT /api/projects/:id
func (h *MomentumHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	projectID := chi.URLParam(r, "id")

	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	project, err := h.projects.UpdateProject(r.Context(), userID, projectID, req.Name, req.Description)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProjectResponse(project))
}

// CompleteProject は案件を完了にする。
// POST /api/projects/:id/complete
func (h *MomentumHandler) CompleteProject(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	project, err := h.projects.CompleteProject(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProjectResponse(project))
}

// ArchiveProject は案件をアーカイブする。
// POST /api/projects/:id/archive
func (h *MomentumHandler) ArchiveProject(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	project, err := h.projects.ArchiveProject(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProjectResponse(project))
}

// DeleteProject は案件を削除する。
// DELETE /api/projects/:id
func (h *MomentumHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	if err := h.projects.DeleteProject(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- タスク ---

// CreateTask はタスクを作成する。
// POST /api/tasks
func (h *MomentumHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req createTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	task, err := h.tasks.CreateTask(r.Context(), userID, req)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTaskResponse(task))
}

// ListTasks はタスク一覧を取得する。
// GET /api/tasks?status=&project_id=&contact_id=&due_before=RFC3339&overdue=true&limit=&cursor=
func (h *MomentumHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	filter := model.TaskFilter{
		ProjectID: query.Get("project_id"),
		ContactID: query.Get("contact_id"),
		Cursor:    query.Get("cursor"),
	}

	if statusStr := query.Get("status"); statusStr != "" {
		status := model.TaskStatus(statusStr)
		if !model.IsValidTaskStatus(status) {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidTaskStatusError(statusStr))
			return
		}
		filter.Status = status
	}

	if dueBeforeStr := query.Get("due_before"); dueBeforeStr != "" {
		dueBefore, err := time.Parse(time.RFC3339, dueBeforeStr)
		if err != nil {
			invalidQueryParam(w, "due_beforeにはRFC3339形式の日時を指定してください。")
			return
		}
		filter.DueBefore = &dueBefore
	}

	if overdueStr := query.Get("overdue"); overdueStr != "" {
		overdue, err := strconv.ParseBool(overdueStr)
		if err != nil {
			invalidQueryParam(w, "overdueにはtrueまたはfalseを指定してください。")
			return
		}
		filter.Overdue = overdue
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			invalidQueryParam(w, "limitには数値を指定してください。")
			return
		}
		filter.Limit = limit
	}

	result, err := h.tasks.ListTasks(r.Context(), userID, filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GetTask はタスク詳細を取得する。
// GET /api/tasks/:id
func (h *MomentumHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	taskID := chi.URLParam(r, "id")

	task, err := h.tasks.GetTask(r.Context(), userID, taskID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if task == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewTaskNotFoundError(taskID))
		return
	}

	writeJSON(w, http.StatusOK, toTaskResponse(task))
}

// UpdateTask はタスクを更新する。
// PUT /api/tasks/:id
func (h *MomentumHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	taskID := chi.URLParam(r, "id")

	var req updateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	task, err := h.tasks.UpdateTask(r.Context(), userID, taskID, req)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTaskResponse(task))
}

// SetTaskStatus はタスクのステータスを変更する。
// PUT /api/tasks/:id/status
func (h *MomentumHandler) SetTaskStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	taskID := chi.URLParam(r, "id")

	var req taskStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	task, err := h.tasks.SetTaskStatus(r.Context(), userID, taskID, model.TaskStatus(req.Status))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTaskResponse(task))
}

// DeleteTask はタスクを削除する。
// DELETE /api/tasks/:id
func (h *MomentumHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	if err := h.tasks.DeleteTask(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetMomentum は活動量サマリーを取得する。
// GET /api/momentum
func (h *MomentumHandler) GetMomentum(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	summary, err := h.tasks.GetMomentum(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	projects := make([]projectProgressResponse, len(summary.Projects))
	for i, progress := range summary.Projects {
		project := progress.Project
		projects[i] = projectProgressResponse{
			projectResponse: toProjectResponse(&project),
			OpenCount:       progress.OpenCount,
			DoneCount:       progress.DoneCount,
		}
	}

	writeJSON(w, http.StatusOK, momentumResponse{
		OpenTasks:       summary.OpenTasks,
		InProgressTasks: summary.InProgressTasks,
		DoneLast7Days:   summary.DoneLast7Days,
		OverdueTasks:    summary.OverdueTasks,
		Projects:        projects,
	})
}

// --- ヘルパー関数 ---

// toProjectResponse はmodel.ProjectからAPIレスポンスに変換する。
func toProjectResponse(project *model.Project) projectResponse {
	return projectResponse{
		ID:          project.ID,
		Name:        project.Name,
		Description: project.Description,
		Status:      string(project.Status),
		CreatedAt:   project.CreatedAt,
		UpdatedAt:   project.UpdatedAt,
	}
}

// toTaskResponse はmodel.TaskからAPIレスポンスに変換する。
func toTaskResponse(task *model.Task) taskResponse {
	return taskResponse{
		ID:          task.ID,
		ProjectID:   task.ProjectID,
		ContactID:   task.ContactID,
		Title:       task.Title,
		Notes:       task.Notes,
		Status:      string(task.Status),
		DueAt:       task.DueAt,
		CompletedAt: task.CompletedAt,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
}
