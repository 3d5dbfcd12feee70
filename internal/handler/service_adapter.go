package handler

import (
	"context"
	"time"

	"github.com/hitoshi/renraku/internal/availability"
	"github.com/hitoshi/renraku/internal/calendar"
	"github.com/hitoshi/renraku/internal/consent"
	"github.com/hitoshi/renraku/internal/contact"
	"github.com/hitoshi/renraku/internal/identity"
	"github.com/hitoshi/renraku/internal/model"
	"github.com/hitoshi/renraku/internal/momentum"
	"github.com/hitoshi/renraku/internal/tag"
	"github.com/hitoshi/renraku/internal/user"
)

// ContactServiceAdapter は contact.Service を ContactServiceInterface に適合させるアダプタ。
type ContactServiceAdapter struct {
	svc *contact.Service
}

// NewContactServiceAdapter はContactServiceAdapterを生成する。
func NewContactServiceAdapter(svc *contact.Service) *ContactServiceAdapter {
	return &ContactServiceAdapter{svc: svc}
}

// CreateContact は連絡先を作成する。
func (a *ContactServiceAdapter) CreateContact(ctx context.Context, userID, firstName, lastName, company, notes string) (*model.Contact, error) {
	return a.svc.CreateContact(ctx, userID, contact.CreateContactInput{
		FirstName: firstName,
		LastName:  lastName,
		Company:   company,
		Notes:     notes,
	})
}

// GetContact は連絡先を取得する。
func (a *ContactServiceAdapter) GetContact(ctx context.Context, userID, contactID string) (*model.Contact, error) {
	return a.svc.GetContact(ctx, userID, contactID)
}

// UpdateContact は連絡先を部分更新する。
func (a *ContactServiceAdapter) UpdateContact(ctx context.Context, userID, contactID string, firstName, lastName, company, notes *string) (*model.Contact, error) {
	return a.svc.UpdateContact(ctx, userID, contactID, contact.UpdateContactInput{
		FirstName: firstName,
		LastName:  lastName,
		Company:   company,
		Notes:     notes,
	})
}

// ArchiveContact は連絡先をアーカイブする。
func (a *ContactServiceAdapter) ArchiveContact(ctx context.Context, userID, contactID string) (*model.Contact, error) {
	return a.svc.ArchiveContact(ctx, userID, contactID)
}

// UnarchiveContact は連絡先のアーカイブを解除する。
func (a *ContactServiceAdapter) UnarchiveContact(ctx context.Context, userID, contactID string) (*model.Contact, error) {
	return a.svc.UnarchiveContact(ctx, userID, contactID)
}

// ListContacts は連絡先一覧をhandlerレスポンス型で返す。
func (a *ContactServiceAdapter) ListContacts(ctx context.Context, userID string, filter model.ContactFilter) (*contactListResult, error) {
	result, err := a.svc.ListContacts(ctx, userID, filter)
	if err != nil {
		return nil, err
	}
	return toContactListResult(result.Contacts, result.NextCursor, result.HasMore), nil
}

// DeleteContact は連絡先を削除する。
func (a *ContactServiceAdapter) DeleteContact(ctx context.Context, userID, contactID string) error {
	return a.svc.DeleteContact(ctx, userID, contactID)
}

// MergeContacts は重複した連絡先を統合する。
func (a *ContactServiceAdapter) MergeContacts(ctx context.Context, userID, fromContactID, toContactID string) (*model.Contact, error) {
	return a.svc.MergeContacts(ctx, userID, fromContactID, toContactID)
}

// IdentityServiceAdapter は identity.Resolver を IdentityServiceInterface に適合させるアダプタ。
type IdentityServiceAdapter struct {
	svc *identity.Resolver
}

// NewIdentityServiceAdapter はIdentityServiceAdapterを生成する。
func NewIdentityServiceAdapter(svc *identity.Resolver) *IdentityServiceAdapter {
	return &IdentityServiceAdapter{svc: svc}
}

// AddEmail はメールアドレス識別子を追加する。
func (a *IdentityServiceAdapter) AddEmail(ctx context.Context, userID, contactID, raw string) (*model.Identity, error) {
	return a.svc.AddEmail(ctx, userID, contactID, raw)
}

// AddPhone は電話番号識別子を追加する。
func (a *IdentityServiceAdapter) AddPhone(ctx context.Context, userID, contactID, raw string) (*model.Identity, error) {
	return a.svc.AddPhone(ctx, userID, contactID, raw)
}

// AddHandle はSNSハンドル識別子を追加する。
func (a *IdentityServiceAdapter) AddHandle(ctx context.Context, userID, contactID, provider, raw string) (*model.Identity, error) {
	return a.svc.AddHandle(ctx, userID, contactID, provider, raw)
}

// AddProviderID は外部サービス発行のID識別子を追加する。
func (a *IdentityServiceAdapter) AddProviderID(ctx context.Context, userID, contactID, provider, id string) (*model.Identity, error) {
	return a.svc.AddProviderID(ctx, userID, contactID, provider, id)
}

// GetContactIdentities は連絡先の識別子一覧を返す。
func (a *IdentityServiceAdapter) GetContactIdentities(ctx context.Context, userID, contactID string) ([]*model.Identity, error) {
	return a.svc.GetContactIdentities(ctx, userID, contactID)
}

// RemoveIdentity は識別子を削除する。
func (a *IdentityServiceAdapter) RemoveIdentity(ctx context.Context, userID, identityID string) error {
	return a.svc.RemoveIdentity(ctx, userID, identityID)
}

// Resolve は識別子から連絡先を解決する。
func (a *IdentityServiceAdapter) Resolve(ctx context.Context, userID, email, phone, handle, providerID, provider string) (*string, error) {
	return a.svc.Resolve(ctx, userID, identity.ResolveQuery{
		Email:      email,
		Phone:      phone,
		Handle:     handle,
		ProviderID: providerID,
		Provider:   provider,
	})
}

// FindDuplicateIdentities は複数の連絡先に共有される識別子グループを返す。
func (a *IdentityServiceAdapter) FindDuplicateIdentities(ctx context.Context, userID string) ([]model.DuplicateGroup, error) {
	return a.svc.FindDuplicateIdentities(ctx, userID)
}

// GetIdentityStats は種別ごとの識別子件数を返す。
func (a *IdentityServiceAdapter) GetIdentityStats(ctx context.Context, userID string) (map[model.IdentityKind]int, error) {
	return a.svc.GetIdentityStats(ctx, userID)
}

// AvailabilityServiceAdapter は availability.Calculator を AvailabilityServiceInterface に適合させるアダプタ。
type AvailabilityServiceAdapter struct {
	svc *availability.Calculator
}

// NewAvailabilityServiceAdapter はAvailabilityServiceAdapterを生成する。
func NewAvailabilityServiceAdapter(svc *availability.Calculator) *AvailabilityServiceAdapter {
	return &AvailabilityServiceAdapter{svc: svc}
}

// FindAvailability は指定期間内の空き時間枠を返す。
func (a *AvailabilityServiceAdapter) FindAvailability(ctx context.Context, userID string, startDate, endDate time.Time, durationMinutes, stepMinutes int) ([]model.TimeSlot, error) {
	return a.svc.FindAvailability(ctx, userID, availability.Query{
		StartDate:       startDate,
		EndDate:         endDate,
		DurationMinutes: durationMinutes,
		StepMinutes:     stepMinutes,
	})
}

// CalendarAccountServiceAdapter は calendar.AccountService を CalendarAccountServiceInterface に適合させるアダプタ。
type CalendarAccountServiceAdapter struct {
	svc *calendar.AccountService
}

// NewCalendarAccountServiceAdapter はCalendarAccountServiceAdapterを生成する。
func NewCalendarAccountServiceAdapter(svc *calendar.AccountService) *CalendarAccountServiceAdapter {
	return &CalendarAccountServiceAdapter{svc: svc}
}

// RegisterAccount はICSカレンダーアカウントを登録する。
func (a *CalendarAccountServiceAdapter) RegisterAccount(ctx context.Context, userID, inputURL, name string) (*model.CalendarAccount, error) {
	return a.svc.RegisterAccount(ctx, userID, inputURL, name)
}

// ListAccounts はアカウント一覧を返す。
func (a *CalendarAccountServiceAdapter) ListAccounts(ctx context.Context, userID string) ([]*model.CalendarAccount, error) {
	return a.svc.ListAccounts(ctx, userID)
}

// UpdateAccountSettings はアカウントの表示名・同期間隔を更新する。
func (a *CalendarAccountServiceAdapter) UpdateAccountSettings(ctx context.Context, userID, accountID string, name *string, syncIntervalMinutes *int) (*model.CalendarAccount, error) {
	return a.svc.UpdateAccountSettings(ctx, userID, accountID, calendar.UpdateAccountSettingsInput{
		Name:                name,
		SyncIntervalMinutes: syncIntervalMinutes,
	})
}

// ResumeSync は停止中アカウントの同期を再開する。
func (a *CalendarAccountServiceAdapter) ResumeSync(ctx context.Context, userID, accountID string) (*model.CalendarAccount, error) {
	return a.svc.ResumeSync(ctx, userID, accountID)
}

// DeleteAccount はアカウントと同期済み予定を削除する。
func (a *CalendarAccountServiceAdapter) DeleteAccount(ctx context.Context, userID, accountID string) error {
	return a.svc.DeleteAccount(ctx, userID, accountID)
}

// GetAccountIcon はアカウントのアイコン画像とMIMEタイプを返す。
func (a *CalendarAccountServiceAdapter) GetAccountIcon(ctx context.Context, userID, accountID string) ([]byte, string, error) {
	return a.svc.GetAccountIcon(ctx, userID, accountID)
}

// EventServiceAdapter は calendar.EventService を EventServiceInterface に適合させるアダプタ。
type EventServiceAdapter struct {
	svc *calendar.EventService
}

// NewEventServiceAdapter はEventServiceAdapterを生成する。
func NewEventServiceAdapter(svc *calendar.EventService) *EventServiceAdapter {
	return &EventServiceAdapter{svc: svc}
}

// CreateEvent は手動予定を作成する。
func (a *EventServiceAdapter) CreateEvent(ctx context.Context, userID string, req createEventRequest) (*model.CalendarEvent, error) {
	return a.svc.CreateEvent(ctx, userID, calendar.CreateEventInput{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		AllDay:      req.AllDay,
	})
}

// GetEvent は予定を取得する。
func (a *EventServiceAdapter) GetEvent(ctx context.Context, userID, eventID string) (*model.CalendarEvent, error) {
	return a.svc.GetEvent(ctx, userID, eventID)
}

// UpdateEvent は手動予定を部分更新する。
func (a *EventServiceAdapter) UpdateEvent(ctx context.Context, userID, eventID string, req updateEventRequest) (*model.CalendarEvent, error) {
	return a.svc.UpdateEvent(ctx, userID, eventID, calendar.UpdateEventInput{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		AllDay:      req.AllDay,
	})
}

// DeleteEvent は手動予定を削除する。
func (a *EventServiceAdapter) DeleteEvent(ctx context.Context, userID, eventID string) error {
	return a.svc.DeleteEvent(ctx, userID, eventID)
}

// ListEvents は期間と重なる予定一覧を返す。
func (a *EventServiceAdapter) ListEvents(ctx context.Context, userID string, from, to time.Time) ([]*model.CalendarEvent, error) {
	return a.svc.ListEvents(ctx, userID, from, to)
}

// ProjectServiceAdapter は momentum.ProjectService を ProjectServiceInterface に適合させるアダプタ。
type ProjectServiceAdapter struct {
	svc *momentum.ProjectService
}

// NewProjectServiceAdapter はProjectServiceAdapterを生成する。
func NewProjectServiceAdapter(svc *momentum.ProjectService) *ProjectServiceAdapter {
	return &ProjectServiceAdapter{svc: svc}
}

// CreateProject は案件を作成する。
func (a *ProjectServiceAdapter) CreateProject(ctx context.Context, userID, name, description string) (*model.Project, error) {
	return a.svc.CreateProject(ctx, userID, momentum.CreateProjectInput{
		Name:        name,
		Description: description,
	})
}

// UpdateProject は案件を部分更新する。
func (a *ProjectServiceAdapter) UpdateProject(ctx context.Context, userID, projectID string, name, description *string) (*model.Project, error) {
	return a.svc.UpdateProject(ctx, userID, projectID, momentum.UpdateProjectInput{
		Name:        name,
		Description: description,
	})
}

// CompleteProject は案件を完了にする。
func (a *ProjectServiceAdapter) CompleteProject(ctx context.Context, userID, projectID string) (*model.Project, error) {
	return a.svc.CompleteProject(ctx, userID, projectID)
}

// ArchiveProject は案件をアーカイブする。
func (a *ProjectServiceAdapter) ArchiveProject(ctx context.Context, userID, projectID string) (*model.Project, error) {
	return a.svc.ArchiveProject(ctx, userID, projectID)
}

// ListProjects は案件一覧を返す。
func (a *ProjectServiceAdapter) ListProjects(ctx context.Context, userID string, status model.ProjectStatus) ([]*model.Project, error) {
	return a.svc.ListProjects(ctx, userID, status)
}

// DeleteProject は案件を削除する。
func (a *ProjectServiceAdapter) DeleteProject(ctx context.Context, userID, projectID string) error {
	return a.svc.DeleteProject(ctx, userID, projectID)
}

// TaskServiceAdapter は momentum.TaskService を TaskServiceInterface に適合させるアダプタ。
type TaskServiceAdapter struct {
	svc *momentum.TaskService
}

// NewTaskServiceAdapter はTaskServiceAdapterを生成する。
func NewTaskServiceAdapter(svc *momentum.TaskService) *TaskServiceAdapter {
	return &TaskServiceAdapter{svc: svc}
}

// CreateTask はタスクを作成する。
func (a *TaskServiceAdapter) CreateTask(ctx context.Context, userID string, req createTaskRequest) (*model.Task, error) {
	return a.svc.CreateTask(ctx, userID, momentum.CreateTaskInput{
		Title:     req.Title,
		Notes:     req.Notes,
		ProjectID: req.ProjectID,
		ContactID: req.ContactID,
		DueAt:     req.DueAt,
	})
}

// GetTask はタスクを取得する。
func (a *TaskServiceAdapter) GetTask(ctx context.Context, userID, taskID string) (*model.Task, error) {
	return a.svc.GetTask(ctx, userID, taskID)
}

// UpdateTask はタスクを部分更新する。
func (a *TaskServiceAdapter) UpdateTask(ctx context.Context, userID, taskID string, req updateTaskRequest) (*model.Task, error) {
	return a.svc.UpdateTask(ctx, userID, taskID, momentum.UpdateTaskInput{
		Title:     req.Title,
		Notes:     req.Notes,
		ProjectID: req.ProjectID,
		ContactID: req.ContactID,
		DueAt:     req.DueAt,
	})
}

// SetTaskStatus はタスクのステータスを変更する。
func (a *TaskServiceAdapter) SetTaskStatus(ctx context.Context, userID, taskID string, status model.TaskStatus) (*model.Task, error) {
	return a.svc.SetTaskStatus(ctx, userID, taskID, status)
}

// DeleteTask はタスクを削除する。
func (a *TaskServiceAdapter) DeleteTask(ctx context.Context, userID, taskID string) error {
	return a.svc.DeleteTask(ctx, userID, taskID)
}

// ListTasks はタスク一覧をhandlerレスポンス型で返す。
func (a *TaskServiceAdapter) ListTasks(ctx context.Context, userID string, filter model.TaskFilter) (*taskListResult, error) {
	result, err := a.svc.ListTasks(ctx, userID, filter)
	if err != nil {
		return nil, err
	}

	tasks := make([]taskResponse, len(result.Tasks))
	for i, task := range result.Tasks {
		tasks[i] = toTaskResponse(task)
	}

	return &taskListResult{
		Tasks:      tasks,
		NextCursor: result.NextCursor,
		HasMore:    result.HasMore,
	}, nil
}

// GetMomentum は活動量サマリーを返す。
func (a *TaskServiceAdapter) GetMomentum(ctx context.Context, userID string) (*model.MomentumSummary, error) {
	return a.svc.GetMomentum(ctx, userID)
}

// ConsentServiceAdapter は consent.Service を ConsentServiceInterface に適合させるアダプタ。
type ConsentServiceAdapter struct {
	svc *consent.Service
}

// NewConsentServiceAdapter はConsentServiceAdapterを生成する。
func NewConsentServiceAdapter(svc *consent.Service) *ConsentServiceAdapter {
	return &ConsentServiceAdapter{svc: svc}
}

// GrantConsent は同意を記録する。
func (a *ConsentServiceAdapter) GrantConsent(ctx context.Context, userID, contactID string, kind model.ConsentKind, method model.ConsentMethod, note string, expiresAt *time.Time) (*model.Consent, error) {
	return a.svc.GrantConsent(ctx, userID, contactID, consent.GrantConsentInput{
		Kind:      kind,
		Method:    method,
		Note:      note,
		ExpiresAt: expiresAt,
	})
}

// RevokeConsent は同意を取り消す。
func (a *ConsentServiceAdapter) RevokeConsent(ctx context.Context, userID, contactID string, kind model.ConsentKind) error {
	return a.svc.RevokeConsent(ctx, userID, contactID, kind)
}

// CheckConsent は同意が有効かどうかを返す。
func (a *ConsentServiceAdapter) CheckConsent(ctx context.Context, userID, contactID string, kind model.ConsentKind) (bool, error) {
	return a.svc.CheckConsent(ctx, userID, contactID, kind)
}

// ListContactConsents は連絡先の同意履歴を返す。
func (a *ConsentServiceAdapter) ListContactConsents(ctx context.Context, userID, contactID string) ([]*model.Consent, error) {
	return a.svc.ListContactConsents(ctx, userID, contactID)
}

// GetConsentOverview は種別ごとの有効な同意件数を返す。
func (a *ConsentServiceAdapter) GetConsentOverview(ctx context.Context, userID string) (map[model.ConsentKind]int, error) {
	return a.svc.GetConsentOverview(ctx, userID)
}

// TagServiceAdapter は tag.Service を TagServiceInterface に適合させるアダプタ。
type TagServiceAdapter struct {
	svc *tag.Service
}

// NewTagServiceAdapter はTagServiceAdapterを生成する。
func NewTagServiceAdapter(svc *tag.Service) *TagServiceAdapter {
	return &TagServiceAdapter{svc: svc}
}

// CreateTag はタグを作成する。
func (a *TagServiceAdapter) CreateTag(ctx context.Context, userID, name, color string) (*model.Tag, error) {
	return a.svc.CreateTag(ctx, userID, tag.CreateTagInput{
		Name:  name,
		Color: color,
	})
}

// UpdateTag はタグを部分更新する。
func (a *TagServiceAdapter) UpdateTag(ctx context.Context, userID, tagID string, name, color *string) (*model.Tag, error) {
	return a.svc.UpdateTag(ctx, userID, tagID, tag.UpdateTagInput{
		Name:  name,
		Color: color,
	})
}

// DeleteTag はタグを削除する。
func (a *TagServiceAdapter) DeleteTag(ctx context.Context, userID, tagID string) error {
	return a.svc.DeleteTag(ctx, userID, tagID)
}

// ListTags はタグ一覧を付与先連絡先数つきで返す。
func (a *TagServiceAdapter) ListTags(ctx context.Context, userID string) ([]model.TagWithCount, error) {
	return a.svc.ListTags(ctx, userID)
}

// TagContact は連絡先にタグを付与する。
func (a *TagServiceAdapter) TagContact(ctx context.Context, userID, contactID, tagID string) error {
	return a.svc.TagContact(ctx, userID, contactID, tagID)
}

// UntagContact は連絡先からタグを外す。
func (a *TagServiceAdapter) UntagContact(ctx context.Context, userID, contactID, tagID string) error {
	return a.svc.UntagContact(ctx, userID, contactID, tagID)
}

// ListContactTags は連絡先に付与されたタグ一覧を返す。
func (a *TagServiceAdapter) ListContactTags(ctx context.Context, userID, contactID string) ([]*model.Tag, error) {
	return a.svc.ListContactTags(ctx, userID, contactID)
}

// ListContactsByTag はタグが付与された連絡先一覧をhandlerレスポンス型で返す。
func (a *TagServiceAdapter) ListContactsByTag(ctx context.Context, userID, tagID string, limit int, cursor string) (*contactListResult, error) {
	result, err := a.svc.ListContactsByTag(ctx, userID, tagID, limit, cursor)
	if err != nil {
		return nil, err
	}
	return toContactListResult(result.Contacts, result.NextCursor, result.HasMore), nil
}

// UserServiceAdapter は user.Service を UserServiceInterface に適合させるアダプタ。
type UserServiceAdapter struct {
	svc *user.Service
}

// NewUserServiceAdapter はUserServiceAdapterを生成する。
func NewUserServiceAdapter(svc *user.Service) *UserServiceAdapter {
	return &UserServiceAdapter{svc: svc}
}

// Withdraw はユーザーの退会処理を実行する。
func (a *UserServiceAdapter) Withdraw(ctx context.Context, userID string) error {
	return a.svc.Withdraw(ctx, userID)
}

// toContactListResult はドメインの連絡先リストをhandlerレスポンス型に変換する。
func toContactListResult(contacts []*model.Contact, nextCursor string, hasMore bool) *contactListResult {
	results := make([]contactResponse, len(contacts))
	for i, c := range contacts {
		results[i] = toContactResponse(c)
	}
	return &contactListResult{
		Contacts:   results,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}
}

// --- compile-time interface checks ---

var _ ContactServiceInterface = (*ContactServiceAdapter)(nil)
var _ IdentityServiceInterface = (*IdentityServiceAdapter)(nil)
var _ AvailabilityServiceInterface = (*AvailabilityServiceAdapter)(nil)
var _ CalendarAccountServiceInterface = (*CalendarAccountServiceAdapter)(nil)
var _ EventServiceInterface = (*EventServiceAdapter)(nil)
var _ ProjectServiceInterface = (*ProjectServiceAdapter)(nil)
var _ TaskServiceInterface = (*TaskServiceAdapter)(nil)
var _ ConsentServiceInterface = (*ConsentServiceAdapter)(nil)
var _ TagServiceInterface = (*TagServiceAdapter)(nil)
var _ UserServiceInterface = (*UserServiceAdapter)(nil)
