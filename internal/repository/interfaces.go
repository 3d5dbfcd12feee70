// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/renraku/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CreateWithLoginIdentity はユーザーとIdP紐付けを同一トランザクションで作成する。
	CreateWithLoginIdentity(ctx context.Context, user *model.User, identity *model.LoginIdentity) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するlogin_identitiesはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// LoginIdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type LoginIdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idで紐付けを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.LoginIdentity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// ContactRepository は連絡先データの永続化インターフェース。
type ContactRepository interface {
	// FindByID はユーザースコープ内で指定IDの連絡先を取得する。
	// 見つからない場合はnilを返す。
	FindByID(ctx context.Context, userID, id string) (*model.Contact, error)

	// Create は連絡先を作成する。
	Create(ctx context.Context, contact *model.Contact) error

	// Update は連絡先を上書き更新する。対象が存在しない場合はエラーを返す。
	Update(ctx context.Context, contact *model.Contact) error

	// List はユーザーの連絡先一覧をcreated_at降順・IDカーソルで取得する。
	// filter.Limitは呼び出し側で+1済みの値を渡し、HasMore判定に使う。
	List(ctx context.Context, userID string, filter model.ContactFilter) ([]*model.Contact, error)

	// CountByUserID はユーザーの連絡先数を返す。
	CountByUserID(ctx context.Context, userID string) (int, error)

	// Delete はユーザースコープ内で連絡先を削除する。削除件数を返す。
	Delete(ctx context.Context, userID, id string) (int64, error)

	// DeleteByUserID はユーザーの全連絡先を削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// IdentityRepository は連絡先識別子の永続化インターフェース。
// 全メソッドがuserIDでテナントスコープされ、他テナントの行には一切触れない。
type IdentityRepository interface {
	// Create は識別子を作成する。同一連絡先への同一識別子の再登録は
	// 挿入をスキップし既存行を返す（冪等）。
	// 異なる連絡先への同一識別子の登録は拒否しない。
	Create(ctx context.Context, identity *model.Identity) (*model.Identity, error)

	// FindByID は指定IDの識別子を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, userID, id string) (*model.Identity, error)

	// FindFirstByKindValue は正規化済みの値で識別子を1件検索する。
	// 複数の連絡先が同じ値を持つ場合は登録が最も古い行を返す。
	// 見つからない場合はnilを返す。
	FindFirstByKindValue(ctx context.Context, userID string, kind model.IdentityKind, value, provider string) (*model.Identity, error)

	// FindContactIDsByKindValue は同じ識別子値を持つ連絡先IDを重複なしで返す。
	FindContactIDsByKindValue(ctx context.Context, userID string, kind model.IdentityKind, value, provider string) ([]string, error)

	// ListByContact は連絡先の全識別子をcreated_at昇順で返す。
	ListByContact(ctx context.Context, userID, contactID string) ([]*model.Identity, error)

	// ListGroupsWithMultipleContacts は複数の連絡先に共有されている
	// (kind, value, provider) グループを返す。テナント全走査。
	ListGroupsWithMultipleContacts(ctx context.Context, userID string) ([]model.DuplicateGroup, error)

	// ReassignContact はfromContactIDの識別子を全てtoContactIDに付け替える。
	// 行は削除せずcontact_idのみを書き換える。単一のUPDATE文で実行され、
	// 再実行しても結果が変わらない。付け替え件数を返す。
	ReassignContact(ctx context.Context, userID, fromContactID, toContactID string) (int64, error)

	// DeleteByID は識別子を削除する。削除件数を返す。
	DeleteByID(ctx context.Context, userID, id string) (int64, error)

	// DeleteByContact は連絡先の全識別子を削除する。削除件数を返す。
	DeleteByContact(ctx context.Context, userID, contactID string) (int64, error)

	// DeleteByUserID はユーザーの全識別子を削除する。
	DeleteByUserID(ctx context.Context, userID string) error

	// CountByKind は種別ごとの識別子数を返す。0件の種別はマップに含まれない。
	CountByKind(ctx context.Context, userID string) (map[model.IdentityKind]int, error)
}

// CalendarAccountRepository はカレンダーアカウントの永続化インターフェース。
type CalendarAccountRepository interface {
	// FindByID はユーザースコープ内で指定IDのアカウントを取得する。
	// 見つからない場合はnilを返す。
	FindByID(ctx context.Context, userID, id string) (*model.CalendarAccount, error)

	// FindByUserAndFeedURL はフィードURLでアカウントを検索する。見つからない場合はnilを返す。
	FindByUserAndFeedURL(ctx context.Context, userID, feedURL string) (*model.CalendarAccount, error)

	// CountByUserID はユーザーのアカウント数を返す。
	CountByUserID(ctx context.Context, userID string) (int, error)

	// Create はアカウントを作成する。
	Create(ctx context.Context, account *model.CalendarAccount) error

	// Update はアカウントの設定項目（名前・同期間隔・ステータス等）を更新する。
	Update(ctx context.Context, account *model.CalendarAccount) error

	// UpdateIcon はアカウントのアイコンデータを更新する。
	UpdateIcon(ctx context.Context, accountID string, iconData []byte, iconMime string) error

	// ListByUserID はユーザーのアカウント一覧をcreated_at昇順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.CalendarAccount, error)

	// ListDueForSync は同期対象のアカウントを取得する。
	// next_sync_at <= now() かつ sync_status IN ('active','error') の行を
	// FOR UPDATE SKIP LOCKEDで排他的に取得する。
	ListDueForSync(ctx context.Context, limit int) ([]*model.CalendarAccount, error)

	// UpdateSyncState はアカウントの同期状態を更新する。
	// sync_status、consecutive_failures、last_error、last_sync_at、next_sync_atを更新する。
	UpdateSyncState(ctx context.Context, account *model.CalendarAccount) error

	// Delete はユーザースコープ内でアカウントを削除する。削除件数を返す。
	Delete(ctx context.Context, userID, id string) (int64, error)

	// DeleteByUserID はユーザーの全アカウントを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// EventRepository はカレンダー予定の永続化インターフェース。
type EventRepository interface {
	// FindByID はユーザースコープ内で指定IDの予定を取得する。
	// 見つからない場合はnilを返す。
	FindByID(ctx context.Context, userID, id string) (*model.CalendarEvent, error)

	// FindByAccountAndUID は同期元UIDで予定を検索する。
	// 同期時の同一性判定に使う。見つからない場合はnilを返す。
	FindByAccountAndUID(ctx context.Context, accountID, providerUID string) (*model.CalendarEvent, error)

	// Create は予定を作成する。
	Create(ctx context.Context, event *model.CalendarEvent) error

	// Update は予定を上書き更新する。対象が存在しない場合はエラーを返す。
	Update(ctx context.Context, event *model.CalendarEvent) error

	// ListOverlapping は [from, to) と重なる予定をstart_time昇順で返す。
	// 半開区間の重なり判定 (start_time < to AND end_time > from) をSQLに押し込む。
	ListOverlapping(ctx context.Context, userID string, from, to time.Time) ([]*model.CalendarEvent, error)

	// Delete はユーザースコープ内で予定を削除する。削除件数を返す。
	Delete(ctx context.Context, userID, id string) (int64, error)

	// DeleteVanished は同期元から消えたUIDの予定を削除する。
	// keepUIDsに含まれないaccountID配下の同期予定を全て削除し、件数を返す。
	DeleteVanished(ctx context.Context, accountID string, keepUIDs []string) (int64, error)

	// DeleteByAccount はアカウント配下の同期予定を全て削除する。
	DeleteByAccount(ctx context.Context, accountID string) error

	// DeleteSyncedBefore は終了時刻がcutoff以前の同期予定を削除し、件数を返す。
	// 手動登録の予定は削除対象外。
	DeleteSyncedBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// DeleteByUserID はユーザーの全予定を削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// ProjectRepository は案件データの永続化インターフェース。
type ProjectRepository interface {
	// FindByID はユーザースコープ内で指定IDの案件を取得する。
	// 見つからない場合はnilを返す。
	FindByID(ctx context.Context, userID, id string) (*model.Project, error)

	// Create は案件を作成する。
	Create(ctx context.Context, project *model.Project) error

	// Update は案件を上書き更新する。対象が存在しない場合はエラーを返す。
	Update(ctx context.Context, project *model.Project) error

	// ListByUserID はユーザーの案件一覧をcreated_at昇順で返す。
	// statusが空の場合は全件。
	ListByUserID(ctx context.Context, userID string, status model.ProjectStatus) ([]*model.Project, error)

	// ListActiveWithProgress はアクティブな案件をタスク数集計付きで返す。
	ListActiveWithProgress(ctx context.Context, userID string) ([]model.ProjectProgress, error)

	// Delete はユーザースコープ内で案件を削除する。削除件数を返す。
	Delete(ctx context.Context, userID, id string) (int64, error)

	// DeleteByUserID はユーザーの全案件を削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// TaskRepository はタスクデータの永続化インターフェース。
type TaskRepository interface {
	// FindByID はユーザースコープ内で指定IDのタスクを取得する。
	// 見つからない場合はnilを返す。
	FindByID(ctx context.Context, userID, id string) (*model.Task, error)

	// Create はタスクを作成する。
	Create(ctx context.Context, task *model.Task) error

	// Update はタスクを上書き更新する。対象が存在しない場合はエラーを返す。
	Update(ctx context.Context, task *model.Task) error

	// List はユーザーのタスク一覧をcreated_at降順・IDカーソルで取得する。
	// filter.Limitは呼び出し側で+1済みの値を渡す。
	List(ctx context.Context, userID string, filter model.TaskFilter) ([]*model.Task, error)

	// CountByStatus はステータスごとのタスク数を返す。
	CountByStatus(ctx context.Context, userID string) (map[model.TaskStatus]int, error)

	// CountDoneSince はsince以降に完了したタスク数を返す。
	CountDoneSince(ctx context.Context, userID string, since time.Time) (int, error)

	// CountOverdue は期限切れの未完了タスク数を返す。
	CountOverdue(ctx context.Context, userID string, now time.Time) (int, error)

	// UnlinkProject は案件配下のタスクのproject_idをNULLに戻す。
	UnlinkProject(ctx context.Context, userID, projectID string) (int64, error)

	// UnlinkContact は連絡先に紐付くタスクのcontact_idをNULLに戻す。
	UnlinkContact(ctx context.Context, userID, contactID string) (int64, error)

	// ReassignContact はfromContactIDのタスクをtoContactIDに付け替える。
	ReassignContact(ctx context.Context, userID, fromContactID, toContactID string) (int64, error)

	// Delete はユーザースコープ内でタスクを削除する。削除件数を返す。
	Delete(ctx context.Context, userID, id string) (int64, error)

	// DeleteByUserID はユーザーの全タスクを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// ConsentRepository は同意台帳の永続化インターフェース。
type ConsentRepository interface {
	// Create は同意レコードを作成する。
	Create(ctx context.Context, consent *model.Consent) error

	// FindActive は指定種別の有効な同意を取得する。
	// 取り消し済み・期限切れは対象外。見つからない場合はnilを返す。
	FindActive(ctx context.Context, userID, contactID string, kind model.ConsentKind, now time.Time) (*model.Consent, error)

	// RevokeActive は指定種別の有効な同意を全て取り消す。取り消し件数を返す。
	RevokeActive(ctx context.Context, userID, contactID string, kind model.ConsentKind, revokedAt time.Time) (int64, error)

	// ListByContact は連絡先の同意履歴をgranted_at降順で返す。
	ListByContact(ctx context.Context, userID, contactID string) ([]*model.Consent, error)

	// CountActiveByKind は種別ごとの有効な同意数を返す。0件の種別は含まれない。
	CountActiveByKind(ctx context.Context, userID string, now time.Time) (map[model.ConsentKind]int, error)

	// ReassignContact はfromContactIDの同意記録をtoContactIDに付け替える。
	ReassignContact(ctx context.Context, userID, fromContactID, toContactID string) (int64, error)

	// DeleteByContact は連絡先の同意記録を全て削除する。
	DeleteByContact(ctx context.Context, userID, contactID string) (int64, error)

	// DeleteByUserID はユーザーの全同意記録を削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// TagRepository はタグおよび連絡先との紐付けの永続化インターフェース。
type TagRepository interface {
	// FindByID はユーザースコープ内で指定IDのタグを取得する。
	// 見つからない場合はnilを返す。
	FindByID(ctx context.Context, userID, id string) (*model.Tag, error)

	// FindByName はタグ名（大文字小文字を区別しない）でタグを検索する。
	// 見つからない場合はnilを返す。
	FindByName(ctx context.Context, userID, name string) (*model.Tag, error)

	// Create はタグを作成する。
	Create(ctx context.Context, tag *model.Tag) error

	// Update はタグを上書き更新する。対象が存在しない場合はエラーを返す。
	Update(ctx context.Context, tag *model.Tag) error

	// ListByUserIDWithCounts はユーザーのタグ一覧を付与先連絡先数付きで返す。
	ListByUserIDWithCounts(ctx context.Context, userID string) ([]model.TagWithCount, error)

	// AttachContact はタグを連絡先に付与する。既に付与済みの場合は何もしない（冪等）。
	AttachContact(ctx context.Context, userID, contactID, tagID string) error

	// DetachContact はタグの付与を解除する。解除件数を返す。
	DetachContact(ctx context.Context, userID, contactID, tagID string) (int64, error)

	// ListByContact は連絡先に付与されたタグをname昇順で返す。
	ListByContact(ctx context.Context, userID, contactID string) ([]*model.Tag, error)

	// ListContactsByTag はタグが付与された連絡先をcreated_at降順・IDカーソルで返す。
	// limitは呼び出し側で+1済みの値を渡す。
	ListContactsByTag(ctx context.Context, userID, tagID string, limit int, cursor string) ([]*model.Contact, error)

	// MoveContactLinks はfromContactIDのタグ付与をtoContactIDへ移す。
	// 移動先に同じタグが既に付与されている場合は重複させず元の行を消す。
	MoveContactLinks(ctx context.Context, userID, fromContactID, toContactID string) error

	// DeleteLinksByContact は連絡先の全タグ付与を解除する。
	DeleteLinksByContact(ctx context.Context, userID, contactID string) error

	// Delete はユーザースコープ内でタグを削除する。付与もCASCADE削除される。削除件数を返す。
	Delete(ctx context.Context, userID, id string) (int64, error)

	// DeleteByUserID はユーザーの全タグを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
