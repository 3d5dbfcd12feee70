// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, crm, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidEmail         = "INVALID_EMAIL"
	ErrCodeInvalidPhone         = "INVALID_PHONE"
	ErrCodeInvalidHandle        = "INVALID_HANDLE"
	ErrCodeInvalidProviderID    = "INVALID_PROVIDER_ID"
	ErrCodeProviderRequired     = "PROVIDER_REQUIRED"
	ErrCodeInvalidIdentityKind  = "INVALID_IDENTITY_KIND"
	ErrCodeMergeSameContact     = "MERGE_SAME_CONTACT"
	ErrCodeIdentityNotFound     = "IDENTITY_NOT_FOUND"
	ErrCodeContactNotFound      = "CONTACT_NOT_FOUND"
	ErrCodeInvalidContact       = "INVALID_CONTACT"
	ErrCodeInvalidDuration      = "INVALID_DURATION"
	ErrCodeInvalidTimeRange     = "INVALID_TIME_RANGE"
	ErrCodeEventNotFound        = "EVENT_NOT_FOUND"
	ErrCodeSyncedEventReadOnly  = "SYNCED_EVENT_READONLY"
	ErrCodeInvalidEventTitle    = "INVALID_EVENT_TITLE"
	ErrCodeAccountNotFound      = "ACCOUNT_NOT_FOUND"
	ErrCodeAccountLimitReached  = "ACCOUNT_LIMIT_REACHED"
	ErrCodeDuplicateAccount     = "DUPLICATE_ACCOUNT"
	ErrCodeAccountNotStopped    = "ACCOUNT_NOT_STOPPED"
	ErrCodeInvalidSyncInterval  = "INVALID_SYNC_INTERVAL"
	ErrCodeCalendarNotDetected  = "CALENDAR_NOT_DETECTED"
	ErrCodeInvalidURL           = "INVALID_URL"
	ErrCodeSSRFBlocked          = "SSRF_BLOCKED"
	ErrCodeFetchFailed          = "FETCH_FAILED"
	ErrCodeParseFailed          = "PARSE_FAILED"
	ErrCodeProjectNotFound      = "PROJECT_NOT_FOUND"
	ErrCodeProjectArchived      = "PROJECT_ARCHIVED"
	ErrCodeInvalidProjectName   = "INVALID_PROJECT_NAME"
	ErrCodeTaskNotFound         = "TASK_NOT_FOUND"
	ErrCodeInvalidTaskStatus    = "INVALID_TASK_STATUS"
	ErrCodeInvalidTaskTitle     = "INVALID_TASK_TITLE"
	ErrCodeConsentNotFound      = "CONSENT_NOT_FOUND"
	ErrCodeInvalidConsentKind   = "INVALID_CONSENT_KIND"
	ErrCodeInvalidConsentMethod = "INVALID_CONSENT_METHOD"
	ErrCodeInvalidConsentExpiry = "INVALID_CONSENT_EXPIRY"
	ErrCodeTagNotFound          = "TAG_NOT_FOUND"
	ErrCodeDuplicateTag         = "DUPLICATE_TAG"
	ErrCodeInvalidTagName       = "INVALID_TAG_NAME"
	ErrCodeInvalidTagColor      = "INVALID_TAG_COLOR"
	ErrCodeUserNotFound         = "USER_NOT_FOUND"
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
)

// NewInvalidEmailError は無効なメールアドレスエラーを生成する。
func NewInvalidEmailError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEmail,
		Message:  fmt.Sprintf("無効なメールアドレスです: %s", reason),
		Category: "validation",
		Action:   "name@example.com 形式のメールアドレスを入力してください。",
	}
}

// NewInvalidPhoneError は無効な電話番号エラーを生成する。
func NewInvalidPhoneError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPhone,
		Message:  fmt.Sprintf("無効な電話番号です: %s", reason),
		Category: "validation",
		Action:   "数字7桁以上の電話番号を入力してください。記号や空白は自動的に除去されます。",
	}
}

// NewInvalidHandleError は無効なハンドルエラーを生成する。
func NewInvalidHandleError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidHandle,
		Message:  "ハンドルが空です。",
		Category: "validation",
		Action:   "SNS上のハンドル名を入力してください。",
	}
}

// NewInvalidProviderIDError は無効なプロバイダーIDエラーを生成する。
func NewInvalidProviderIDError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidProviderID,
		Message:  "プロバイダーIDが空です。",
		Category: "validation",
		Action:   "外部サービスが発行したIDをそのまま入力してください。",
	}
}

// NewProviderRequiredError はプロバイダー未指定エラーを生成する。
func NewProviderRequiredError(kind string) *APIError {
	return &APIError{
		Code:     ErrCodeProviderRequired,
		Message:  fmt.Sprintf("この識別子種別にはプロバイダーの指定が必要です: %s", kind),
		Category: "validation",
		Action:   "プロバイダー名（twitter、google 等）を指定してください。",
	}
}

// NewInvalidIdentityKindError は無効な識別子種別エラーを生成する。
func NewInvalidIdentityKindError(kind string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidIdentityKind,
		Message:  fmt.Sprintf("無効な識別子種別です: %s", kind),
		Category: "validation",
		Action:   "種別には email、phone、handle、provider_id のいずれかを指定してください。",
	}
}

// NewMergeSameContactError は同一連絡先同士のマージエラーを生成する。
func NewMergeSameContactError() *APIError {
	return &APIError{
		Code:     ErrCodeMergeSameContact,
		Message:  "マージ元とマージ先が同じ連絡先です。",
		Category: "validation",
		Action:   "異なる2件の連絡先を指定してください。",
	}
}

// NewIdentityNotFoundError は識別子未検出エラーを生成する。
func NewIdentityNotFoundError(identityID string) *APIError {
	return &APIError{
		Code:     ErrCodeIdentityNotFound,
		Message:  fmt.Sprintf("指定された識別子が見つかりません: %s", identityID),
		Category: "crm",
		Action:   "識別子IDを確認してください。",
	}
}

// NewContactNotFoundError は連絡先未検出エラーを生成する。
func NewContactNotFoundError(contactID string) *APIError {
	return &APIError{
		Code:     ErrCodeContactNotFound,
		Message:  fmt.Sprintf("指定された連絡先が見つかりません: %s", contactID),
		Category: "crm",
		Action:   "連絡先IDを確認してください。",
	}
}

// NewInvalidContactError は連絡先の必須項目不足エラーを生成する。
func NewInvalidContactError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidContact,
		Message:  "氏名または会社名のいずれかが必要です。",
		Category: "validation",
		Action:   "姓・名・会社名のうち少なくとも1つを入力してください。",
	}
}

// NewInvalidDurationError は無効な所要時間エラーを生成する。
func NewInvalidDurationError(minutes int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDuration,
		Message:  fmt.Sprintf("無効な所要時間です: %d分", minutes),
		Category: "validation",
		Action:   "所要時間には1分以上の値を指定してください。",
	}
}

// NewInvalidTimeRangeError は無効な時間範囲エラーを生成する。
func NewInvalidTimeRangeError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTimeRange,
		Message:  "終了時刻は開始時刻より後である必要があります。",
		Category: "validation",
		Action:   "開始時刻と終了時刻を確認してください。",
	}
}

// NewEventNotFoundError は予定未検出エラーを生成する。
func NewEventNotFoundError(eventID string) *APIError {
	return &APIError{
		Code:     ErrCodeEventNotFound,
		Message:  fmt.Sprintf("指定された予定が見つかりません: %s", eventID),
		Category: "crm",
		Action:   "予定IDを確認してください。",
	}
}

// NewSyncedEventReadOnlyError は同期予定の編集エラーを生成する。
func NewSyncedEventReadOnlyError() *APIError {
	return &APIError{
		Code:     ErrCodeSyncedEventReadOnly,
		Message:  "外部カレンダーから同期された予定は編集・削除できません。",
		Category: "crm",
		Action:   "元のカレンダー側で変更するか、カレンダー連携を解除してください。",
	}
}

// NewInvalidEventTitleError は予定タイトル未入力エラーを生成する。
func NewInvalidEventTitleError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEventTitle,
		Message:  "予定のタイトルが空です。",
		Category: "validation",
		Action:   "タイトルを入力してください。",
	}
}

// NewAccountNotFoundError はカレンダーアカウント未検出エラーを生成する。
func NewAccountNotFoundError(accountID string) *APIError {
	return &APIError{
		Code:     ErrCodeAccountNotFound,
		Message:  fmt.Sprintf("指定されたカレンダーアカウントが見つかりません: %s", accountID),
		Category: "crm",
		Action:   "アカウントIDを確認してください。",
	}
}

// NewAccountLimitReachedError はカレンダーアカウント上限エラーを生成する。
func NewAccountLimitReachedError() *APIError {
	return &APIError{
		Code:     ErrCodeAccountLimitReached,
		Message:  "カレンダーアカウント数が上限（10件）に達しています。",
		Category: "crm",
		Action:   "不要なカレンダー連携を解除してから、新しいカレンダーを登録してください。",
	}
}

// NewDuplicateAccountError は登録済みカレンダーの再登録エラーを生成する。
func NewDuplicateAccountError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateAccount,
		Message:  "このカレンダーは既に登録されています。",
		Category: "crm",
		Action:   "カレンダーアカウント一覧から該当カレンダーを確認してください。",
	}
}

// NewAccountNotStoppedError はアカウントが停止状態でない場合のエラーを生成する。
func NewAccountNotStoppedError() *APIError {
	return &APIError{
		Code:     ErrCodeAccountNotStopped,
		Message:  "このカレンダーの同期は停止中ではありません。",
		Category: "crm",
		Action:   "再開は同期が停止しているカレンダーに対してのみ実行できます。",
	}
}

// NewInvalidSyncIntervalError は同期間隔が無効な場合のエラーを生成する。
func NewInvalidSyncIntervalError(minutes int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSyncInterval,
		Message:  fmt.Sprintf("無効な同期間隔です: %d分", minutes),
		Category: "validation",
		Action:   "同期間隔は30分から720分（12時間）の範囲で、30分刻みで指定してください。",
	}
}

// NewCalendarNotDetectedError はカレンダー未検出エラーを生成する。
func NewCalendarNotDetectedError(url string) *APIError {
	return &APIError{
		Code:     ErrCodeCalendarNotDetected,
		Message:  fmt.Sprintf("指定されたURLからiCalendarフィードを検出できませんでした: %s", url),
		Category: "crm",
		Action:   "iCalendar（.ics）のURLを直接入力するか、カレンダーが公開されているページのURLを確認してください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを入力してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

// NewFetchFailedError はフェッチ失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("URLの取得に失敗しました: %s", reason),
		Category: "crm",
		Action:   "URLが正しいか確認し、しばらく待ってから再度お試しください。",
	}
}

// NewParseFailedError はパース失敗エラーを生成する。
func NewParseFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeParseFailed,
		Message:  "カレンダーフィードの解析に失敗しました。",
		Category: "crm",
		Action:   "有効なiCalendarフィードかどうか確認してください。",
	}
}

// NewProjectNotFoundError は案件未検出エラーを生成する。
func NewProjectNotFoundError(projectID string) *APIError {
	return &APIError{
		Code:     ErrCodeProjectNotFound,
		Message:  fmt.Sprintf("指定された案件が見つかりません: %s", projectID),
		Category: "crm",
		Action:   "案件IDを確認してください。",
	}
}

// NewProjectArchivedError はアーカイブ済み案件への操作エラーを生成する。
func NewProjectArchivedError() *APIError {
	return &APIError{
		Code:     ErrCodeProjectArchived,
		Message:  "アーカイブ済みの案件にはタスクを追加できません。",
		Category: "crm",
		Action:   "案件をアクティブに戻すか、別の案件を指定してください。",
	}
}

// NewInvalidProjectNameError は案件名未入力エラーを生成する。
func NewInvalidProjectNameError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidProjectName,
		Message:  "案件名が空です。",
		Category: "validation",
		Action:   "案件名を入力してください。",
	}
}

// NewTaskNotFoundError はタスク未検出エラーを生成する。
func NewTaskNotFoundError(taskID string) *APIError {
	return &APIError{
		Code:     ErrCodeTaskNotFound,
		Message:  fmt.Sprintf("指定されたタスクが見つかりません: %s", taskID),
		Category: "crm",
		Action:   "タスクIDを確認してください。",
	}
}

// NewInvalidTaskStatusError は無効なタスクステータスエラーを生成する。
func NewInvalidTaskStatusError(status string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTaskStatus,
		Message:  fmt.Sprintf("無効なタスクステータスです: %s", status),
		Category: "validation",
		Action:   "ステータスには open、in_progress、done のいずれかを指定してください。",
	}
}

// NewInvalidTaskTitleError はタスクタイトル未入力エラーを生成する。
func NewInvalidTaskTitleError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTaskTitle,
		Message:  "タスクのタイトルが空です。",
		Category: "validation",
		Action:   "タイトルを入力してください。",
	}
}

// NewConsentNotFoundError は有効な同意が存在しない場合のエラーを生成する。
func NewConsentNotFoundError(kind string) *APIError {
	return &APIError{
		Code:     ErrCodeConsentNotFound,
		Message:  fmt.Sprintf("有効な同意が見つかりません: %s", kind),
		Category: "crm",
		Action:   "同意の取得状況を連絡先の同意履歴から確認してください。",
	}
}

// NewInvalidConsentKindError は無効な同意種別エラーを生成する。
func NewInvalidConsentKindError(kind string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidConsentKind,
		Message:  fmt.Sprintf("無効な同意種別です: %s", kind),
		Category: "validation",
		Action:   "定義済みの同意種別を指定してください。",
	}
}

// NewInvalidConsentMethodError は無効な同意取得方法エラーを生成する。
func NewInvalidConsentMethodError(method string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidConsentMethod,
		Message:  fmt.Sprintf("無効な同意取得方法です: %s", method),
		Category: "validation",
		Action:   "取得方法には verbal、written、digital のいずれかを指定してください。",
	}
}

// NewInvalidConsentExpiryError は過去日付の同意期限エラーを生成する。
func NewInvalidConsentExpiryError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidConsentExpiry,
		Message:  "同意の有効期限が過去の日時です。",
		Category: "validation",
		Action:   "有効期限には未来の日時を指定してください。",
	}
}

// NewTagNotFoundError はタグ未検出エラーを生成する。
func NewTagNotFoundError(tagID string) *APIError {
	return &APIError{
		Code:     ErrCodeTagNotFound,
		Message:  fmt.Sprintf("指定されたタグが見つかりません: %s", tagID),
		Category: "crm",
		Action:   "タグIDを確認してください。",
	}
}

// NewDuplicateTagError は同名タグの重複作成エラーを生成する。
func NewDuplicateTagError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateTag,
		Message:  fmt.Sprintf("同じ名前のタグが既に存在します: %s", name),
		Category: "crm",
		Action:   "別の名前を指定するか、既存のタグを使用してください。",
	}
}

// NewInvalidTagNameError は無効なタグ名エラーを生成する。
func NewInvalidTagNameError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTagName,
		Message:  "タグ名が空か、50文字を超えています。",
		Category: "validation",
		Action:   "1文字以上50文字以内のタグ名を入力してください。",
	}
}

// NewInvalidTagColorError は無効なタグ色エラーを生成する。
func NewInvalidTagColorError(color string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTagColor,
		Message:  fmt.Sprintf("無効なタグ色です: %s", color),
		Category: "validation",
		Action:   "#RRGGBB 形式（例: #6B7280）で指定してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}
