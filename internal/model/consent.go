package model

import "time"

// ConsentKind は同意の種別を表す。
type ConsentKind string

const (
	// ConsentKindEmailMarketing はメールによる案内送付への同意。
	ConsentKindEmailMarketing ConsentKind = "email_marketing"
	// ConsentKindSMSReminders はSMSリマインダー送信への同意。
	ConsentKindSMSReminders ConsentKind = "sms_reminders"
	// ConsentKindAppointmentReminders は予約リマインダー送信への同意。
	ConsentKindAppointmentReminders ConsentKind = "appointment_reminders"
	// ConsentKindPHIDisclosure は保健医療情報の第三者開示への同意。
	ConsentKindPHIDisclosure ConsentKind = "phi_disclosure"
	// ConsentKindDataProcessing は個人データ処理への同意。
	ConsentKindDataProcessing ConsentKind = "data_processing"
)

// IsValidConsentKind は同意種別が定義済みかどうかを判定する。
func IsValidConsentKind(kind ConsentKind) bool {
	switch kind {
	case ConsentKindEmailMarketing, ConsentKindSMSReminders,
		ConsentKindAppointmentReminders, ConsentKindPHIDisclosure,
		ConsentKindDataProcessing:
		return true
	default:
		return false
	}
}

// ConsentMethod は同意を取得した方法を表す。
type ConsentMethod string

const (
	// ConsentMethodVerbal は口頭での同意。
	ConsentMethodVerbal ConsentMethod = "verbal"
	// ConsentMethodWritten は書面での同意。
	ConsentMethodWritten ConsentMethod = "written"
	// ConsentMethodDigital は電子的な同意（フォーム送信等）。
	ConsentMethodDigital ConsentMethod = "digital"
)

// IsValidConsentMethod は同意取得方法が定義済みかどうかを判定する。
func IsValidConsentMethod(method ConsentMethod) bool {
	switch method {
	case ConsentMethodVerbal, ConsentMethodWritten, ConsentMethodDigital:
		return true
	default:
		return false
	}
}

// ConsentStatus は同意レコードの状態を表す。
type ConsentStatus string

const (
	// ConsentStatusGranted は同意が有効な状態。
	ConsentStatusGranted ConsentStatus = "granted"
	// ConsentStatusRevoked は同意が取り消された状態。
	ConsentStatusRevoked ConsentStatus = "revoked"
)

// Consent は連絡先からの同意取得記録1件を表す。
// 台帳として扱い、取り消しはRevokedAtの記録で表現する。
// 行の削除は連絡先の削除・退会時以外は行わない。
type Consent struct {
	ID        string
	UserID    string
	ContactID string
	Kind      ConsentKind
	Status    ConsentStatus
	Method    ConsentMethod
	Note      string
	GrantedAt time.Time
	RevokedAt *time.Time
	ExpiresAt *time.Time
	CreatedAt time.Time
}

// IsActive は指定時刻において同意が有効かどうかを判定する。
// 取り消し済み、または有効期限切れの場合はfalse。
func (c *Consent) IsActive(now time.Time) bool {
	if c.Status != ConsentStatusGranted || c.RevokedAt != nil {
		return false
	}
	if c.ExpiresAt != nil && !c.ExpiresAt.After(now) {
		return false
	}
	return true
}
