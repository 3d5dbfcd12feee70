package model

import "time"

// IdentityKind は連絡先識別子の種別を表す。
type IdentityKind string

const (
	// IdentityKindEmail はメールアドレス識別子。
	IdentityKindEmail IdentityKind = "email"
	// IdentityKindPhone は電話番号識別子。
	IdentityKindPhone IdentityKind = "phone"
	// IdentityKindHandle はSNSハンドル識別子。プロバイダー必須。
	IdentityKindHandle IdentityKind = "handle"
	// IdentityKindProviderID は外部サービス発行の不透明なID。プロバイダー必須。
	IdentityKindProviderID IdentityKind = "provider_id"
)

// ResolveOrder は識別子解決の固定優先順位。
// email → phone → handle → provider_id の順に照合し、最初の一致で確定する。
var ResolveOrder = []IdentityKind{
	IdentityKindEmail,
	IdentityKindPhone,
	IdentityKindHandle,
	IdentityKindProviderID,
}

// IsValidIdentityKind は識別子種別が定義済みかどうかを判定する。
func IsValidIdentityKind(kind IdentityKind) bool {
	switch kind {
	case IdentityKindEmail, IdentityKindPhone, IdentityKindHandle, IdentityKindProviderID:
		return true
	default:
		return false
	}
}

// KindRequiresProvider は種別がプロバイダー指定を必須とするかを返す。
// 同じハンドル文字列でもプロバイダーが異なれば別の識別子として扱う。
func KindRequiresProvider(kind IdentityKind) bool {
	return kind == IdentityKindHandle || kind == IdentityKindProviderID
}

// Identity は正規化済みの連絡先識別子1件を表す。
// 1つの識別子は常に1件の連絡先に紐付く。
// 同じ (kind, value, provider) が複数の連絡先に存在することは
// 書き込み時には拒否せず、重複検出（DuplicateGroup）で後から顕在化させる。
type Identity struct {
	ID        string
	UserID    string
	ContactID string
	Kind      IdentityKind
	Value     string
	Provider  string // email/phone では空文字列
	CreatedAt time.Time
}

// DuplicateGroup は複数の連絡先に共有されている識別子値のグループを表す。
type DuplicateGroup struct {
	Kind       IdentityKind
	Value      string
	Provider   string
	ContactIDs []string
}
