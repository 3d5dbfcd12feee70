// Package identity は連絡先識別子の正規化と解決のドメインロジックを提供する。
package identity

import (
	"strings"

	"github.com/hitoshi/renraku/internal/model"
	"github.com/mcnijman/go-emailaddress"
)

// minPhoneDigits は電話番号として受け付ける正規化後の最小桁数。
const minPhoneDigits = 7

// nanpDigits は国番号1を含む北米形式の桁数。
const nanpDigits = 11

// NormalizeEmail はメールアドレスを正規形（前後空白除去 + 小文字化）に変換する。
// @をちょうど1つ含み、ローカル部とドメイン部がともに空でない形式のみ受け付ける。
// 正規化は冪等で、正規化済みの値を渡しても同じ値が返る。
func NormalizeEmail(raw string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" {
		return "", model.NewInvalidEmailError("空の値")
	}
	if _, err := emailaddress.Parse(normalized); err != nil {
		return "", model.NewInvalidEmailError(normalized)
	}
	return normalized, nil
}

// NormalizePhone は電話番号を数字のみの正規形に変換する。
// 全ての非数字文字を取り除いた後、11桁で先頭が1の場合は北米形式の
// 国番号とみなして先頭の1を落とす。これにより "+1-555-123-4567" と
// "5551234567" が同じ正規形になる。正規化後7桁未満の値は受け付けない。
// 国番号を明示しない数字列は国をまたいで衝突し得るが、単一の診療所が
// 扱う番号圏では実害より正規形の単純さを優先する。
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	normalized := b.String()

	if len(normalized) == nanpDigits && normalized[0] == '1' {
		normalized = normalized[1:]
	}

	if len(normalized) < minPhoneDigits {
		return "", model.NewInvalidPhoneError(raw)
	}
	return normalized, nil
}

// NormalizeHandle はSNSハンドルを正規形に変換する。
// 前後の空白と先頭の@を取り除き小文字化する。"@Alice" と "alice" は
// 同じハンドルとして扱う。
func NormalizeHandle(raw string) (string, error) {
	normalized := strings.TrimLeft(strings.TrimSpace(raw), "@")
	normalized = strings.ToLower(normalized)
	if normalized == "" {
		return "", model.NewInvalidHandleError()
	}
	return normalized, nil
}

// ValidateProviderID は外部サービス発行のIDを検証する。
// 不透明なトークンのため正規化は行わず、空白のみの値だけを拒否する。
func ValidateProviderID(value string) (string, error) {
	if strings.TrimSpace(value) == "" {
		return "", model.NewInvalidProviderIDError()
	}
	return value, nil
}

// ValidateProvider はプロバイダーキーを検証する。
// 大文字小文字を区別してそのまま保存するため、空白のみの値だけを拒否する。
func ValidateProvider(kind model.IdentityKind, provider string) error {
	if strings.TrimSpace(provider) == "" {
		return model.NewProviderRequiredError(string(kind))
	}
	return nil
}

// NormalizeValue は種別に応じた正規化を適用する。
// resolve など種別を動的に扱う呼び出し側のための入口で、
// 各add*操作と同一の正規化規則を適用する。
func NormalizeValue(kind model.IdentityKind, raw string) (string, error) {
	switch kind {
	case model.IdentityKindEmail:
		return NormalizeEmail(raw)
	case model.IdentityKindPhone:
		return NormalizePhone(raw)
	case model.IdentityKindHandle:
		return NormalizeHandle(raw)
	case model.IdentityKindProviderID:
		return ValidateProviderID(raw)
	default:
		return "", model.NewInvalidIdentityKindError(string(kind))
	}
}
