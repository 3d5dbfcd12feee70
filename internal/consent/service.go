// Package consent は同意取得の台帳管理のドメインロジックを提供する。
// 同意記録は履歴として積み上げ、取り消しも行の更新で表現する。
package consent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/renraku/internal/model"
	"github.com/hitoshi/renraku/internal/repository"
)

// ContactFinder は連絡先の存在確認のインターフェース。
// repository.ContactRepositoryが実装する。
type ContactFinder interface {
	FindByID(ctx context.Context, userID, id string) (*model.Contact, error)
}

// Service は同意の取得・取り消し・確認・集計のサービス層。
type Service struct {
	consentRepo repository.ConsentRepository
	contacts    ContactFinder
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(consentRepo repository.ConsentRepository, contacts ContactFinder) *Service {
	return &Service{
		consentRepo: consentRepo,
		contacts:    contacts,
	}
}

// GrantConsentInput は同意取得の入力。
type GrantConsentInput struct {
	Kind      model.ConsentKind
	Method    model.ConsentMethod
	Note      string
	ExpiresAt *time.Time
}

// GrantConsent は同意を記録する。同じ種別の有効な同意が既にある場合は
// 先に取り消してから新しい記録を追加する（履歴は削除しない）。
// 有効期限は未来の日時のみ受け付ける。
func (s *Service) GrantConsent(ctx context.Context, userID, contactID string, input GrantConsentInput) (*model.Consent, error) {
	// 1. 入力の検証
	if !model.IsValidConsentKind(input.Kind) {
		return nil, model.NewInvalidConsentKindError(string(input.Kind))
	}
	if !model.IsValidConsentMethod(input.Method) {
		return nil, model.NewInvalidConsentMethodError(string(input.Method))
	}
	now := time.Now()
	if input.ExpiresAt != nil && !input.ExpiresAt.After(now) {
		return nil, model.NewInvalidConsentExpiryError()
	}

	// 2. 連絡先の存在確認（テナントスコープ）
	contact, err := s.contacts.FindByID(ctx, userID, contactID)
	if err != nil {
		return nil, fmt.Errorf("連絡先の取得に失敗しました: %w", err)
	}
	if contact == nil {
		return nil, model.NewContactNotFoundError(contactID)
	}

	// 3. 同じ種別の有効な同意を取り消す
	if _, err := s.consentRepo.RevokeActive(ctx, userID, contactID, input.Kind, now); err != nil {
		return nil, fmt.Errorf("既存同意の取り消しに失敗しました: %w", err)
	}

	// 4. 新しい同意記録の追加
	consent := &model.Consent{
		ID:        uuid.New().String(),
		UserID:    userID,
		ContactID: contactID,
		Kind:      input.Kind,
		Status:    model.ConsentStatusGranted,
		Method:    input.Method,
		Note:      strings.TrimSpace(input.Note),
		GrantedAt: now,
		ExpiresAt: input.ExpiresAt,
		CreatedAt: now,
	}
	if err := s.consentRepo.Create(ctx, consent); err != nil {
		return nil, fmt.Errorf("同意記録の作成に失敗しました: %w", err)
	}
	return consent, nil
}

// RevokeConsent は指定種別の有効な同意を取り消す。
// 有効な同意が存在しない場合はCONSENT_NOT_FOUNDを返す。
func (s *Service) RevokeConsent(ctx context.Context, userID, contactID string, kind model.ConsentKind) error {
	if !model.IsValidConsentKind(kind) {
		return model.NewInvalidConsentKindError(string(kind))
	}

	contact, err := s.contacts.FindByID(ctx, userID, contactID)
	if err != nil {
		return fmt.Errorf("連絡先の取得に失敗しました: %w", err)
	}
	if contact == nil {
		return model.NewContactNotFoundError(contactID)
	}

	revoked, err := s.consentRepo.RevokeActive(ctx, userID, contactID, kind, time.Now())
	if err != nil {
		return fmt.Errorf("同意の取り消しに失敗しました: %w", err)
	}
	if revoked == 0 {
		return model.NewConsentNotFoundError(string(kind))
	}
	return nil
}

// CheckConsent は指定種別の有効な同意が存在するかを返す。
// 取り消し済み・期限切れ・未取得はいずれもfalseで、エラーにはしない。
func (s *Service) CheckConsent(ctx context.Context, userID, contactID string, kind model.ConsentKind) (bool, error) {
	if !model.IsValidConsentKind(kind) {
		return false, model.NewInvalidConsentKindError(string(kind))
	}

	consent, err := s.consentRepo.FindActive(ctx, userID, contactID, kind, time.Now())
	if err != nil {
		return false, fmt.Errorf("同意の確認に失敗しました: %w", err)
	}
	return consent != nil, nil
}

// ListContactConsents は連絡先の同意履歴を新しい順で返す。
// 取り消し済み・期限切れの記録も含む完全な台帳を返す。
func (s *Service) ListContactConsents(ctx context.Context, userID, contactID string) ([]*model.Consent, error) {
	contact, err := s.contacts.FindByID(ctx, userID, contactID)
	if err != nil {
		return nil, fmt.Errorf("連絡先の取得に失敗しました: %w", err)
	}
	if contact == nil {
		return nil, model.NewContactNotFoundError(contactID)
	}

	consents, err := s.consentRepo.ListByContact(ctx, userID, contactID)
	if err != nil {
		return nil, fmt.Errorf("同意履歴の取得に失敗しました: %w", err)
	}
	if consents == nil {
		consents = []*model.Consent{}
	}
	return consents, nil
}

// GetConsentOverview は種別ごとの有効な同意数を返す。
// 定義済みの全種別をキーに含み、同意がない種別は0になる。
func (s *Service) GetConsentOverview(ctx context.Context, userID string) (map[model.ConsentKind]int, error) {
	counts, err := s.consentRepo.CountActiveByKind(ctx, userID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("同意サマリーの取得に失敗しました: %w", err)
	}

	overview := map[model.ConsentKind]int{
		model.ConsentKindEmailMarketing:       0,
		model.ConsentKindSMSReminders:         0,
		model.ConsentKindAppointmentReminders: 0,
		model.ConsentKindPHIDisclosure:        0,
		model.ConsentKindDataProcessing:       0,
	}
	for kind, count := range counts {
		overview[kind] = count
	}
	return overview, nil
}
