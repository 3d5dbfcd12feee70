// Package contact は連絡先のライフサイクル管理のドメインロジックを提供する。
package contact

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/renraku/internal/model"
	"github.com/hitoshi/renraku/internal/repository"
)

// defaultListLimit は一覧取得のデフォルト件数。
const defaultListLimit = 50

// maxListLimit は一覧取得の上限件数。
const maxListLimit = 100

// Sanitizer はメモのHTMLサニタイズのインターフェース。
// テスタビリティのためsecurity.ContentSanitizerServiceを抽象化する。
type Sanitizer interface {
	Sanitize(rawHTML string) string
}

// IdentityMerger は連絡先識別子の付け替えと一括削除のインターフェース。
// identity.Resolverが実装する。
type IdentityMerger interface {
	MergeIdentities(ctx context.Context, userID, fromContactID, toContactID string) error
	RemoveContactIdentities(ctx context.Context, userID, contactID string) (int64, error)
}

// TagLinkMover はタグ付与の移動と解除のインターフェース。
type TagLinkMover interface {
	MoveContactLinks(ctx context.Context, userID, fromContactID, toContactID string) error
	DeleteLinksByContact(ctx context.Context, userID, contactID string) error
}

// ConsentReassigner は同意記録の付け替えと削除のインターフェース。
type ConsentReassigner interface {
	ReassignContact(ctx context.Context, userID, fromContactID, toContactID string) (int64, error)
	DeleteByContact(ctx context.Context, userID, contactID string) (int64, error)
}

// TaskRelinker はタスクの連絡先リンクの付け替えと解除のインターフェース。
type TaskRelinker interface {
	ReassignContact(ctx context.Context, userID, fromContactID, toContactID string) (int64, error)
	UnlinkContact(ctx context.Context, userID, contactID string) (int64, error)
}

// Service は連絡先の作成・更新・統合・削除のサービス層。
// 削除と統合では識別子・同意記録・タグ付与・タスクの後始末を統括する。
type Service struct {
	contactRepo repository.ContactRepository
	identities  IdentityMerger
	tags        TagLinkMover
	consents    ConsentReassigner
	tasks       TaskRelinker
	sanitizer   Sanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	contactRepo repository.ContactRepository,
	identities IdentityMerger,
	tags TagLinkMover,
	consents ConsentReassigner,
	tasks TaskRelinker,
	sanitizer Sanitizer,
) *Service {
	return &Service{
		contactRepo: contactRepo,
		identities:  identities,
		tags:        tags,
		consents:    consents,
		tasks:       tasks,
		sanitizer:   sanitizer,
	}
}

// CreateContactInput は連絡先作成の入力。
type CreateContactInput struct {
	FirstName string
	LastName  string
	Company   string
	Notes     string
}

// UpdateContactInput は連絡先更新の入力。nilのフィールドは変更しない。
type UpdateContactInput struct {
	FirstName *string
	LastName  *string
	Company   *string
	Notes     *string
}

// ContactListResult はListContactsの戻り値。
type ContactListResult struct {
	Contacts   []*model.Contact
	NextCursor string
	HasMore    bool
}

// CreateContact は連絡先を作成する。
// 氏名か会社名のいずれかが必須。メモは保存前にサニタイズされる。
func (s *Service) CreateContact(ctx context.Context, userID string, input CreateContactInput) (*model.Contact, error) {
	now := time.Now()
	contact := &model.Contact{
		ID:        uuid.New().String(),
		UserID:    userID,
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
		Company:   strings.TrimSpace(input.Company),
		Notes:     s.sanitizer.Sanitize(input.Notes),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if !contact.HasName() {
		return nil, model.NewInvalidContactError()
	}

	if err := s.contactRepo.Create(ctx, contact); err != nil {
		return nil, fmt.Errorf("連絡先の作成に失敗しました: %w", err)
	}
	return contact, nil
}

// GetContact は連絡先を取得する。見つからない場合はnilを返す。
func (s *Service) GetContact(ctx context.Context, userID, contactID string) (*model.Contact, error) {
	return s.contactRepo.FindByID(ctx, userID, contactID)
}

// UpdateContact は連絡先を部分更新する。指定されたフィールドのみ書き換え、
// メモは再サニタイズされる。
func (s *Service) UpdateContact(ctx context.Context, userID, contactID string, input UpdateContactInput) (*model.Contact, error) {
	contact, err := s.contactRepo.FindByID(ctx, userID, contactID)
	if err != nil {
		return nil, fmt.Errorf("連絡先の取得に失敗しました: %w", err)
	}
	if contact == nil {
		return nil, model.NewContactNotFoundError(contactID)
	}

	if input.FirstName != nil {
		contact.FirstName = strings.TrimSpace(*input.FirstName)
	}
	if input.LastName != nil {
		contact.LastName = strings.TrimSpace(*input.LastName)
	}
	if input.Company != nil {
		contact.Company = strings.TrimSpace(*input.Company)
	}
	if input.Notes != nil {
		contact.Notes = s.sanitizer.Sanitize(*input.Notes)
	}
	if !contact.HasName() {
		return nil, model.NewInvalidContactError()
	}

	contact.UpdatedAt = time.Now()
	if err := s.contactRepo.Update(ctx, contact); err != nil {
		return nil, fmt.Errorf("連絡先の更新に失敗しました: %w", err)
	}
	return contact, nil
}

// ArchiveContact は連絡先をアーカイブする。
func (s *Service) ArchiveContact(ctx context.Context, userID, contactID string) (*model.Contact, error) {
	return s.setArchived(ctx, userID, contactID, true)
}

// UnarchiveContact は連絡先のアーカイブを解除する。
func (s *Service) UnarchiveContact(ctx context.Context, userID, contactID string) (*model.Contact, error) {
	return s.setArchived(ctx, userID, contactID, false)
}

func (s *Service) setArchived(ctx context.Context, userID, contactID string, archived bool) (*model.Contact, error) {
	contact, err := s.contactRepo.FindByID(ctx, userID, contactID)
	if err != nil {
		return nil, fmt.Errorf("連絡先の取得に失敗しました: %w", err)
	}
	if contact == nil {
		return nil, model.NewContactNotFoundError(contactID)
	}

	contact.Archived = archived
	contact.UpdatedAt = time.Now()
	if err := s.contactRepo.Update(ctx, contact); err != nil {
		return nil, fmt.Errorf("連絡先の更新に失敗しました: %w", err)
	}
	return contact, nil
}

// ListContacts は連絡先一覧をカーソルページネーション付きで返す。
// limit+1件を取得してHasMoreを判定する。
func (s *Service) ListContacts(ctx context.Context, userID string, filter model.ContactFilter) (*ContactListResult, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	fetch := filter
	fetch.Limit = limit + 1
	contacts, err := s.contactRepo.List(ctx, userID, fetch)
	if err != nil {
		return nil, fmt.Errorf("連絡先一覧の取得に失敗しました: %w", err)
	}

	hasMore := len(contacts) > limit
	if hasMore {
		contacts = contacts[:limit] // 余分な1件を除外
	}

	var nextCursor string
	if hasMore && len(contacts) > 0 {
		nextCursor = contacts[len(contacts)-1].ID
	}

	return &ContactListResult{
		Contacts:   contacts,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// DeleteContact は連絡先と付随データを削除する。
// フロー: 識別子 → 同意記録 → タグ付与 → タスクのリンク解除 → 連絡先本体
// タスクの行は残り、contact_idだけが外れる。
func (s *Service) DeleteContact(ctx context.Context, userID, contactID string) error {
	// 1. 存在確認（テナントスコープ）
	contact, err := s.contactRepo.FindByID(ctx, userID, contactID)
	if err != nil {
		return fmt.Errorf("連絡先の取得に失敗しました: %w", err)
	}
	if contact == nil {
		return model.NewContactNotFoundError(contactID)
	}

	// 2. 識別子の削除
	if _, err := s.identities.RemoveContactIdentities(ctx, userID, contactID); err != nil {
		return err
	}

	// 3. 同意記録の削除
	if _, err := s.consents.DeleteByContact(ctx, userID, contactID); err != nil {
		return fmt.Errorf("同意記録の削除に失敗しました: %w", err)
	}

	// 4. タグ付与の解除
	if err := s.tags.DeleteLinksByContact(ctx, userID, contactID); err != nil {
		return fmt.Errorf("タグ付与の解除に失敗しました: %w", err)
	}

	// 5. タスクのリンク解除（タスク自体は残す）
	if _, err := s.tasks.UnlinkContact(ctx, userID, contactID); err != nil {
		return fmt.Errorf("タスクのリンク解除に失敗しました: %w", err)
	}

	// 6. 連絡先本体の削除
	if _, err := s.contactRepo.Delete(ctx, userID, contactID); err != nil {
		return fmt.Errorf("連絡先の削除に失敗しました: %w", err)
	}
	return nil
}

// MergeContacts はfrom連絡先の付随データを全てto連絡先へ移し、
// 空になったfrom連絡先を削除する。統合先の連絡先を返す。
// 各段階は順次実行され、途中で失敗した場合は以降の段階を行わず
// エラーを返す（移動済みのデータはそのまま残る）。
func (s *Service) MergeContacts(ctx context.Context, userID, fromContactID, toContactID string) (*model.Contact, error) {
	// 1. 自分自身への統合は拒否
	if fromContactID == toContactID {
		return nil, model.NewMergeSameContactError()
	}

	// 2. 両連絡先の存在確認
	from, err := s.contactRepo.FindByID(ctx, userID, fromContactID)
	if err != nil {
		return nil, fmt.Errorf("統合元連絡先の取得に失敗しました: %w", err)
	}
	if from == nil {
		return nil, model.NewContactNotFoundError(fromContactID)
	}
	to, err := s.contactRepo.FindByID(ctx, userID, toContactID)
	if err != nil {
		return nil, fmt.Errorf("統合先連絡先の取得に失敗しました: %w", err)
	}
	if to == nil {
		return nil, model.NewContactNotFoundError(toContactID)
	}

	// 3. 識別子の付け替え
	if err := s.identities.MergeIdentities(ctx, userID, fromContactID, toContactID); err != nil {
		return nil, err
	}

	// 4. タグ付与の移動（統合先と重複するタグは畳まれる）
	if err := s.tags.MoveContactLinks(ctx, userID, fromContactID, toContactID); err != nil {
		return nil, fmt.Errorf("タグ付与の移動に失敗しました: %w", err)
	}

	// 5. 同意記録の付け替え
	if _, err := s.consents.ReassignContact(ctx, userID, fromContactID, toContactID); err != nil {
		return nil, fmt.Errorf("同意記録の付け替えに失敗しました: %w", err)
	}

	// 6. タスクの付け替え
	if _, err := s.tasks.ReassignContact(ctx, userID, fromContactID, toContactID); err != nil {
		return nil, fmt.Errorf("タスクの付け替えに失敗しました: %w", err)
	}

	// 7. 空になった統合元の削除
	if _, err := s.contactRepo.Delete(ctx, userID, fromContactID); err != nil {
		return nil, fmt.Errorf("統合元連絡先の削除に失敗しました: %w", err)
	}
	return to, nil
}
