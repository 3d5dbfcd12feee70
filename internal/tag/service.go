// Package tag は連絡先へのタグ付けのドメインロジックを提供する。
package tag

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hitoshi/renraku/internal/model"
	"github.com/hitoshi/renraku/internal/repository"
)

// maxTagNameLength はタグ名の最大文字数。
const maxTagNameLength = 50

// defaultContactListLimit はタグ付き連絡先一覧のデフォルト件数。
const defaultContactListLimit = 50

// maxContactListLimit はタグ付き連絡先一覧の上限件数。
const maxContactListLimit = 100

// ContactFinder は連絡先の存在確認のインターフェース。
// repository.ContactRepositoryが実装する。
type ContactFinder interface {
	FindByID(ctx context.Context, userID, id string) (*model.Contact, error)
}

// Service はタグの作成・更新・削除と連絡先への付与のサービス層。
type Service struct {
	tagRepo  repository.TagRepository
	contacts ContactFinder
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(tagRepo repository.TagRepository, contacts ContactFinder) *Service {
	return &Service{
		tagRepo:  tagRepo,
		contacts: contacts,
	}
}

// CreateTagInput はタグ作成の入力。Colorを省略するとデフォルト色になる。
type CreateTagInput struct {
	Name  string
	Color string
}

// UpdateTagInput はタグ更新の入力。nilのフィールドは変更しない。
type UpdateTagInput struct {
	Name  *string
	Color *string
}

// TaggedContactsResult はListContactsByTagの戻り値。
type TaggedContactsResult struct {
	Contacts   []*model.Contact
	NextCursor string
	HasMore    bool
}

// CreateTag はタグを作成する。タグ名はユーザー内で一意
// （大文字小文字を区別しない）。色は#RRGGBB形式で、大文字に正規化して保存する。
func (s *Service) CreateTag(ctx context.Context, userID string, input CreateTagInput) (*model.Tag, error) {
	// 1. 入力の検証
	name := strings.TrimSpace(input.Name)
	if name == "" || utf8.RuneCountInString(name) > maxTagNameLength {
		return nil, model.NewInvalidTagNameError()
	}
	color := model.DefaultTagColor
	if input.Color != "" {
		if !model.IsValidTagColor(input.Color) {
			return nil, model.NewInvalidTagColorError(input.Color)
		}
		color = strings.ToUpper(input.Color)
	}

	// 2. 同名タグの重複確認
	existing, err := s.tagRepo.FindByName(ctx, userID, name)
	if err != nil {
		return nil, fmt.Errorf("タグ名の重複確認に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateTagError(name)
	}

	// 3. タグの保存
	tag := &model.Tag{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      name,
		Color:     color,
		CreatedAt: time.Now(),
	}
	if err := s.tagRepo.Create(ctx, tag); err != nil {
		return nil, fmt.Errorf("タグの作成に失敗しました: %w", err)
	}
	return tag, nil
}

// UpdateTag はタグを部分更新する。タグ名の一意性は変更後の名前でも保たれる。
// 同じタグの表記ゆれ変更（vip → VIP）は重複とみなさない。
func (s *Service) UpdateTag(ctx context.Context, userID, tagID string, input UpdateTagInput) (*model.Tag, error) {
	tag, err := s.tagRepo.FindByID(ctx, userID, tagID)
	if err != nil {
		return nil, fmt.Errorf("タグの取得に失敗しました: %w", err)
	}
	if tag == nil {
		return nil, model.NewTagNotFoundError(tagID)
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" || utf8.RuneCountInString(name) > maxTagNameLength {
			return nil, model.NewInvalidTagNameError()
		}
		existing, err := s.tagRepo.FindByName(ctx, userID, name)
		if err != nil {
			return nil, fmt.Errorf("タグ名の重複確認に失敗しました: %w", err)
		}
		if existing != nil && existing.ID != tag.ID {
			return nil, model.NewDuplicateTagError(name)
		}
		tag.Name = name
	}
	if input.Color != nil {
		if !model.IsValidTagColor(*input.Color) {
			return nil, model.NewInvalidTagColorError(*input.Color)
		}
		tag.Color = strings.ToUpper(*input.Color)
	}

	if err := s.tagRepo.Update(ctx, tag); err != nil {
		return nil, fmt.Errorf("タグの更新に失敗しました: %w", err)
	}
	return tag, nil
}

// DeleteTag はタグを削除する。連絡先への付与もあわせて解除される。
func (s *Service) DeleteTag(ctx context.Context, userID, tagID string) error {
	deleted, err := s.tagRepo.Delete(ctx, userID, tagID)
	if err != nil {
		return fmt.Errorf("タグの削除に失敗しました: %w", err)
	}
	if deleted == 0 {
		return model.NewTagNotFoundError(tagID)
	}
	return nil
}

// ListTags はタグ一覧を付与先連絡先数付きでname昇順で返す。
func (s *Service) ListTags(ctx context.Context, userID string) ([]model.TagWithCount, error) {
	tags, err := s.tagRepo.ListByUserIDWithCounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("タグ一覧の取得に失敗しました: %w", err)
	}
	if tags == nil {
		tags = []model.TagWithCount{}
	}
	return tags, nil
}

// TagContact はタグを連絡先に付与する。既に付与済みの場合は何もしない。
func (s *Service) TagContact(ctx context.Context, userID, contactID, tagID string) error {
	if err := s.validateLink(ctx, userID, contactID, tagID); err != nil {
		return err
	}
	if err := s.tagRepo.AttachContact(ctx, userID, contactID, tagID); err != nil {
		return fmt.Errorf("タグの付与に失敗しました: %w", err)
	}
	return nil
}

// UntagContact はタグの付与を解除する。付与されていない場合も成功扱い。
func (s *Service) UntagContact(ctx context.Context, userID, contactID, tagID string) error {
	if err := s.validateLink(ctx, userID, contactID, tagID); err != nil {
		return err
	}
	if _, err := s.tagRepo.DetachContact(ctx, userID, contactID, tagID); err != nil {
		return fmt.Errorf("タグの付与解除に失敗しました: %w", err)
	}
	return nil
}

// validateLink は付与・解除の対象となるタグと連絡先の存在を確認する。
// どちらもテナントスコープ内になければエラーを返す。
func (s *Service) validateLink(ctx context.Context, userID, contactID, tagID string) error {
	tag, err := s.tagRepo.FindByID(ctx, userID, tagID)
	if err != nil {
		return fmt.Errorf("タグの取得に失敗しました: %w", err)
	}
	if tag == nil {
		return model.NewTagNotFoundError(tagID)
	}

	contact, err := s.contacts.FindByID(ctx, userID, contactID)
	if err != nil {
		return fmt.Errorf("連絡先の取得に失敗しました: %w", err)
	}
	if contact == nil {
		return model.NewContactNotFoundError(contactID)
	}
	return nil
}

// ListContactTags は連絡先に付与されたタグをname昇順で返す。
func (s *Service) ListContactTags(ctx context.Context, userID, contactID string) ([]*model.Tag, error) {
	contact, err := s.contacts.FindByID(ctx, userID, contactID)
	if err != nil {
		return nil, fmt.Errorf("連絡先の取得に失敗しました: %w", err)
	}
	if contact == nil {
		return nil, model.NewContactNotFoundError(contactID)
	}

	tags, err := s.tagRepo.ListByContact(ctx, userID, contactID)
	if err != nil {
		return nil, fmt.Errorf("連絡先のタグ一覧の取得に失敗しました: %w", err)
	}
	if tags == nil {
		tags = []*model.Tag{}
	}
	return tags, nil
}

// ListContactsByTag はタグが付与された連絡先をカーソルページネーション付きで返す。
// limit+1件を取得してHasMoreを判定する。
func (s *Service) ListContactsByTag(ctx context.Context, userID, tagID string, limit int, cursor string) (*TaggedContactsResult, error) {
	tag, err := s.tagRepo.FindByID(ctx, userID, tagID)
	if err != nil {
		return nil, fmt.Errorf("タグの取得に失敗しました: %w", err)
	}
	if tag == nil {
		return nil, model.NewTagNotFoundError(tagID)
	}

	if limit <= 0 {
		limit = defaultContactListLimit
	}
	if limit > maxContactListLimit {
		limit = maxContactListLimit
	}

	contacts, err := s.tagRepo.ListContactsByTag(ctx, userID, tagID, limit+1, cursor)
	if err != nil {
		return nil, fmt.Errorf("タグによる連絡先の検索に失敗しました: %w", err)
	}

	hasMore := len(contacts) > limit
	if hasMore {
		contacts = contacts[:limit] // 余分な1件を除外
	}

	var nextCursor string
	if hasMore && len(contacts) > 0 {
		nextCursor = contacts[len(contacts)-1].ID
	}

	return &TaggedContactsResult{
		Contacts:   contacts,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}
