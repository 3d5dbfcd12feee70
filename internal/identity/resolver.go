package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/renraku/internal/model"
	"github.com/hitoshi/renraku/internal/repository"
)

// MetricsRecorder は識別子操作のメトリクス記録のインターフェース。
// テスタビリティのためmetrics.Collectorを抽象化する。
type MetricsRecorder interface {
	RecordResolveHit(kind string)
	RecordResolveMiss()
	RecordIdentityCreated(kind string)
}

// ResolveQuery は識別子解決の検索条件。
// 空文字列のフィールドは照合対象外となる。
// ProviderはHandleとProviderIDの照合に共通で使われる。
type ResolveQuery struct {
	Email      string
	Phone      string
	Handle     string
	ProviderID string
	Provider   string
}

// Resolver は連絡先識別子の登録・解決・統合を行うサービス層。
// 正規化 → 連絡先の存在確認 → 保存/照合 のフローを統括する。
type Resolver struct {
	identityRepo repository.IdentityRepository
	contactRepo  repository.ContactRepository
	metrics      MetricsRecorder
}

// NewResolver はResolverの新しいインスタンスを生成する。
func NewResolver(
	identityRepo repository.IdentityRepository,
	contactRepo repository.ContactRepository,
	metrics MetricsRecorder,
) *Resolver {
	return &Resolver{
		identityRepo: identityRepo,
		contactRepo:  contactRepo,
		metrics:      metrics,
	}
}

// AddEmail は連絡先にメールアドレス識別子を登録する。
// 値は保存前に正規化され、同じ連絡先への再登録は既存行を返す。
func (s *Resolver) AddEmail(ctx context.Context, userID, contactID, raw string) (*model.Identity, error) {
	value, err := NormalizeEmail(raw)
	if err != nil {
		return nil, err
	}
	return s.addIdentity(ctx, userID, contactID, model.IdentityKindEmail, value, "")
}

// AddPhone は連絡先に電話番号識別子を登録する。
// 値は保存前に数字のみの正規形に変換される。
func (s *Resolver) AddPhone(ctx context.Context, userID, contactID, raw string) (*model.Identity, error) {
	value, err := NormalizePhone(raw)
	if err != nil {
		return nil, err
	}
	return s.addIdentity(ctx, userID, contactID, model.IdentityKindPhone, value, "")
}

// AddHandle は連絡先にSNSハンドル識別子を登録する。
// プロバイダーは必須で、大文字小文字を保ったまま保存される。
func (s *Resolver) AddHandle(ctx context.Context, userID, contactID, provider, raw string) (*model.Identity, error) {
	if err := ValidateProvider(model.IdentityKindHandle, provider); err != nil {
		return nil, err
	}
	value, err := NormalizeHandle(raw)
	if err != nil {
		return nil, err
	}
	return s.addIdentity(ctx, userID, contactID, model.IdentityKindHandle, value, provider)
}

// AddProviderID は連絡先に外部サービス発行のID識別子を登録する。
// 値は不透明なトークンとして正規化せずそのまま保存される。
func (s *Resolver) AddProviderID(ctx context.Context, userID, contactID, provider, id string) (*model.Identity, error) {
	if err := ValidateProvider(model.IdentityKindProviderID, provider); err != nil {
		return nil, err
	}
	value, err := ValidateProviderID(id)
	if err != nil {
		return nil, err
	}
	return s.addIdentity(ctx, userID, contactID, model.IdentityKindProviderID, value, provider)
}

// addIdentity は正規化済みの識別子を保存する共通フロー。
// フロー: 連絡先の存在確認 → 保存
func (s *Resolver) addIdentity(ctx context.Context, userID, contactID string, kind model.IdentityKind, value, provider string) (*model.Identity, error) {
	// 1. 連絡先の存在確認（テナントスコープ）
	contact, err := s.contactRepo.FindByID(ctx, userID, contactID)
	if err != nil {
		return nil, fmt.Errorf("連絡先の取得に失敗しました: %w", err)
	}
	if contact == nil {
		return nil, model.NewContactNotFoundError(contactID)
	}

	// 2. 識別子の保存（同一連絡先への同一識別子は既存行が返る）
	now := time.Now()
	identity := &model.Identity{
		ID:        uuid.New().String(),
		UserID:    userID,
		ContactID: contactID,
		Kind:      kind,
		Value:     value,
		Provider:  provider,
		CreatedAt: now,
	}
	created, err := s.identityRepo.Create(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("識別子の作成に失敗しました: %w", err)
	}

	// 再登録で既存行が返った場合は新規登録として数えない
	if created.ID == identity.ID {
		s.metrics.RecordIdentityCreated(string(kind))
	}
	return created, nil
}

// Resolve は与えられた識別子群から連絡先を1件特定する。
// 照合は email → phone → handle → provider_id の固定優先順位で行い、
// 最初に一致した時点で残りの照合を打ち切る。優先順位は呼び出し側の
// フィールド指定順に依存しない。どの識別子にも一致しなかった場合は
// (nil, nil) を返し、エラーにはしない。
func (s *Resolver) Resolve(ctx context.Context, userID string, query ResolveQuery) (*string, error) {
	// 1. 供給された識別子を先に全て正規化する。不正な値が1つでもあれば
	//    ストアには一切問い合わせずに検証エラーを返す。
	values := make(map[model.IdentityKind]string, len(model.ResolveOrder))

	if query.Email != "" {
		value, err := NormalizeEmail(query.Email)
		if err != nil {
			return nil, err
		}
		values[model.IdentityKindEmail] = value
	}
	if query.Phone != "" {
		value, err := NormalizePhone(query.Phone)
		if err != nil {
			return nil, err
		}
		values[model.IdentityKindPhone] = value
	}
	if query.Handle != "" {
		if err := ValidateProvider(model.IdentityKindHandle, query.Provider); err != nil {
			return nil, err
		}
		value, err := NormalizeHandle(query.Handle)
		if err != nil {
			return nil, err
		}
		values[model.IdentityKindHandle] = value
	}
	if query.ProviderID != "" {
		if err := ValidateProvider(model.IdentityKindProviderID, query.Provider); err != nil {
			return nil, err
		}
		value, err := ValidateProviderID(query.ProviderID)
		if err != nil {
			return nil, err
		}
		values[model.IdentityKindProviderID] = value
	}

	// 2. 固定優先順位で照合する。各種別につきストア呼び出しは1回。
	for _, kind := range model.ResolveOrder {
		value, ok := values[kind]
		if !ok {
			continue
		}
		provider := ""
		if model.KindRequiresProvider(kind) {
			provider = query.Provider
		}
		found, err := s.identityRepo.FindFirstByKindValue(ctx, userID, kind, value, provider)
		if err != nil {
			return nil, fmt.Errorf("%sによる識別子の検索に失敗しました: %w", kind, err)
		}
		if found != nil {
			s.metrics.RecordResolveHit(string(kind))
			contactID := found.ContactID
			return &contactID, nil
		}
	}

	// 3. 不一致は正常系
	s.metrics.RecordResolveMiss()
	return nil, nil
}

// GetContactIdentities は連絡先の全識別子を登録順で取得する。
// 存在しない連絡先は空のリストになる。
func (s *Resolver) GetContactIdentities(ctx context.Context, userID, contactID string) ([]*model.Identity, error) {
	identities, err := s.identityRepo.ListByContact(ctx, userID, contactID)
	if err != nil {
		return nil, fmt.Errorf("識別子一覧の取得に失敗しました: %w", err)
	}
	return identities, nil
}

// FindContactsByIdentity は識別子値を持つ連絡先のIDを重複なしで返す。
// 値は照合前に各add操作と同じ規則で正規化される。
func (s *Resolver) FindContactsByIdentity(ctx context.Context, userID string, kind model.IdentityKind, rawValue, provider string) ([]string, error) {
	if model.KindRequiresProvider(kind) {
		if err := ValidateProvider(kind, provider); err != nil {
			return nil, err
		}
	} else {
		// email/phoneはプロバイダーを持たない
		provider = ""
	}
	value, err := NormalizeValue(kind, rawValue)
	if err != nil {
		return nil, err
	}
	contactIDs, err := s.identityRepo.FindContactIDsByKindValue(ctx, userID, kind, value, provider)
	if err != nil {
		return nil, fmt.Errorf("識別子による連絡先の検索に失敗しました: %w", err)
	}
	return contactIDs, nil
}

// FindDuplicateIdentities は複数の連絡先に共有されている識別子値の
// グループを返す。重複は書き込み時に拒否せず、ここで顕在化させる。
func (s *Resolver) FindDuplicateIdentities(ctx context.Context, userID string) ([]model.DuplicateGroup, error) {
	groups, err := s.identityRepo.ListGroupsWithMultipleContacts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("重複識別子グループの取得に失敗しました: %w", err)
	}
	return groups, nil
}

// MergeIdentities はfrom連絡先の全識別子をto連絡先へ付け替える。
// 行は削除されず、同じ統合を再実行しても結果は変わらない。
// 連絡先自体の削除や統合は行わない（連絡先のライフサイクルはcontactサービスの責務）。
func (s *Resolver) MergeIdentities(ctx context.Context, userID, fromContactID, toContactID string) error {
	// 1. 自分自身への統合は拒否
	if fromContactID == toContactID {
		return model.NewMergeSameContactError()
	}

	// 2. 両連絡先の存在確認
	from, err := s.contactRepo.FindByID(ctx, userID, fromContactID)
	if err != nil {
		return fmt.Errorf("統合元連絡先の取得に失敗しました: %w", err)
	}
	if from == nil {
		return model.NewContactNotFoundError(fromContactID)
	}
	to, err := s.contactRepo.FindByID(ctx, userID, toContactID)
	if err != nil {
		return fmt.Errorf("統合先連絡先の取得に失敗しました: %w", err)
	}
	if to == nil {
		return model.NewContactNotFoundError(toContactID)
	}

	// 3. 識別子の付け替え（単一UPDATE、削除なし）
	if _, err := s.identityRepo.ReassignContact(ctx, userID, fromContactID, toContactID); err != nil {
		return fmt.Errorf("識別子の付け替えに失敗しました: %w", err)
	}
	return nil
}

// RemoveIdentity は識別子を1件削除する。
// テナントスコープ外のIDを指定しても何も削除されず、未検出エラーになる。
func (s *Resolver) RemoveIdentity(ctx context.Context, userID, identityID string) error {
	count, err := s.identityRepo.DeleteByID(ctx, userID, identityID)
	if err != nil {
		return fmt.Errorf("識別子の削除に失敗しました: %w", err)
	}
	if count == 0 {
		return model.NewIdentityNotFoundError(identityID)
	}
	return nil
}

// RemoveContactIdentities は連絡先の全識別子を削除し、削除件数を返す。
// 連絡先の削除・匿名化フローから呼ばれる。
func (s *Resolver) RemoveContactIdentities(ctx context.Context, userID, contactID string) (int64, error) {
	count, err := s.identityRepo.DeleteByContact(ctx, userID, contactID)
	if err != nil {
		return 0, fmt.Errorf("識別子の削除に失敗しました: %w", err)
	}
	return count, nil
}

// GetIdentityStats は種別ごとの識別子数を返す。
// 1件もない種別はマップに含まれない。
func (s *Resolver) GetIdentityStats(ctx context.Context, userID string) (map[model.IdentityKind]int, error) {
	stats, err := s.identityRepo.CountByKind(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("種別ごとの識別子数の取得に失敗しました: %w", err)
	}
	return stats, nil
}
