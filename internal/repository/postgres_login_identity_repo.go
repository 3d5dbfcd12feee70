package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/renraku/internal/model"
)

// PostgresLoginIdentityRepo はPostgreSQLを使用したIdP紐付けリポジトリ。
type PostgresLoginIdentityRepo struct {
	db *sql.DB
}

// NewPostgresLoginIdentityRepo はPostgresLoginIdentityRepoを生成する。
func NewPostgresLoginIdentityRepo(db *sql.DB) *PostgresLoginIdentityRepo {
	return &PostgresLoginIdentityRepo{db: db}
}

// FindByProviderAndProviderUserID はproviderとprovider_user_idで紐付けを検索する。
// 見つからない場合はnilを返す。
func (r *PostgresLoginIdentityRepo) FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.LoginIdentity, error) {
	identity := &model.LoginIdentity{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, provider, provider_user_id, created_at
		 FROM login_identities
		 WHERE provider = $1 AND provider_user_id = $2`,
		provider, providerUserID,
	).Scan(&identity.ID, &identity.UserID, &identity.Provider, &identity.ProviderUserID, &identity.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find login identity: %w", err)
	}

	return identity, nil
}

// compile-time interface check
var _ LoginIdentityRepository = (*PostgresLoginIdentityRepo)(nil)
