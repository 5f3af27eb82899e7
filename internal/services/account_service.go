package services

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"example.com/backstage/services/marketsync/internal/cache"
	"example.com/backstage/services/marketsync/internal/marketplace"
	"example.com/backstage/services/marketsync/internal/models"
	"example.com/backstage/services/marketsync/internal/repositories"
)

// AccountRequest carries the tenant identity and marketplace
// credentials for an onboarding or reauthorization call.
type AccountRequest struct {
	AccountID    string `json:"accountId" binding:"required"`
	StoreID      string `json:"storeId" binding:"required"`
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

// AccountService manages marketplace account onboarding.
type AccountService struct {
	accounts *repositories.AccountRepository
	client   *marketplace.Client
	cache    *cache.RedisCache
}

// NewAccountService creates a new account service.
func NewAccountService(accounts *repositories.AccountRepository, client *marketplace.Client, redisCache *cache.RedisCache) *AccountService {
	return &AccountService{
		accounts: accounts,
		client:   client,
		cache:    redisCache,
	}
}

// CreateOrUpdate registers a new account or refreshes an existing one.
// Credentials are validated against the marketplace token endpoint
// before anything is stored. When the flow fails after validation
// started, any account matching the (account id, client id) pairing is
// soft deleted so stale credentials never keep syncing.
func (s *AccountService) CreateOrUpdate(ctx context.Context, req AccountRequest) (*models.Account, error) {
	req.ClientID = strings.TrimSpace(req.ClientID)
	req.ClientSecret = strings.TrimSpace(req.ClientSecret)

	if req.ClientID == "" || req.ClientSecret == "" {
		return nil, errors.WithMessage(ErrValidation, "clientId and clientSecret are required")
	}

	account, err := s.createOrUpdate(ctx, req)
	if err != nil {
		s.deactivateOnFailure(ctx, req)
		return nil, err
	}

	return account, nil
}

func (s *AccountService) createOrUpdate(ctx context.Context, req AccountRequest) (*models.Account, error) {
	token, err := s.client.Token(ctx, req.ClientID, req.ClientSecret)
	if err != nil || token.AccessToken == "" {
		log.Warn().Err(err).Str("account_id", req.AccountID).Msg("Credential validation failed")
		return nil, errors.WithMessage(ErrCredential, "credential validation failed")
	}

	existing, err := s.accounts.GetByClientID(ctx, req.ClientID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if existing != nil {
		if existing.AccountID != req.AccountID {
			return nil, ErrStoreConflict
		}

		// Reauthorization, possibly moving the credentials to a new
		// store under the same account.
		existing.StoreID = req.StoreID
		existing.ClientSecret = req.ClientSecret
		existing.IsDeleted = false

		if err := s.accounts.Save(ctx, existing); err != nil {
			return nil, err
		}

		// The secret changed, a cached token may no longer match it.
		s.cache.InvalidateToken(ctx, existing.ClientID)

		return existing, nil
	}

	account := &models.Account{
		AccountID:    req.AccountID,
		StoreID:      req.StoreID,
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
	}

	if err := s.accounts.Save(ctx, account); err != nil {
		return nil, err
	}

	log.Info().Str("account_id", account.AccountID).Str("store_id", account.StoreID).Msg("Account registered")

	return account, nil
}

// deactivateOnFailure soft deletes the account matching the failed
// request so a broken credential set stops participating in sweeps.
func (s *AccountService) deactivateOnFailure(ctx context.Context, req AccountRequest) {
	account, err := s.accounts.GetByAccountAndClient(ctx, req.AccountID, req.ClientID)
	if err != nil {
		return
	}

	if err := s.accounts.SoftDelete(ctx, account); err != nil {
		log.Error().Err(err).Str("account_id", req.AccountID).Msg("Failed to deactivate account after error")
	}
}

// Delete soft deletes the active account of a store. Deleting an
// account that does not exist is not an error.
func (s *AccountService) Delete(ctx context.Context, accountID, storeID string) error {
	account, err := s.accounts.GetActive(ctx, accountID, storeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	if err := s.accounts.SoftDelete(ctx, account); err != nil {
		return err
	}

	s.cache.InvalidateToken(ctx, account.ClientID)

	log.Info().Str("account_id", accountID).Str("store_id", storeID).Msg("Account deleted")

	return nil
}
