package repositories

import (
	"context"
	"sync"
	"time"

	"pharmahub/internal/apperr"
	"pharmahub/internal/models"

	"github.com/google/uuid"
)

// MockAccountRepository is an in-memory implementation of AccountRepository.
type MockAccountRepository struct {
	accounts map[string]models.Account
	mu       sync.RWMutex
}

// NewMockAccountRepository creates a new instance of MockAccountRepository.
func NewMockAccountRepository() *MockAccountRepository {
	return &MockAccountRepository{
		accounts: make(map[string]models.Account),
	}
}

// Create adds a new account.
func (r *MockAccountRepository) Create(ctx context.Context, account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if !account.Role.Valid() {
		return apperr.Validation("unknown role %q", account.Role)
	}
	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now
	r.accounts[account.ID] = *account
	return nil
}

// GetByID returns an account by its ID.
func (r *MockAccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.accounts[id]
	if !ok {
		return nil, apperr.NotFound("account with ID %s not found", id)
	}
	return &account, nil
}

// FindByRole returns the account only if it holds role.
func (r *MockAccountRepository) FindByRole(ctx context.Context, id string, role models.Role) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.accounts[id]
	if !ok || account.Role != role {
		return nil, apperr.NotFound("%s with ID %s not found", role, id)
	}
	return &account, nil
}
