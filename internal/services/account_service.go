package services

import (
	"context"
	"strings"

	"pharmahub/internal/apperr"
	"pharmahub/internal/models"
	"pharmahub/internal/repositories"
)

// AccountService maintains the vendor and pharmacy directory the order
// workflow resolves parties against.
type AccountService struct {
	repo repositories.AccountRepository
}

// NewAccountService creates a new AccountService.
func NewAccountService(repo repositories.AccountRepository) *AccountService {
	return &AccountService{repo: repo}
}

// RegisterAccount adds a directory entry. Admin only.
func (s *AccountService) RegisterAccount(ctx context.Context, actor models.Identity, account *models.Account) error {
	if actor.Role != models.RoleAdmin {
		return apperr.Forbidden("only admins may register accounts")
	}
	if !account.Role.Valid() {
		return apperr.Validation("unknown role %q", account.Role)
	}
	account.Email = strings.ToLower(strings.TrimSpace(account.Email))

	switch account.Role {
	case models.RoleVendor:
		if account.Vendor == nil || account.Vendor.BusinessLicense == "" {
			return apperr.Validation("vendor accounts require a business license")
		}
		account.Pharmacy = nil
	case models.RolePharmacy:
		if account.Pharmacy == nil || account.Pharmacy.PharmacyLicense == "" {
			return apperr.Validation("pharmacy accounts require a pharmacy license")
		}
		account.Vendor = nil
	default:
		account.Vendor, account.Pharmacy = nil, nil
	}
	if account.Role != models.RoleAdmin && account.BusinessName == "" {
		return apperr.Validation("business_name is required")
	}
	return s.repo.Create(ctx, account)
}

// GetAccount returns a directory entry to an admin or to the account itself.
func (s *AccountService) GetAccount(ctx context.Context, actor models.Identity, id string) (*models.Account, error) {
	if actor.Role != models.RoleAdmin && actor.SubjectID != id {
		return nil, apperr.Forbidden("not authorized to view account %s", id)
	}
	return s.repo.GetByID(ctx, id)
}
