package repositories

import (
	"fmt"

	"pharmahub/internal/models"

	"gorm.io/gorm"
)

// AutoMigrate creates or updates the tables backing the GORM repositories.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Account{}, &models.Medication{}, &models.Order{}); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return nil
}
