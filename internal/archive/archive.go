// Package archive persists finished generations and maintains each user's
// rolling list of produced titles.
package archive

import (
	"fmt"
	"strings"

	"github.com/blogforge/blogforge/internal/models"

	"gorm.io/gorm"
)

// Archive records completed generations.
type Archive struct {
	db *gorm.DB
}

// NewArchive constructs an Archive backed by the given database.
func NewArchive(db *gorm.DB) *Archive {
	return &Archive{db: db}
}

// Record stores a finished generation and appends its title to the user's
// title list in one transaction. The title list deduplicates, so repeated
// titles move to the most-recent position instead of growing the list.
func (a *Archive) Record(gen *models.Generation) error {
	if a == nil || a.db == nil {
		return fmt.Errorf("archive: not initialized")
	}
	if gen == nil {
		return fmt.Errorf("archive: nil generation")
	}

	return a.db.Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(gen).Error; errCreate != nil {
			return fmt.Errorf("archive: store generation: %w", errCreate)
		}

		title := strings.TrimSpace(gen.Title)
		if title == "" {
			return nil
		}

		var user models.User
		if errFind := tx.First(&user, "id = ?", gen.UserID).Error; errFind != nil {
			return fmt.Errorf("archive: load user: %w", errFind)
		}
		user.Titles = user.Titles.Append(title)
		if errSave := tx.Model(&models.User{}).Where("id = ?", user.ID).
			Update("titles", user.Titles).Error; errSave != nil {
			return fmt.Errorf("archive: update titles: %w", errSave)
		}
		return nil
	})
}

// ListGenerations returns the user's generations, newest first.
func (a *Archive) ListGenerations(userID uint64, limit int) ([]models.Generation, error) {
	if a == nil || a.db == nil {
		return nil, fmt.Errorf("archive: not initialized")
	}
	if limit <= 0 {
		limit = 50
	}
	var rows []models.Generation
	if errFind := a.db.Where("user_id = ?", userID).
		Order("id DESC").Limit(limit).Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("archive: list generations: %w", errFind)
	}
	return rows, nil
}

// GetGeneration returns one generation owned by the user.
func (a *Archive) GetGeneration(userID, id uint64) (*models.Generation, error) {
	if a == nil || a.db == nil {
		return nil, fmt.Errorf("archive: not initialized")
	}
	var gen models.Generation
	if errFind := a.db.First(&gen, "id = ? AND user_id = ?", id, userID).Error; errFind != nil {
		return nil, errFind
	}
	return &gen, nil
}

// Titles returns the user's produced titles, oldest first.
func (a *Archive) Titles(userID uint64) (models.TitleList, error) {
	if a == nil || a.db == nil {
		return nil, fmt.Errorf("archive: not initialized")
	}
	var user models.User
	if errFind := a.db.First(&user, "id = ?", userID).Error; errFind != nil {
		return nil, fmt.Errorf("archive: load user: %w", errFind)
	}
	return user.Titles, nil
}
