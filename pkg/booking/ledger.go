package booking

import (
	"context"
	"errors"

	"petsitter/pkg/apperror"
	"petsitter/pkg/models"

	"gorm.io/gorm"
)

func withParties(db *gorm.DB) *gorm.DB {
	return db.Preload("Sitter").Preload("Sitter.User").Preload("User")
}

func loadWithParties(ctx context.Context, db *gorm.DB, id string) (*models.Booking, error) {
	var b models.Booking
	err := withParties(db.WithContext(ctx)).First(&b, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("booking not found")
	}
	if err != nil {
		return nil, apperror.Wrap(err, "failed to load booking")
	}
	return &b, nil
}

// Get returns a booking to one of its stakeholders.
func Get(ctx context.Context, db *gorm.DB, id, actorID string) (*models.Booking, error) {
	var b models.Booking
	err := withParties(db.WithContext(ctx)).Preload("Sitter.Services").First(&b, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("booking not found")
	}
	if err != nil {
		return nil, apperror.Wrap(err, "failed to load booking")
	}

	ownerID := ""
	if b.Sitter != nil {
		ownerID = b.Sitter.UserID
	}
	if !ResolveRoles(&b, ownerID, actorID).Stakeholder() {
		return nil, apperror.Forbidden("you are not allowed to view this booking")
	}
	return &b, nil
}

// ListForSitter returns every booking of a sitter, newest day first. Only the sitter's
// owner may list them.
func ListForSitter(ctx context.Context, db *gorm.DB, sitterID, actorID string) ([]models.Booking, error) {
	var sitter models.Sitter
	err := db.WithContext(ctx).Select("id", "user_id").First(&sitter, "id = ?", sitterID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("sitter not found")
	}
	if err != nil {
		return nil, apperror.Wrap(err, "failed to load sitter")
	}
	if sitter.UserID != actorID {
		return nil, apperror.Forbidden("you are not allowed to view this sitter's bookings")
	}

	var bookings []models.Booking
	err = db.WithContext(ctx).Preload("User").
		Where("sitter_id = ?", sitterID).
		Order("date DESC").Order("start_time DESC").
		Find(&bookings).Error
	if err != nil {
		return nil, apperror.Wrap(err, "failed to load bookings")
	}
	return bookings, nil
}

// ListForUser returns the bookings userID made, newest day first.
func ListForUser(ctx context.Context, db *gorm.DB, userID string) ([]models.Booking, error) {
	var bookings []models.Booking
	err := db.WithContext(ctx).
		Preload("Sitter").Preload("Sitter.User").Preload("Sitter.Services").
		Where("user_id = ?", userID).
		Order("date DESC").Order("start_time DESC").
		Find(&bookings).Error
	if err != nil {
		return nil, apperror.Wrap(err, "failed to load bookings")
	}
	return bookings, nil
}

// ListAll returns every booking, most recently created first.
func ListAll(ctx context.Context, db *gorm.DB) ([]models.Booking, error) {
	var bookings []models.Booking
	err := withParties(db.WithContext(ctx)).Order("created_at DESC").Find(&bookings).Error
	if err != nil {
		return nil, apperror.Wrap(err, "failed to load bookings")
	}
	return bookings, nil
}
