package booking

import (
	"context"
	"errors"
	"time"

	"petsitter/pkg/apperror"
	"petsitter/pkg/calendar"
	"petsitter/pkg/models"

	"gorm.io/gorm"
)

var now = time.Now

// Location is the zone slot dates and clock times are written in.
var Location = time.UTC

// Roles are the capabilities an actor holds on one booking.
type Roles struct {
	Requester     bool
	ProviderOwner bool
}

func (r Roles) Stakeholder() bool {
	return r.Requester || r.ProviderOwner
}

// ResolveRoles works out once per request what actorID may do with b. sitterOwnerID is
// the user owning b's sitter profile, empty if the profile is gone.
func ResolveRoles(b *models.Booking, sitterOwnerID, actorID string) Roles {
	if actorID == "" {
		return Roles{}
	}
	return Roles{
		Requester:     b.UserID == actorID,
		ProviderOwner: sitterOwnerID != "" && sitterOwnerID == actorID,
	}
}

func ValidStatus(s string) bool {
	switch s {
	case models.StatusPending, models.StatusConfirmed, models.StatusCancelled, models.StatusCompleted:
		return true
	}
	return false
}

// Transition decides whether roles allow moving a booking from one status to another.
//
//	pending   -> confirmed  provider owner only
//	pending   -> cancelled  either stakeholder
//	confirmed -> cancelled  either stakeholder
//	confirmed -> completed  provider owner only
//
// cancelled and completed are terminal.
func Transition(from, to string, roles Roles) error {
	if !roles.Stakeholder() {
		return apperror.Forbidden("you are not allowed to modify this booking")
	}
	if !ValidStatus(to) {
		return apperror.Validation("status must be one of pending, confirmed, cancelled, completed")
	}
	if to == models.StatusConfirmed && !roles.ProviderOwner {
		return apperror.Forbidden("only the sitter can confirm a booking")
	}
	switch from {
	case models.StatusCompleted:
		return apperror.InvalidTransition("a completed booking cannot be changed")
	case models.StatusCancelled:
		return apperror.InvalidTransition("a cancelled booking cannot be changed")
	}

	switch to {
	case models.StatusConfirmed:
		if from != models.StatusPending {
			return apperror.InvalidTransition("only a pending booking can be confirmed")
		}
	case models.StatusCancelled:
		// pending and confirmed both reach here
	case models.StatusCompleted:
		if !roles.ProviderOwner {
			return apperror.Forbidden("only the sitter can complete a booking")
		}
		if from != models.StatusConfirmed {
			return apperror.InvalidTransition("only a confirmed booking can be completed")
		}
	default:
		return apperror.InvalidTransition("a booking cannot return to " + to)
	}
	return nil
}

// UpdateStatus applies a status change requested by actorID. The write only lands if the
// booking still has the status the decision was made on.
func UpdateStatus(ctx context.Context, db *gorm.DB, bookingID, actorID, to string) (*models.Booking, error) {
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var b models.Booking
		if err := tx.First(&b, "id = ?", bookingID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("booking not found")
			}
			return apperror.Wrap(err, "failed to load booking")
		}

		ownerID, err := sitterOwner(tx, b.SitterID)
		if err != nil {
			return err
		}
		if err := Transition(b.Status, to, ResolveRoles(&b, ownerID, actorID)); err != nil {
			return err
		}
		if to == models.StatusCompleted && !calendar.Ended(b.Date, b.EndTime, now().In(Location)) {
			return apperror.InvalidTransition("a booking can only be completed after it has ended")
		}

		updates := map[string]interface{}{"status": to}
		switch to {
		case models.StatusConfirmed:
			updates["last_contacted"] = now()
		case models.StatusCancelled, models.StatusCompleted:
			updates["slot_key"] = nil
		}

		res := tx.Model(&models.Booking{}).Where("id = ? AND status = ?", b.ID, b.Status).Updates(updates)
		if res.Error != nil {
			return apperror.Wrap(res.Error, "failed to update booking")
		}
		if res.RowsAffected == 0 {
			return apperror.InvalidTransition("booking was changed by someone else, reload and retry")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return loadWithParties(ctx, db, bookingID)
}

// Cancel is UpdateStatus to cancelled.
func Cancel(ctx context.Context, db *gorm.DB, bookingID, actorID string) (*models.Booking, error) {
	return UpdateStatus(ctx, db, bookingID, actorID, models.StatusCancelled)
}

func sitterOwner(tx *gorm.DB, sitterID string) (string, error) {
	var sitter models.Sitter
	err := tx.Select("id", "user_id").First(&sitter, "id = ?", sitterID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", apperror.Wrap(err, "failed to load sitter")
	}
	return sitter.UserID, nil
}
