package booking

import (
	"context"
	"errors"
	"strings"

	"petsitter/pkg/apperror"
	"petsitter/pkg/availability"
	"petsitter/pkg/calendar"
	"petsitter/pkg/models"

	"gorm.io/gorm"
)

// ActiveStatuses hold a slot; at most one booking per slot may be in one of them.
var ActiveStatuses = []string{models.StatusPending, models.StatusConfirmed}

type Request struct {
	SitterID     string
	UserID       string
	Date         string
	StartTime    string
	EndTime      string
	ServiceType  string
	Price        int
	PetInfo      string
	SpecialNeeds string
}

// SlotKey identifies a (sitter, day, start time) slot in the bookings table.
func SlotKey(sitterID, day, startTime string) string {
	return strings.Join([]string{sitterID, day, startTime}, "|")
}

// CanBook reports whether a new booking for the slot would be accepted right now. It
// returns ErrSlotUnavailable when no open slot exists and ErrSlotTaken when a pending or
// confirmed booking already holds it. Create repeats the check under a transaction, so a
// nil result here is advisory only.
func CanBook(ctx context.Context, db *gorm.DB, sitterID, date, startTime string) error {
	day, err := calendar.ParseDay(date)
	if err != nil {
		return apperror.Validation(err.Error())
	}
	_, err = checkSlot(db.WithContext(ctx), sitterID, day, startTime, false)
	return err
}

func checkSlot(tx *gorm.DB, sitterID, day, startTime string, lock bool) (*models.SitterAvailability, error) {
	slot, err := availability.FindOpenSlot(tx, sitterID, day, startTime, lock)
	if err != nil {
		return nil, err
	}
	if slot == nil {
		return nil, apperror.ErrSlotUnavailable
	}

	var held int64
	err = tx.Model(&models.Booking{}).
		Where("sitter_id = ? AND date = ? AND start_time = ? AND status IN ?", sitterID, day, startTime, ActiveStatuses).
		Count(&held).Error
	if err != nil {
		return nil, apperror.Wrap(err, "failed to check existing bookings")
	}
	if held > 0 {
		return nil, apperror.ErrSlotTaken
	}
	return slot, nil
}

// Create books a slot for req.UserID. The availability check, the conflict check and the
// insert share one transaction; the unique slot key on bookings is the final arbiter when
// two requests race past the checks.
func Create(ctx context.Context, db *gorm.DB, req Request) (*models.Booking, error) {
	day, err := calendar.ParseDay(req.Date)
	if err != nil {
		return nil, apperror.Validation(err.Error())
	}
	start, err := calendar.ParseClock(req.StartTime)
	if err != nil {
		return nil, apperror.Validation("startTime: " + err.Error())
	}
	if req.Price < 0 {
		return nil, apperror.Validation("price must not be negative")
	}

	var created models.Booking
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sitter models.Sitter
		if err := tx.Select("id", "user_id").First(&sitter, "id = ?", req.SitterID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("sitter not found")
			}
			return apperror.Wrap(err, "failed to load sitter")
		}
		if sitter.UserID == req.UserID {
			return apperror.Validation("you cannot book your own sitter profile")
		}

		slot, err := checkSlot(tx, sitter.ID, day, start, true)
		if err != nil {
			return err
		}

		end := slot.EndTime
		if req.EndTime != "" {
			if end, err = calendar.ParseClock(req.EndTime); err != nil {
				return apperror.Validation("endTime: " + err.Error())
			}
			if !calendar.Before(start, end) {
				return apperror.Validation("endTime must be after startTime")
			}
		}

		key := SlotKey(sitter.ID, day, start)
		created = models.Booking{
			SitterID:     sitter.ID,
			UserID:       req.UserID,
			Date:         day,
			StartTime:    start,
			EndTime:      end,
			ServiceType:  req.ServiceType,
			Price:        req.Price,
			PetInfo:      req.PetInfo,
			SpecialNeeds: req.SpecialNeeds,
			Status:       models.StatusPending,
			SlotKey:      &key,
		}
		return insert(tx, &created)
	})
	if err != nil {
		return nil, err
	}
	return loadWithParties(ctx, db, created.ID)
}

func insert(tx *gorm.DB, b *models.Booking) error {
	err := tx.Create(b).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperror.ErrSlotTaken
	}
	return apperror.Wrap(err, "failed to create booking")
}
