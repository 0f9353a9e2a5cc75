// Package availability keeps the per-sitter calendar of offerable slots.
//
// A slot is identified by (sitter, day, start time) and upserting on that key is the only
// way to change one. Slots are deliberately independent from bookings: marking a slot
// unavailable does not touch pending bookings and marking it available does not release
// anything.
package availability

import (
	"context"
	"errors"
	"time"

	"petsitter/pkg/apperror"
	"petsitter/pkg/calendar"
	"petsitter/pkg/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SlotInput struct {
	Date        string
	StartTime   string
	EndTime     string
	IsAvailable bool
}

// Range bounds a slot query by calendar day; empty bounds are open.
type Range struct {
	From string
	To   string
}

func normalize(in SlotInput) (SlotInput, error) {
	day, err := calendar.ParseDay(in.Date)
	if err != nil {
		return in, apperror.Validation(err.Error())
	}
	start, err := calendar.ParseClock(in.StartTime)
	if err != nil {
		return in, apperror.Validation("startTime: " + err.Error())
	}
	end, err := calendar.ParseClock(in.EndTime)
	if err != nil {
		return in, apperror.Validation("endTime: " + err.Error())
	}
	if !calendar.Before(start, end) {
		return in, apperror.Validation("endTime must be after startTime")
	}
	return SlotInput{Date: day, StartTime: start, EndTime: end, IsAvailable: in.IsAvailable}, nil
}

// SetSlot upserts one slot on (sitterID, date, startTime). On conflict only endTime,
// isAvailable and updatedAt change.
func SetSlot(ctx context.Context, db *gorm.DB, sitterID string, in SlotInput) (*models.SitterAvailability, error) {
	in, err := normalize(in)
	if err != nil {
		return nil, err
	}
	return upsert(db.WithContext(ctx), sitterID, in)
}

func upsert(tx *gorm.DB, sitterID string, in SlotInput) (*models.SitterAvailability, error) {
	slot := models.SitterAvailability{
		SitterID:    sitterID,
		Date:        in.Date,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		IsAvailable: in.IsAvailable,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "sitter_id"}, {Name: "date"}, {Name: "start_time"}},
		DoUpdates: clause.AssignmentColumns([]string{"end_time", "is_available", "updated_at"}),
	}).Create(&slot).Error
	if err != nil {
		return nil, apperror.Wrap(err, "failed to save availability")
	}

	// the generated id is lost when the row already existed; read back the stored one
	var stored models.SitterAvailability
	err = tx.Where("sitter_id = ? AND date = ? AND start_time = ?", sitterID, in.Date, in.StartTime).
		First(&stored).Error
	if err != nil {
		return nil, apperror.Wrap(err, "failed to load availability")
	}
	return &stored, nil
}

// SetSlots validates every input, then upserts them all in one transaction and stamps the
// sitter's lastActive and calendarUpdated.
func SetSlots(ctx context.Context, db *gorm.DB, sitterID string, inputs []SlotInput) ([]models.SitterAvailability, error) {
	if len(inputs) == 0 {
		return nil, apperror.Validation("availabilities must not be empty")
	}
	normalized := make([]SlotInput, len(inputs))
	for i, in := range inputs {
		n, err := normalize(in)
		if err != nil {
			return nil, err
		}
		normalized[i] = n
	}

	slots := make([]models.SitterAvailability, 0, len(normalized))
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, in := range normalized {
			slot, err := upsert(tx, sitterID, in)
			if err != nil {
				return err
			}
			slots = append(slots, *slot)
		}
		now := time.Now()
		err := tx.Model(&models.Sitter{}).Where("id = ?", sitterID).
			Updates(map[string]interface{}{"last_active": now, "calendar_updated": now}).Error
		return apperror.Wrap(err, "failed to touch sitter")
	})
	if err != nil {
		return nil, err
	}
	return slots, nil
}

// QuerySlots returns the sitter's slots ordered by day, then start time.
func QuerySlots(ctx context.Context, db *gorm.DB, sitterID string, r Range) ([]models.SitterAvailability, error) {
	query := db.WithContext(ctx).Where("sitter_id = ?", sitterID)
	if r.From != "" {
		from, err := calendar.ParseDay(r.From)
		if err != nil {
			return nil, apperror.Validation("startDate: " + err.Error())
		}
		query = query.Where("date >= ?", from)
	}
	if r.To != "" {
		to, err := calendar.ParseDay(r.To)
		if err != nil {
			return nil, apperror.Validation("endDate: " + err.Error())
		}
		query = query.Where("date <= ?", to)
	}

	var slots []models.SitterAvailability
	if err := query.Order("date ASC").Order("start_time ASC").Find(&slots).Error; err != nil {
		return nil, apperror.Wrap(err, "failed to load availability")
	}
	return slots, nil
}

// QueryAvailableOnDate returns the open slots whose calendar day is day.
func QueryAvailableOnDate(ctx context.Context, db *gorm.DB, sitterID, day string) ([]models.SitterAvailability, error) {
	d, err := calendar.ParseDay(day)
	if err != nil {
		return nil, apperror.Validation(err.Error())
	}
	var slots []models.SitterAvailability
	err = db.WithContext(ctx).
		Where("sitter_id = ? AND date = ? AND is_available = ?", sitterID, d, true).
		Order("start_time ASC").
		Find(&slots).Error
	if err != nil {
		return nil, apperror.Wrap(err, "failed to load availability")
	}
	return slots, nil
}

// FindOpenSlot loads the available slot at (sitterID, day, startTime), or nil if there is
// none. Callers inside a transaction pass lock=true to hold the row until commit.
func FindOpenSlot(tx *gorm.DB, sitterID, day, startTime string, lock bool) (*models.SitterAvailability, error) {
	query := tx
	if lock && tx.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var slot models.SitterAvailability
	err := query.Where("sitter_id = ? AND date = ? AND start_time = ? AND is_available = ?",
		sitterID, day, startTime, true).Take(&slot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.Wrap(err, "failed to check availability")
	}
	return &slot, nil
}
