package main

import (
	"context"

	"petsitter/pkg/auth"
	"petsitter/pkg/availability"
	"petsitter/pkg/calendar"
	"petsitter/pkg/logger"
	"petsitter/pkg/models"

	"go.uber.org/zap"
)

// seedTestData creates demo accounts (one admin) and a sitter with a week of open slots.
// Existing users and sitters are left alone.
func seedTestData() {
	ctx := context.Background()
	l := logger.Logger

	hash, err := auth.HashPassword("password123")
	if err != nil {
		l.Error("Seeding failed", zap.Error(err))
		return
	}

	users := []models.User{
		{Username: "alice", Email: "alice@example.com", PasswordHash: hash, Role: models.RoleUser},
		{Username: "bob", Email: "bob@example.com", PasswordHash: hash, Role: models.RoleUser},
		{Username: "admin", Email: "admin@example.com", PasswordHash: hash, Role: models.RoleAdmin},
	}
	for i := range users {
		var existing models.User
		if err := db.Where("username = ?", users[i].Username).First(&existing).Error; err == nil {
			users[i] = existing
			continue
		}
		if err := db.Create(&users[i]).Error; err != nil {
			l.Error("Seeding user failed", zap.String("username", users[i].Username), zap.Error(err))
			return
		}
	}

	var sitter models.Sitter
	if err := db.Where("user_id = ?", users[0].ID).First(&sitter).Error; err != nil {
		sitter = models.Sitter{
			UserID:         users[0].ID,
			Name:           "Alice",
			Description:    "Dog walker and cat sitter with a big garden",
			BasePrice:      80,
			City:           "Shanghai",
			Experience:     4,
			Certifications: []string{"pet first aid"},
			LastActive:     now(),
			Services: []models.SitterService{
				{ServiceType: "walking", Price: 80, Duration: 60},
				{ServiceType: "boarding", Price: 200, Duration: 24 * 60},
			},
		}
		if err := db.Create(&sitter).Error; err != nil {
			l.Error("Seeding sitter failed", zap.Error(err))
			return
		}
	}

	var slots []availability.SlotInput
	start := now().UTC()
	for d := 1; d <= 7; d++ {
		day := start.AddDate(0, 0, d).Format(calendar.DayLayout)
		slots = append(slots,
			availability.SlotInput{Date: day, StartTime: "09:00", EndTime: "10:00", IsAvailable: true},
			availability.SlotInput{Date: day, StartTime: "14:00", EndTime: "15:00", IsAvailable: true},
		)
	}
	if _, err := availability.SetSlots(ctx, db, sitter.ID, slots); err != nil {
		l.Error("Seeding availability failed", zap.Error(err))
		return
	}
	l.Info("Test data seeded", zap.String("sitter_id", sitter.ID))
}
