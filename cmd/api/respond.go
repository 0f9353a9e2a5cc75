package main

import (
	"net/http"

	"petsitter/pkg/apperror"
	"petsitter/pkg/auth"
	"petsitter/pkg/logger"
	"petsitter/pkg/models"
	"petsitter/pkg/validation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func respondError(c *gin.Context, err error) {
	kind := apperror.KindOf(err)
	if kind == apperror.KindUnexpected {
		logger.Logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("user_id", auth.UserID(c)),
			zap.Error(err),
		)
	}
	c.JSON(apperror.HTTPStatus(err), gin.H{"error": apperror.Message(err), "kind": kind})
}

func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request",
		"details": validation.Describe(err),
		"kind":    apperror.KindValidation,
	})
}

func userSummary(u *models.User) gin.H {
	if u == nil {
		return nil
	}
	return gin.H{
		"id":       u.ID,
		"username": u.Username,
		"avatar":   u.Avatar,
	}
}

func userResponse(u *models.User) gin.H {
	return gin.H{
		"id":        u.ID,
		"username":  u.Username,
		"email":     u.Email,
		"avatar":    u.Avatar,
		"role":      u.Role,
		"createdAt": u.CreatedAt,
	}
}

func serviceResponse(s models.SitterService) gin.H {
	return gin.H{
		"id":          s.ID,
		"sitterId":    s.SitterID,
		"serviceType": s.ServiceType,
		"price":       s.Price,
		"description": s.Description,
		"duration":    s.Duration,
	}
}

func servicesResponse(services []models.SitterService) []gin.H {
	items := make([]gin.H, len(services))
	for i, s := range services {
		items[i] = serviceResponse(s)
	}
	return items
}

func slotResponse(a models.SitterAvailability) gin.H {
	return gin.H{
		"id":          a.ID,
		"sitterId":    a.SitterID,
		"date":        a.Date,
		"startTime":   a.StartTime,
		"endTime":     a.EndTime,
		"isAvailable": a.IsAvailable,
		"updatedAt":   a.UpdatedAt,
	}
}

func slotsResponse(slots []models.SitterAvailability) []gin.H {
	items := make([]gin.H, len(slots))
	for i, a := range slots {
		items[i] = slotResponse(a)
	}
	return items
}

func sitterSummary(s *models.Sitter) gin.H {
	if s == nil {
		return nil
	}
	h := gin.H{
		"id":        s.ID,
		"name":      s.Name,
		"avatar":    s.Avatar,
		"city":      s.City,
		"basePrice": s.BasePrice,
		"rating":    s.Rating,
		"user":      userSummary(s.User),
	}
	if s.Services != nil {
		h["services"] = servicesResponse(s.Services)
	}
	return h
}

func sitterResponse(s *models.Sitter) gin.H {
	certifications := s.Certifications
	if certifications == nil {
		certifications = []string{}
	}
	return gin.H{
		"id":              s.ID,
		"userId":          s.UserID,
		"name":            s.Name,
		"avatar":          s.Avatar,
		"description":     s.Description,
		"basePrice":       s.BasePrice,
		"city":            s.City,
		"address":         s.Address,
		"latitude":        s.Latitude,
		"longitude":       s.Longitude,
		"experience":      s.Experience,
		"certifications":  certifications,
		"rating":          s.Rating,
		"reviewCount":     s.ReviewCount,
		"lastActive":      s.LastActive,
		"calendarUpdated": s.CalendarUpdated,
		"createdAt":       s.CreatedAt,
		"services":        servicesResponse(s.Services),
		"user":            userSummary(s.User),
	}
}

func reviewResponse(r models.SitterReview) gin.H {
	images := r.Images
	if images == nil {
		images = []string{}
	}
	return gin.H{
		"id":        r.ID,
		"sitterId":  r.SitterID,
		"rating":    r.Rating,
		"comment":   r.Comment,
		"images":    images,
		"createdAt": r.CreatedAt,
		"user":      userSummary(r.User),
	}
}

func reviewsResponse(reviews []models.SitterReview) []gin.H {
	items := make([]gin.H, len(reviews))
	for i, r := range reviews {
		items[i] = reviewResponse(r)
	}
	return items
}

func bookingResponse(b *models.Booking) gin.H {
	return gin.H{
		"id":            b.ID,
		"sitterId":      b.SitterID,
		"userId":        b.UserID,
		"date":          b.Date,
		"startTime":     b.StartTime,
		"endTime":       b.EndTime,
		"serviceType":   b.ServiceType,
		"price":         b.Price,
		"petInfo":       b.PetInfo,
		"specialNeeds":  b.SpecialNeeds,
		"status":        b.Status,
		"lastContacted": b.LastContacted,
		"createdAt":     b.CreatedAt,
		"sitter":        sitterSummary(b.Sitter),
		"user":          userSummary(b.User),
	}
}

func bookingsResponse(bookings []models.Booking) []gin.H {
	items := make([]gin.H, len(bookings))
	for i := range bookings {
		items[i] = bookingResponse(&bookings[i])
	}
	return items
}
