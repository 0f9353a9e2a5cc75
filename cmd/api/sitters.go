package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"petsitter/pkg/apperror"
	"petsitter/pkg/auth"
	"petsitter/pkg/availability"
	"petsitter/pkg/calendar"
	"petsitter/pkg/models"
	"petsitter/pkg/rating"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// loadOwnedSitter returns the sitter only if actorID owns it.
func loadOwnedSitter(ctx context.Context, sitterID, actorID string) (*models.Sitter, error) {
	var sitter models.Sitter
	err := db.WithContext(ctx).First(&sitter, "id = ?", sitterID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("sitter not found")
	}
	if err != nil {
		return nil, apperror.Wrap(err, "failed to load sitter")
	}
	if sitter.UserID != actorID {
		return nil, apperror.Forbidden("you do not own this sitter profile")
	}
	return &sitter, nil
}

func queryInt(c *gin.Context, key string) (int, bool, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false, apperror.Validation(key + " must be a non-negative integer")
	}
	return n, true, nil
}

func listSitters(c *gin.Context) {
	ctx := c.Request.Context()
	q := db.WithContext(ctx).Model(&models.Sitter{}).Preload("User").Preload("Services")

	if city := c.Query("city"); city != "" {
		q = q.Where("city = ?", city)
	}
	minPrice, ok, err := queryInt(c, "minPrice")
	if err != nil {
		respondError(c, err)
		return
	}
	if ok {
		q = q.Where("base_price >= ?", minPrice)
	}
	maxPrice, ok, err := queryInt(c, "maxPrice")
	if err != nil {
		respondError(c, err)
		return
	}
	if ok {
		q = q.Where("base_price <= ?", maxPrice)
	}
	if serviceType := c.Query("serviceType"); serviceType != "" {
		q = q.Where("EXISTS (SELECT 1 FROM sitter_services ss WHERE ss.sitter_id = sitters.id AND ss.service_type = ?)", serviceType)
	}

	day := ""
	if raw := c.Query("date"); raw != "" {
		if day, err = calendar.ParseDay(raw); err != nil {
			respondError(c, apperror.Validation("date: "+err.Error()))
			return
		}
		q = q.Where("EXISTS (SELECT 1 FROM sitter_availabilities sa WHERE sa.sitter_id = sitters.id AND sa.date = ? AND sa.is_available = ?)", day, true)
	}

	switch c.DefaultQuery("sortBy", "rating") {
	case "price_asc":
		q = q.Order("base_price ASC")
	case "price_desc":
		q = q.Order("base_price DESC")
	case "rating":
		q = q.Order("rating DESC")
	default:
		respondError(c, apperror.Validation("sortBy must be one of price_asc, price_desc, rating"))
		return
	}

	var sitters []models.Sitter
	if err := q.Order("created_at ASC").Find(&sitters).Error; err != nil {
		respondError(c, apperror.Wrap(err, "failed to load sitters"))
		return
	}

	slotsBySitter := map[string][]models.SitterAvailability{}
	if day != "" && len(sitters) > 0 {
		ids := make([]string, len(sitters))
		for i, s := range sitters {
			ids[i] = s.ID
		}
		var slots []models.SitterAvailability
		err := db.WithContext(ctx).
			Where("sitter_id IN ? AND date = ? AND is_available = ?", ids, day, true).
			Order("start_time ASC").
			Find(&slots).Error
		if err != nil {
			respondError(c, apperror.Wrap(err, "failed to load availability"))
			return
		}
		for _, s := range slots {
			slotsBySitter[s.SitterID] = append(slotsBySitter[s.SitterID], s)
		}
	}

	items := make([]gin.H, len(sitters))
	for i := range sitters {
		items[i] = sitterResponse(&sitters[i])
		if day != "" {
			items[i]["availability"] = slotsResponse(slotsBySitter[sitters[i].ID])
		}
	}
	c.JSON(http.StatusOK, items)
}

func getSitter(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	var sitter models.Sitter
	err := db.WithContext(ctx).Preload("User").Preload("Services").First(&sitter, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(c, apperror.NotFound("sitter not found"))
		return
	}
	if err != nil {
		respondError(c, apperror.Wrap(err, "failed to load sitter"))
		return
	}

	reviews, err := rating.Reviews(ctx, db, id)
	if err != nil {
		respondError(c, err)
		return
	}
	upcoming, err := availability.QuerySlots(ctx, db, id, availability.Range{From: calendar.Today()})
	if err != nil {
		respondError(c, err)
		return
	}

	response := sitterResponse(&sitter)
	response["reviews"] = reviewsResponse(reviews)
	response["availability"] = slotsResponse(upcoming)
	c.JSON(http.StatusOK, response)
}

type sitterRequest struct {
	Name           *string  `json:"name" binding:"omitempty,min=1,max=120"`
	Avatar         *string  `json:"avatar"`
	Description    *string  `json:"description"`
	BasePrice      *int     `json:"basePrice" binding:"omitempty,min=0"`
	City           *string  `json:"city"`
	Address        *string  `json:"address"`
	Latitude       *float64 `json:"latitude" binding:"omitempty,latitude"`
	Longitude      *float64 `json:"longitude" binding:"omitempty,longitude"`
	Experience     *int     `json:"experience" binding:"omitempty,min=0"`
	Certifications []string `json:"certifications"`
}

func (r sitterRequest) apply(s *models.Sitter) {
	if r.Name != nil {
		s.Name = *r.Name
	}
	if r.Avatar != nil {
		s.Avatar = *r.Avatar
	}
	if r.Description != nil {
		s.Description = *r.Description
	}
	if r.BasePrice != nil {
		s.BasePrice = *r.BasePrice
	}
	if r.City != nil {
		s.City = *r.City
	}
	if r.Address != nil {
		s.Address = *r.Address
	}
	if r.Latitude != nil {
		s.Latitude = *r.Latitude
	}
	if r.Longitude != nil {
		s.Longitude = *r.Longitude
	}
	if r.Experience != nil {
		s.Experience = *r.Experience
	}
	if r.Certifications != nil {
		s.Certifications = r.Certifications
	}
}

func createSitter(c *gin.Context) {
	ctx := c.Request.Context()
	userID := auth.UserID(c)

	var request sitterRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondBindError(c, err)
		return
	}
	if request.Name == nil || request.BasePrice == nil {
		respondError(c, apperror.Validation("name and basePrice are required"))
		return
	}

	var existing int64
	if err := db.WithContext(ctx).Model(&models.Sitter{}).Where("user_id = ?", userID).Count(&existing).Error; err != nil {
		respondError(c, apperror.Wrap(err, "failed to check sitter profile"))
		return
	}
	if existing > 0 {
		respondError(c, apperror.Validation("you already have a sitter profile"))
		return
	}

	sitter := models.Sitter{UserID: userID, Certifications: []string{}, LastActive: now()}
	request.apply(&sitter)
	if err := db.WithContext(ctx).Create(&sitter).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			respondError(c, apperror.Validation("you already have a sitter profile"))
			return
		}
		respondError(c, apperror.Wrap(err, "failed to create sitter"))
		return
	}

	if err := db.WithContext(ctx).Preload("User").First(&sitter, "id = ?", sitter.ID).Error; err != nil {
		respondError(c, apperror.Wrap(err, "failed to load sitter"))
		return
	}
	c.JSON(http.StatusCreated, sitterResponse(&sitter))
}

func updateSitter(c *gin.Context) {
	ctx := c.Request.Context()

	var request sitterRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondBindError(c, err)
		return
	}

	sitter, err := loadOwnedSitter(ctx, c.Param("id"), auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	request.apply(sitter)
	sitter.LastActive = now()
	if err := db.WithContext(ctx).Save(sitter).Error; err != nil {
		respondError(c, apperror.Wrap(err, "failed to update sitter"))
		return
	}

	if err := db.WithContext(ctx).Preload("User").Preload("Services").First(sitter, "id = ?", sitter.ID).Error; err != nil {
		respondError(c, apperror.Wrap(err, "failed to load sitter"))
		return
	}
	c.JSON(http.StatusOK, sitterResponse(sitter))
}

// deleteSitter removes the profile with its services, slots and reviews. Bookings stay in
// the ledger.
func deleteSitter(c *gin.Context) {
	ctx := c.Request.Context()

	sitter, err := loadOwnedSitter(ctx, c.Param("id"), auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{&models.SitterService{}, &models.SitterAvailability{}, &models.SitterReview{}} {
			if err := tx.Where("sitter_id = ?", sitter.ID).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Sitter{}, "id = ?", sitter.ID).Error
	})
	if err != nil {
		respondError(c, apperror.Wrap(err, "failed to delete sitter"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "sitter deleted"})
}

func addService(c *gin.Context) {
	ctx := c.Request.Context()

	var request struct {
		ServiceType string `json:"serviceType" binding:"required,max=40"`
		Price       *int   `json:"price" binding:"required,min=0"`
		Description string `json:"description"`
		Duration    int    `json:"duration" binding:"min=0"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		respondBindError(c, err)
		return
	}

	sitter, err := loadOwnedSitter(ctx, c.Param("id"), auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	service := models.SitterService{
		SitterID:    sitter.ID,
		ServiceType: request.ServiceType,
		Price:       *request.Price,
		Description: request.Description,
		Duration:    request.Duration,
	}
	if err := db.WithContext(ctx).Create(&service).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			respondError(c, apperror.Validation("this sitter already offers "+request.ServiceType))
			return
		}
		respondError(c, apperror.Wrap(err, "failed to add service"))
		return
	}
	c.JSON(http.StatusCreated, serviceResponse(service))
}

func loadService(ctx context.Context, sitterID, serviceID string) (*models.SitterService, error) {
	var service models.SitterService
	err := db.WithContext(ctx).First(&service, "id = ? AND sitter_id = ?", serviceID, sitterID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("service not found")
	}
	if err != nil {
		return nil, apperror.Wrap(err, "failed to load service")
	}
	return &service, nil
}

func updateService(c *gin.Context) {
	ctx := c.Request.Context()

	var request struct {
		Price       *int    `json:"price" binding:"omitempty,min=0"`
		Description *string `json:"description"`
		Duration    *int    `json:"duration" binding:"omitempty,min=0"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		respondBindError(c, err)
		return
	}

	sitter, err := loadOwnedSitter(ctx, c.Param("id"), auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	service, err := loadService(ctx, sitter.ID, c.Param("serviceId"))
	if err != nil {
		respondError(c, err)
		return
	}

	if request.Price != nil {
		service.Price = *request.Price
	}
	if request.Description != nil {
		service.Description = *request.Description
	}
	if request.Duration != nil {
		service.Duration = *request.Duration
	}
	if err := db.WithContext(ctx).Save(service).Error; err != nil {
		respondError(c, apperror.Wrap(err, "failed to update service"))
		return
	}
	c.JSON(http.StatusOK, serviceResponse(*service))
}

func deleteService(c *gin.Context) {
	ctx := c.Request.Context()

	sitter, err := loadOwnedSitter(ctx, c.Param("id"), auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	service, err := loadService(ctx, sitter.ID, c.Param("serviceId"))
	if err != nil {
		respondError(c, err)
		return
	}

	if err := db.WithContext(ctx).Delete(service).Error; err != nil {
		respondError(c, apperror.Wrap(err, "failed to delete service"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "service deleted"})
}
