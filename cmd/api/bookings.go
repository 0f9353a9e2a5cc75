package main

import (
	"net/http"

	"petsitter/pkg/auth"
	"petsitter/pkg/booking"

	"github.com/gin-gonic/gin"
)

func getAllBookings(c *gin.Context) {
	bookings, err := booking.ListAll(c.Request.Context(), db)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookingsResponse(bookings))
}

func getBooking(c *gin.Context) {
	b, err := booking.Get(c.Request.Context(), db, c.Param("id"), auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookingResponse(b))
}

func createBooking(c *gin.Context) {
	ctx := c.Request.Context()
	userID := auth.UserID(c)

	var request struct {
		SitterID     string `json:"sitterId" binding:"required"`
		Date         string `json:"date" binding:"required,day"`
		StartTime    string `json:"startTime" binding:"required,clock"`
		EndTime      string `json:"endTime" binding:"omitempty,clock"`
		ServiceType  string `json:"serviceType" binding:"required,max=40"`
		Price        int    `json:"price" binding:"min=0"`
		PetInfo      string `json:"petInfo" binding:"max=2000"`
		SpecialNeeds string `json:"specialNeeds" binding:"max=2000"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		respondBindError(c, err)
		return
	}

	b, err := booking.Create(ctx, db, booking.Request{
		SitterID:     request.SitterID,
		UserID:       userID,
		Date:         request.Date,
		StartTime:    request.StartTime,
		EndTime:      request.EndTime,
		ServiceType:  request.ServiceType,
		Price:        request.Price,
		PetInfo:      request.PetInfo,
		SpecialNeeds: request.SpecialNeeds,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	notifier.Booking(ctx, b, userID)
	c.JSON(http.StatusCreated, bookingResponse(b))
}

func updateBooking(c *gin.Context) {
	ctx := c.Request.Context()
	userID := auth.UserID(c)

	var request struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		respondBindError(c, err)
		return
	}

	b, err := booking.UpdateStatus(ctx, db, c.Param("id"), userID, request.Status)
	if err != nil {
		respondError(c, err)
		return
	}

	notifier.Booking(ctx, b, userID)
	c.JSON(http.StatusOK, bookingResponse(b))
}

func cancelBooking(c *gin.Context) {
	ctx := c.Request.Context()
	userID := auth.UserID(c)

	b, err := booking.Cancel(ctx, db, c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	notifier.Booking(ctx, b, userID)
	c.JSON(http.StatusOK, bookingResponse(b))
}

func getSitterBookings(c *gin.Context) {
	bookings, err := booking.ListForSitter(c.Request.Context(), db, c.Param("sitterId"), auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookingsResponse(bookings))
}

func getMyBookings(c *gin.Context) {
	bookings, err := booking.ListForUser(c.Request.Context(), db, auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookingsResponse(bookings))
}
