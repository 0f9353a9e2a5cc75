package main

import (
	"net/http"

	"petsitter/pkg/auth"
	"petsitter/pkg/availability"
	"petsitter/pkg/models"

	"github.com/gin-gonic/gin"
)

// getAvailability answers with the open slots of one day when ?date is given, otherwise
// with every slot between the optional startDate and endDate.
func getAvailability(c *gin.Context) {
	ctx := c.Request.Context()
	sitterID := c.Param("id")

	var (
		slots []models.SitterAvailability
		err   error
	)
	if day := c.Query("date"); day != "" {
		slots, err = availability.QueryAvailableOnDate(ctx, db, sitterID, day)
	} else {
		slots, err = availability.QuerySlots(ctx, db, sitterID, availability.Range{
			From: c.Query("startDate"),
			To:   c.Query("endDate"),
		})
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, slotsResponse(slots))
}

type slotRequest struct {
	Date        string `json:"date" binding:"required,day"`
	StartTime   string `json:"startTime" binding:"required,clock"`
	EndTime     string `json:"endTime" binding:"required,clock"`
	IsAvailable *bool  `json:"isAvailable"`
}

func setAvailability(c *gin.Context) {
	ctx := c.Request.Context()

	var request struct {
		Availabilities []slotRequest `json:"availabilities" binding:"required,min=1,dive"`
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

	inputs := make([]availability.SlotInput, len(request.Availabilities))
	for i, r := range request.Availabilities {
		open := true
		if r.IsAvailable != nil {
			open = *r.IsAvailable
		}
		inputs[i] = availability.SlotInput{Date: r.Date, StartTime: r.StartTime, EndTime: r.EndTime, IsAvailable: open}
	}

	slots, err := availability.SetSlots(ctx, db, sitter.ID, inputs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, slotsResponse(slots))
}
