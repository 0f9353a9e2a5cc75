package main

import (
	"net/http"

	"petsitter/pkg/auth"
	"petsitter/pkg/rating"

	"github.com/gin-gonic/gin"
)

func getReviews(c *gin.Context) {
	reviews, err := rating.Reviews(c.Request.Context(), db, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reviewsResponse(reviews))
}

// addReview stores the review, then refreshes the sitter's aggregate. A failed refresh
// does not fail the request; the rating worker retries it.
func addReview(c *gin.Context) {
	ctx := c.Request.Context()

	var request struct {
		Rating  int      `json:"rating" binding:"required,min=1,max=5"`
		Comment string   `json:"comment" binding:"max=2000"`
		Images  []string `json:"images" binding:"max=10,dive,max=500"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		respondBindError(c, err)
		return
	}

	sitterID := c.Param("id")
	review, err := rating.AddReview(ctx, db, sitterID, auth.UserID(c), rating.ReviewInput{
		Rating:  request.Rating,
		Comment: request.Comment,
		Images:  request.Images,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	response := reviewResponse(*review)
	if summary, err := ratings.Recompute(ctx, sitterID); err == nil {
		response["sitterRating"] = summary.Rating
		response["sitterReviewCount"] = summary.ReviewCount
	}
	c.JSON(http.StatusCreated, response)
}
