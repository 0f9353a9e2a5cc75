package rating

import (
	"context"
	"errors"

	"petsitter/pkg/apperror"
	"petsitter/pkg/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Summary struct {
	Rating      float64
	ReviewCount int
}

type ReviewInput struct {
	Rating  int
	Comment string
	Images  []string
}

// AddReview stores a review of sitterID by authorID. The sitter's aggregate is not
// touched here; callers follow up with OnReviewAdded.
func AddReview(ctx context.Context, db *gorm.DB, sitterID, authorID string, in ReviewInput) (*models.SitterReview, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return nil, apperror.Validation("rating must be between 1 and 5")
	}

	var sitter models.Sitter
	err := db.WithContext(ctx).Select("id", "user_id").First(&sitter, "id = ?", sitterID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("sitter not found")
	}
	if err != nil {
		return nil, apperror.Wrap(err, "failed to load sitter")
	}
	if sitter.UserID == authorID {
		return nil, apperror.Forbidden("you cannot review your own sitter profile")
	}

	review := models.SitterReview{
		SitterID: sitterID,
		UserID:   authorID,
		Rating:   in.Rating,
		Comment:  in.Comment,
		Images:   in.Images,
	}
	if review.Images == nil {
		review.Images = []string{}
	}
	if err := db.WithContext(ctx).Create(&review).Error; err != nil {
		return nil, apperror.Wrap(err, "failed to save review")
	}

	if err := db.WithContext(ctx).Preload("User").First(&review, "id = ?", review.ID).Error; err != nil {
		return nil, apperror.Wrap(err, "failed to load review")
	}
	return &review, nil
}

// OnReviewAdded recomputes the sitter's mean rating and review count from every stored
// review and writes both back. Concurrent recomputes may race; the last write wins and
// the next review corrects it.
func OnReviewAdded(ctx context.Context, db *gorm.DB, sitterID string) (Summary, error) {
	var ratings []int
	err := db.WithContext(ctx).Model(&models.SitterReview{}).
		Where("sitter_id = ?", sitterID).
		Pluck("rating", &ratings).Error
	if err != nil {
		return Summary{}, apperror.Wrap(err, "failed to load ratings")
	}

	summary := summarize(ratings)
	res := db.WithContext(ctx).Model(&models.Sitter{}).Where("id = ?", sitterID).Updates(map[string]interface{}{
		"rating":       summary.Rating,
		"review_count": summary.ReviewCount,
	})
	if res.Error != nil {
		return Summary{}, apperror.Wrap(res.Error, "failed to update sitter rating")
	}
	if res.RowsAffected == 0 {
		return Summary{}, apperror.NotFound("sitter not found")
	}

	zap.L().Debug("sitter rating recomputed",
		zap.String("sitter_id", sitterID),
		zap.Float64("rating", summary.Rating),
		zap.Int("review_count", summary.ReviewCount),
	)
	return summary, nil
}

func summarize(ratings []int) Summary {
	if len(ratings) == 0 {
		return Summary{}
	}
	total := 0
	for _, r := range ratings {
		total += r
	}
	return Summary{Rating: float64(total) / float64(len(ratings)), ReviewCount: len(ratings)}
}

// Reviews lists a sitter's reviews, newest first, with their authors.
func Reviews(ctx context.Context, db *gorm.DB, sitterID string) ([]models.SitterReview, error) {
	var reviews []models.SitterReview
	err := db.WithContext(ctx).Preload("User").
		Where("sitter_id = ?", sitterID).
		Order("created_at DESC").
		Find(&reviews).Error
	if err != nil {
		return nil, apperror.Wrap(err, "failed to load reviews")
	}
	return reviews, nil
}
