package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"petsitter/pkg/calendar"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// Register adds the "day" and "clock" tags to gin's validator so request structs can
// declare `binding:"required,day"` and `binding:"required,clock"`.
func Register() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("day", func(fl validator.FieldLevel) bool {
			_, err := calendar.ParseDay(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
			_, err := calendar.ParseClock(fl.Field().String())
			return err == nil
		})
	})
}

// Describe renders binding errors as "field: rule" pairs for the response body.
func Describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
