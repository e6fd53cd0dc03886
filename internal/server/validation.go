package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/rohitwebstep/synco-sub000/internal/api"
)

// FieldError is one failed struct-tag validation.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// ValidateStruct runs struct-tag validation and returns formatted errors.
func ValidateStruct(s interface{}) []FieldError {
	validate := validator.New()
	var fieldErrors []FieldError

	err := validate.Struct(s)
	if err != nil {
		for _, err := range err.(validator.ValidationErrors) {
			fieldErrors = append(fieldErrors, FieldError{
				Field:   err.Field(),
				Tag:     err.Tag(),
				Message: errorMessage(err),
			})
		}
	}

	return fieldErrors
}

func errorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "email":
		return err.Field() + " must be a valid email address"
	case "min":
		return err.Field() + " must be at least " + err.Param()
	case "max":
		return err.Field() + " must be at most " + err.Param()
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	default:
		return err.Field() + " is invalid"
	}
}

// RespondWithFieldErrors sends validation errors in the standard envelope.
func RespondWithFieldErrors(c *gin.Context, fieldErrors []FieldError) {
	c.JSON(http.StatusBadRequest, api.Response{
		Status:  false,
		Message: "Validation failed",
		Data:    fieldErrors,
	})
}
