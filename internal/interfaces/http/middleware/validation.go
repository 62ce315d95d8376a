package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/leorit/backend/internal/domain/order"
	"github.com/leorit/backend/internal/interfaces/http/dto"
)

// enumValidators back the custom binding tags used by request DTOs
var enumValidators = map[string]func(string) bool{
	"intent":          func(s string) bool { return order.Intent(s).IsValid() },
	"stage":           func(s string) bool { return order.Stage(s).IsValid() },
	"defect_type":     func(s string) bool { return order.DefectType(s).IsValid() },
	"lifecycle_state": func(s string) bool { return order.LifecycleState(s).IsValid() },
}

// SetupValidator reports fields by their JSON (or form) name and registers
// the lifecycle enum tags
func SetupValidator() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected validator engine")
	}
	return RegisterValidators(v)
}

// RegisterValidators registers the custom tags on v
func RegisterValidators(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		return name
	})
	for tag, valid := range enumValidators {
		if err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return valid(fl.Field().String())
		}); err != nil {
			return err
		}
	}
	return nil
}

// HandleValidationError writes a 400 for a binding failure. Field errors
// are itemised; anything else (malformed JSON, wrong types) is reported
// as invalid JSON.
func HandleValidationError(c *gin.Context, err error) {
	requestID := c.GetString(RequestIDKey)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(dto.ErrCodeInvalidJSON, "Malformed request body", requestID))
		return
	}
	details := make([]dto.ValidationDetail, 0, len(verrs))
	for _, e := range verrs {
		details = append(details, dto.ValidationDetail{Field: e.Field(), Message: validationMessage(e)})
	}
	c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse("Request validation failed", requestID, details))
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "min":
		if e.Kind() == reflect.String {
			return "Must be at least " + e.Param() + " characters"
		}
		return "Must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must be at most " + e.Param()
	case "len":
		return "Must be exactly " + e.Param() + " characters"
	case "uuid":
		return "Invalid UUID format"
	case "oneof":
		return "Must be one of: " + e.Param()
	case "intent":
		return "Must be one of: sample_only sample_then_bulk direct_bulk"
	case "stage":
		return "Must be one of: sample bulk"
	case "defect_type":
		return "Unknown defect type"
	case "lifecycle_state":
		return "Unknown lifecycle state"
	default:
		return "Invalid value"
	}
}
