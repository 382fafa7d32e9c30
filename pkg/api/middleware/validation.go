package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// BindQueryAndValidate binds query parameters into obj and checks its
// validate tags. On failure it writes the 400 response and returns
// false.
func BindQueryAndValidate(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		AbortWithError(c, http.StatusBadRequest, "INVALID_QUERY", err.Error())
		return false
	}

	if err := validate.Struct(obj); err != nil {
		AbortWithErrorDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Query validation failed", validationDetails(err))
		return false
	}
	return true
}

// validationDetails flattens validator errors into a field -> message
// map for the error response body.
func validationDetails(err error) map[string]interface{} {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]interface{}{"validation": err.Error()}
	}

	details := make(map[string]interface{}, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = fieldMessage(fe)
	}
	return details
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", fe.Field(), fe.Tag())
	}
}
