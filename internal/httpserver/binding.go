package httpserver

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func init() {
	// Validation messages name fields the way clients send them.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonFieldName)
	}
}

func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return f.Name
	}
	return name
}

// bindJSON decodes and validates the body into dst, answering 400 when either fails.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, bindingMessage(err))
		return false
	}
	return true
}

// bindingMessage reports the first failed rule, or a generic message for malformed JSON.
func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request body"
	}
	fe := verrs[0]
	field := fe.Field()
	var msg string
	switch fe.Tag() {
	case "required":
		msg = field + " is required"
	case "email":
		msg = field + " must be a valid email"
	case "min":
		if fe.Kind() == reflect.String {
			msg = fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		} else {
			msg = fmt.Sprintf("%s must be at least %s", field, fe.Param())
		}
	case "gte":
		msg = fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "oneof":
		msg = fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		msg = field + " is invalid"
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}
