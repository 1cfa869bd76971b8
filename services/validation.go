package services

import (
	"chat-room/domain"
	"chat-room/errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields under their JSON names, the way clients send them.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// MaxNameLength bounds participant names; names are part of the storage key.
const MaxNameLength = 256

type RegisterRequest struct {
	Name string `json:"name" validate:"required,max=256"`
}

type SendRequest struct {
	To   string             `json:"to" validate:"required,max=256"`
	Text string             `json:"text" validate:"required"`
	Type domain.MessageType `json:"type" validate:"required,oneof=message private_message"`
}

type listRequest struct {
	User string `json:"user" validate:"required"`
}

// validateStruct runs every rule of s and reports all failing fields at once.
func validateStruct(s any) *errors.ValidationError {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return errors.NewValidationError("", err.Error())
	}
	verr := &errors.ValidationError{}
	for _, fe := range fieldErrors {
		verr.Add(fe.Field(), fieldMessage(fe))
	}
	return verr
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%q is required", fe.Field())
	case "max":
		return fmt.Sprintf("%q must be at most %s characters long", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%q must be one of [%s]", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("%q failed on %s", fe.Field(), fe.Tag())
	}
}
