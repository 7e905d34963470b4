package utils

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the validate tags of value
func Validate[T any](value T) (T, error) {
	if err := validate.Struct(value); err != nil {
		return value, ValidationErrorToString(value, err)
	}

	return value, nil
}

// BindAndValidate decodes the request body into T and validates it. Failures are 400s.
func BindAndValidate[T any](c echo.Context) (T, error) {
	var result T
	if err := c.Bind(&result); err != nil {
		return result, httperror.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
	}

	if _, err := Validate(result); err != nil {
		return result, httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return result, nil
}

func ValidationErrorToString(input any, err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fmt.Sprintf("field '%s' failed rule '%s'", fe.Namespace(), fe.Tag())
		if fe.Param() != "" {
			msg += fmt.Sprintf(" (expected '%s')", fe.Param())
		}
		msgs = append(msgs, msg)
	}
	return fmt.Errorf("invalid %T: %s", input, strings.Join(msgs, "; "))
}
