package accounts

import (
	"errors"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

const minPasswordLength = 8

// ErrInvalidInput indicates a malformed account request.
var ErrInvalidInput = errors.New("accounts: invalid input")

// InputError names the rejected field. It matches ErrInvalidInput with errors.Is.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return ErrInvalidInput.Error() + ": " + e.Reason
}

// Is reports whether target is ErrInvalidInput.
func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}

func invalidInput(reason string) error {
	return &InputError{Reason: reason}
}

// SignUpInput carries the registration form.
type SignUpInput struct {
	Name                 string `validate:"required"`
	Email                string `validate:"required,email"`
	Password             string `validate:"required,strongpassword"`
	PasswordConfirmation string `validate:"required,eqfield=Password"`
}

// PasswordChangeInput carries the password update form.
type PasswordChangeInput struct {
	CurrentPassword      string `validate:"required"`
	NewPassword          string `validate:"required,strongpassword"`
	PasswordConfirmation string `validate:"required,eqfield=NewPassword"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// registration cannot fail for a non-empty tag with a non-nil func
	_ = v.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
		return StrongPassword(fl.Field().String())
	})
	return v
}

// StrongPassword requires at least eight characters mixing lower case, upper
// case, digits and symbols.
func StrongPassword(password string) bool {
	if len([]rune(password)) < minPasswordLength {
		return false
	}
	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	return lower && upper && digit && symbol
}

func validateSignUp(input SignUpInput) error {
	return describe(validate.Struct(input))
}

func validatePasswordChange(input PasswordChangeInput) error {
	return describe(validate.Struct(input))
}

func validateEmail(email string) error {
	if err := validate.Var(email, "required,email"); err != nil {
		return invalidInput("a valid email is required")
	}
	return nil
}

// describe converts the first validator failure into an InputError.
func describe(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) || len(fieldErrors) == 0 {
		return invalidInput(err.Error())
	}
	first := fieldErrors[0]
	field := fieldLabel(first.Field())
	switch first.Tag() {
	case "required":
		return invalidInput(field + " is required")
	case "email":
		return invalidInput("a valid email is required")
	case "strongpassword":
		return invalidInput("password must be at least 8 characters and mix upper case, lower case, digits and symbols")
	case "eqfield":
		return invalidInput("passwords do not match")
	default:
		return invalidInput(field + " is invalid")
	}
}

func fieldLabel(field string) string {
	var builder strings.Builder
	for index, r := range field {
		if unicode.IsUpper(r) {
			if index > 0 {
				builder.WriteByte(' ')
			}
			r = unicode.ToLower(r)
		}
		builder.WriteRune(r)
	}
	return builder.String()
}
