package notify

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// emailTag is the validator tag for the permissive notification address rule.
const emailTag = "notify_email"

// emailPattern accepts "local@domain.tld" where no part contains whitespace
// or a second '@'. It is deliberately looser than RFC 5322; the backend does
// the authoritative check.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// validate is shared by all callers; validator instances are safe for
// concurrent use once configured.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation(emailTag, func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// ValidateEmail checks email against the notification address rule.
func ValidateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return &ValidationError{Field: "email", Message: "email address is required"}
	}
	if err := validate.Var(email, emailTag); err != nil {
		return &ValidationError{Field: "email", Message: "please enter a valid email address"}
	}
	return nil
}
