package auth

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/jrsteele09/deepsight-client/internal/errors"
	"github.com/jrsteele09/deepsight-client/users"
)

var emailPattern = regexp.MustCompile(
	"^[a-zA-Z0-9.!#$%&'*+/=?^_`{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$",
)

const (
	minPasswordLength = 8
	passwordSpecials  = "@$!%*?&"
)

// Validator runs the form checks that must pass before a request is sent.
type Validator struct{}

// NewValidator creates a new Validator instance
func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) ValidateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return errors.ErrInvalidEmail
	}
	return nil
}

// ValidatePassword requires at least 8 characters drawn from letters, digits
// and @$!%*?&, with at least one lowercase, uppercase, digit and special.
func (v *Validator) ValidatePassword(password string) error {
	if len(password) < minPasswordLength {
		return errors.ErrWeakPassword
	}

	var (
		hasUpper   bool
		hasLower   bool
		hasNumber  bool
		hasSpecial bool
	)

	for _, char := range password {
		switch {
		case char > unicode.MaxASCII:
			return errors.ErrWeakPassword
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasNumber = true
		case strings.ContainsRune(passwordSpecials, char):
			hasSpecial = true
		default:
			return errors.ErrWeakPassword
		}
	}

	if !hasUpper || !hasLower || !hasNumber || !hasSpecial {
		return errors.ErrWeakPassword
	}
	return nil
}

func (v *Validator) ValidatePasswordConfirmation(password, confirmPassword string) error {
	if password != confirmPassword {
		return errors.ErrPasswordMismatch
	}
	return nil
}

// ValidateRegistration checks a signup form in the order the fields are shown.
func (v *Validator) ValidateRegistration(r users.Registration) error {
	if err := v.ValidateEmail(r.Email); err != nil {
		return err
	}
	if err := v.ValidatePassword(r.Password); err != nil {
		return err
	}
	if err := v.ValidatePasswordConfirmation(r.Password, r.ConfirmPassword); err != nil {
		return err
	}
	if strings.TrimSpace(r.Username) == "" {
		return fmt.Errorf("%w: username", errors.ErrMissingField)
	}
	return nil
}

// ValidateLogin rejects credentials that could never match an account.
// A password that fails the strength rules is reported as ErrWeakPassword;
// callers show it as an incorrect password.
func (v *Validator) ValidateLogin(c users.Credentials) error {
	if strings.TrimSpace(c.Username) == "" {
		return fmt.Errorf("%w: username", errors.ErrMissingField)
	}
	return v.ValidatePassword(c.Password)
}
