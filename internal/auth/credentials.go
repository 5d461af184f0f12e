package auth

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/apperrors"
	"github.com/therealutkarshpriyadarshi/ideasaver/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

var validate = validator.New()

var fieldMessages = map[string]map[string]string{
	"Email": {
		"required": "Email is required.",
		"email":    "Please enter a valid email address.",
	},
	"Password": {
		"required": "Password is required.",
		"min":      "Password must be at least 6 characters long.",
	},
}

// ValidateCredentials checks credentials before any network or database
// call. The returned validation error names the offending field.
func ValidateCredentials(creds models.Credentials) error {
	creds.Email = strings.TrimSpace(creds.Email)

	err := validate.Struct(creds)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperrors.Wrap(err, apperrors.KindInternal, "validation_failed", "Could not validate credentials")
	}

	fe := verrs[0]
	msg := fieldMessages[fe.Field()][fe.Tag()]
	if msg == "" {
		msg = "Invalid " + strings.ToLower(fe.Field()) + "."
	}
	return apperrors.Validation("invalid_"+strings.ToLower(fe.Field()), msg).
		WithDetails(strings.ToLower(fe.Field()))
}

// HashPassword hashes a password with bcrypt
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
