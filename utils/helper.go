package utils

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/ttacon/libphonenumber"
)

const DateLayout = "2006-01-02"

// NormalizePhoneNumber validates phoneNumber for region and returns it in E.164.
func NormalizePhoneNumber(phoneNumber, region string) (string, error) {
	p, err := libphonenumber.Parse(phoneNumber, region)
	if err != nil {
		return "", err
	}
	if !libphonenumber.IsValidNumber(p) {
		return "", fmt.Errorf("phone number is not valid")
	}
	return libphonenumber.Format(p, libphonenumber.E164), nil
}

func GenerateUniqueFilename() string {
	return fmt.Sprintf("%d_%s", time.Now().UnixNano(), uuid.NewString()[:8])
}

// ProcessValidationErrors flattens binding errors into field -> failed tag.
func ProcessValidationErrors(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}
	errorResponse := make(map[string]string)
	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}
	return errorResponse
}

// ParseDate accepts "2006-01-02" or RFC3339; an empty string yields nil.
func ParseDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(DateLayout, value); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("fecha inválida %q", value)
	}
	return &t, nil
}

// TrimPtr trims s and maps blank strings to nil.
func TrimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
