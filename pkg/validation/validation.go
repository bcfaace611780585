package validation

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
)

const (
	MinWorkers = 1
	MaxWorkers = 20

	MaxPageSize      = 500
	MinPasswordChars = 8
)

var externalPosIDPattern = regexp.MustCompile(`^[A-Za-z0-9_\-]{1,50}$`)

func ValidateWorkerCount(workers int) error {
	if workers < MinWorkers || workers > MaxWorkers {
		return fmt.Errorf("worker count must be between %d and %d, got %d", MinWorkers, MaxWorkers, workers)
	}
	return nil
}

func ValidateNonEmptyString(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	return nil
}

// ValidateExternalPosID accepts identifiers such as QR_CAJA_01.
func ValidateExternalPosID(id string) error {
	if !externalPosIDPattern.MatchString(id) {
		return fmt.Errorf("invalid external_pos_id %q: use 1-50 letters, digits, '_' or '-'", id)
	}
	return nil
}

func ValidateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("invalid email address: %q", email)
	}
	return nil
}

func ValidatePassword(password string) error {
	if len(password) < MinPasswordChars {
		return fmt.Errorf("password must be at least %d characters long", MinPasswordChars)
	}
	return nil
}

func ValidatePage(skip, limit int) error {
	if skip < 0 {
		return fmt.Errorf("skip must not be negative, got %d", skip)
	}
	if limit < 1 || limit > MaxPageSize {
		return fmt.Errorf("limit must be between 1 and %d, got %d", MaxPageSize, limit)
	}
	return nil
}

func ValidateParkingKind(kind string) error {
	switch kind {
	case "entry", "exit":
		return nil
	default:
		return fmt.Errorf("invalid parking event kind: %s (must be one of: entry, exit)", kind)
	}
}
