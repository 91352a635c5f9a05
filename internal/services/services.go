// Package services holds the business operations behind the HTTP routes:
// issuing sessions, managing profiles, and the record, ticket and traffic stores.
package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"vizintel/api/internal/common"
	"vizintel/api/internal/live"
)

// Publisher delivers live events to an account's room.
type Publisher interface {
	Publish(ctx context.Context, room string, event live.Event) error
}

const (
	minNameLength     = 3
	maxNameLength     = 100
	minPasswordLength = 8
)

func validateName(name string) error {
	n := utf8.RuneCountInString(name)
	if n < minNameLength || n > maxNameLength {
		return common.Invalid("Name must be between 3 and 100 characters")
	}
	return nil
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return common.Invalid("Password must be at least 8 characters")
	}
	return nil
}

func anyBlank(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}
