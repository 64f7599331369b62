package domain

import (
	"errors"
	"regexp"
	"strings"
)

const (
	DisplayIDSeparator = "#"
	MinAccountIDLength = 70
)

var (
	ErrInvalidIdentifierFormat = errors.New("invalid riot id format, expected name#tag")
	ErrInvalidAccountID        = errors.New("malformed account id")
)

var accountIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// SplitDisplayID splits "name#tag" into exactly two non-empty parts.
func SplitDisplayID(displayID string) (name, tag string, err error) {
	parts := strings.Split(displayID, DisplayIDSeparator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", ErrInvalidIdentifierFormat
	}
	return parts[0], parts[1], nil
}

func IsInvalidIdentifierFormat(displayID string) bool {
	_, _, err := SplitDisplayID(displayID)
	return err != nil
}

// IsValidAccountID checks the shape of an upstream puuid.
func IsValidAccountID(accountID string) bool {
	return len(accountID) >= MinAccountIDLength && accountIDPattern.MatchString(accountID)
}
