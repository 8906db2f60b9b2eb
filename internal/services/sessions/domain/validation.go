package domain

import (
	"strings"

	apperrors "github.com/louisbranch/sessiontrack/internal/platform/errors"
)

const (
	msgRegionInvalid    = "Region must be a non-empty string"
	msgStatusNotString  = "Session status must be a string"
	msgStatusInvalidFmt = "Invalid session status: %s"
	msgSessionIDInvalid = "Session ID must be a non-empty string"
)

// ValidateRegion returns the trimmed region when value is a string with
// non-whitespace content.
func ValidateRegion(value any) (string, error) {
	region, ok := value.(string)
	if !ok {
		return "", apperrors.BadRequest(msgRegionInvalid)
	}
	region = strings.TrimSpace(region)
	if region == "" {
		return "", apperrors.BadRequest(msgRegionInvalid)
	}
	return region, nil
}

// ValidateStatus returns the matching Status when value is a string exactly
// equal to one of the defined statuses.
func ValidateStatus(value any) (Status, error) {
	raw, ok := value.(string)
	if !ok {
		return "", apperrors.WithMetadata(apperrors.CodeBadRequest, msgStatusNotString, map[string]string{"Field": "status"})
	}
	status := Status(raw)
	if !status.Valid() {
		return "", apperrors.BadRequestf(msgStatusInvalidFmt, raw)
	}
	return status, nil
}

// ValidateSessionID checks that value is a string with non-whitespace content.
// The ID is returned as given, untrimmed.
func ValidateSessionID(value any) (string, error) {
	sessionID, ok := value.(string)
	if !ok || strings.TrimSpace(sessionID) == "" {
		return "", apperrors.BadRequest(msgSessionIDInvalid)
	}
	return sessionID, nil
}
