package services

import (
	"errors"
	"fmt"
)

// ===== SENTINEL ERRORS =====

var (
	// Olympiad preconditions, in the order start checks them.
	ErrOlympiadNotFound         = errors.New("olympiad not found")
	ErrOlympiadNotPublished     = errors.New("olympiad not published")
	ErrEmailNotVerified         = errors.New("email not verified")
	ErrOlympiadNotAvailable     = errors.New("olympiad not available")
	ErrOlympiadAgeGroupMismatch = errors.New("olympiad age group mismatch")
	ErrOlympiadHasNoTasks       = errors.New("olympiad has no tasks")

	ErrAttemptNotFound  = errors.New("attempt not found")
	ErrAttemptNotActive = errors.New("attempt not active")
	ErrAttemptExpired   = errors.New("attempt expired")

	ErrTaskNotFound = errors.New("task not found")
	ErrUserNotFound = errors.New("user not found")

	ErrRateLimited = errors.New("rate limited")

	// CMS rules.
	ErrOlympiadPublished   = errors.New("olympiad already published")
	ErrOlympiadHasAttempts = errors.New("olympiad has attempts")
	ErrTaskInUse           = errors.New("task attached to an olympiad")
	ErrTaskAlreadyAttached = errors.New("task already attached")
)

// PermissionError carries who tried what on which resource.
type PermissionError struct {
	UserID     uint
	ResourceID uint
	Resource   string
	Action     string
	Reason     string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %d cannot %s %s %d: %s", e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

func NewPermissionError(userID, resourceID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// BusinessRuleError wraps a sentinel with context for logs; handlers match
// on the wrapped sentinel.
type BusinessRuleError struct {
	Rule string
	Err  error
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("%s: %v", e.Rule, e.Err)
}

func (e *BusinessRuleError) Unwrap() error {
	return e.Err
}
