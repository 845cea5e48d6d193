package common

import (
	"errors"

	"gamechannels/domain/services"
)

// UserMessage translates a domain error into text suitable for the invoking
// channel. The fallback message never leaks internal detail.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return "I couldn't find a game with that name."
	case errors.Is(err, services.ErrAlreadyExists):
		return "A game with that name (or one of its aliases) already exists."
	case errors.Is(err, services.ErrStaleRecord):
		return "That game's role or channel no longer exists. An admin should remove and recreate it."
	case errors.Is(err, services.ErrNotMember):
		return "You're not a member of that game."
	case errors.Is(err, services.ErrInvalidInput):
		return "That input doesn't look right. Check the command and try again."
	case errors.Is(err, services.ErrPermissionDenied):
		return "You don't have permission to do that."
	case errors.Is(err, services.ErrPartialRemoval):
		return "The role was deleted but the channel could not be removed. Run the command again to finish cleanup."
	default:
		return "Something went wrong. Please try again later."
	}
}
