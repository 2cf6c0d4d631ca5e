package apierr

import (
	"errors"
	"net/http"
)

// Operation selects the wording of user-facing messages.
type Operation int

const (
	OpGeneric Operation = iota
	OpLogin
	OpRegister
	OpLoadSpaces
	OpLoadBookings
	OpCreateBooking
	OpDeleteBooking
)

var generic = map[Operation]string{
	OpGeneric:       "Something went wrong",
	OpLogin:         "Login failed. Check your username and password.",
	OpRegister:      "Registration failed. The user may already exist.",
	OpLoadSpaces:    "Could not load spaces",
	OpLoadBookings:  "Could not load bookings",
	OpCreateBooking: "Could not create the booking",
	OpDeleteBooking: "Could not delete the booking",
}

// Message renders err for an end user. Validation errors surface the
// service's own first message; the rest use a fixed catalog.
func Message(op Operation, err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrPastBooking) {
		return "A booking cannot be created in the past"
	}

	var e *Error
	if !errors.As(err, &e) {
		return generic[op]
	}

	switch op {
	case OpLogin, OpRegister:
		return authMessage(op, e)
	case OpCreateBooking:
		if msg := e.NonFieldError(); msg != "" {
			return msg
		}
		if e.Kind == Validation && e.Detail != "" {
			return e.Detail
		}
		return generic[op]
	}

	switch e.Kind {
	case Validation:
		if e.Detail != "" {
			return e.Detail
		}
	case Timeout:
		return "The server took too long to respond"
	case Network:
		return "Network error. Check your internet connection."
	case Authentication:
		return "You are not allowed to do that. Log in again."
	case NotFound:
		return "Not found"
	case Server:
		return "Server error"
	}
	return generic[op]
}

func authMessage(op Operation, e *Error) string {
	switch e.Kind {
	case Timeout:
		return "The server took too long to respond"
	case Network:
		return "Network error. Check your internet connection."
	case Validation:
		if op == OpRegister {
			if msg := e.firstMessage(); msg != "" {
				return msg
			}
			return generic[op]
		}
		if e.Detail != "" {
			return e.Detail
		}
		if msg := e.NonFieldError(); msg != "" {
			return msg
		}
		return "Invalid data"
	case Authentication:
		if e.Status == http.StatusForbidden {
			return "Access denied"
		}
		return "Invalid username or password"
	case NotFound:
		return "Server not found"
	case Server:
		return "Server error"
	}
	return generic[op]
}
