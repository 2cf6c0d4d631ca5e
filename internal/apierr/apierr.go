// Package apierr classifies failures of calls to the booking service and maps
// them to messages fit for an end user.
package apierr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
)

// Kind is the failure class of a call.
type Kind int

const (
	Unknown Kind = iota
	Network
	Timeout
	Validation
	Authentication
	NotFound
	Server
)

func (k Kind) String() string {
	switch k {
	case Network:
		return "network"
	case Timeout:
		return "timeout"
	case Validation:
		return "validation"
	case Authentication:
		return "authentication"
	case NotFound:
		return "not_found"
	case Server:
		return "server"
	default:
		return "unknown"
	}
}

// ErrPastBooking is returned before any request is made when a booking would
// start in the past.
var ErrPastBooking = errors.New("booking cannot start in the past")

// NonFieldKey is the field under which the service reports errors that are
// not tied to a single input, such as an overlapping booking.
const NonFieldKey = "non_field_errors"

// Error is a classified failure. Status is zero for transport failures.
type Error struct {
	Kind   Kind
	Status int
	Detail string
	Fields map[string][]string
	Err    error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.String())
	if e.Status != 0 {
		fmt.Fprintf(&sb, " (status %d)", e.Status)
	}
	if msg := e.firstMessage(); msg != "" {
		sb.WriteString(": ")
		sb.WriteString(msg)
	} else if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

// NonFieldError returns the first non-field message, if any.
func (e *Error) NonFieldError() string {
	if msgs := e.Fields[NonFieldKey]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// firstMessage prefers detail, then non-field errors, then the first field
// in name order.
func (e *Error) firstMessage() string {
	if e.Detail != "" {
		return e.Detail
	}
	if msg := e.NonFieldError(); msg != "" {
		return msg
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if msgs := e.Fields[k]; len(msgs) > 0 {
			return k + ": " + msgs[0]
		}
	}
	return ""
}

// KindForStatus maps an HTTP status to a Kind.
func KindForStatus(status int) Kind {
	switch {
	case status == http.StatusBadRequest:
		return Validation
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return Authentication
	case status == http.StatusNotFound:
		return NotFound
	case status >= 500:
		return Server
	default:
		return Unknown
	}
}

// FromStatus builds an Error from a non-2xx response. The body may be an
// object of field -> message(s) with an optional "detail", or a bare array of
// messages in which case the first one becomes the detail.
func FromStatus(status int, body []byte) *Error {
	e := &Error{Kind: KindForStatus(status), Status: status}
	body = []byte(strings.TrimSpace(string(body)))
	if len(body) == 0 {
		return e
	}

	var list []string
	if err := json.Unmarshal(body, &list); err == nil {
		if len(list) > 0 {
			e.Detail = list[0]
		}
		return e
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return e
	}
	for key, raw := range obj {
		msgs := decodeMessages(raw)
		if len(msgs) == 0 {
			continue
		}
		if key == "detail" {
			e.Detail = msgs[0]
			continue
		}
		if e.Fields == nil {
			e.Fields = make(map[string][]string)
		}
		e.Fields[key] = msgs
	}
	return e
}

func decodeMessages(raw json.RawMessage) []string {
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		return []string{one}
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return many
	}
	return nil
}

// FromTransport classifies an error returned before any response arrived.
func FromTransport(err error) *Error {
	if isTimeout(err) {
		return &Error{Kind: Timeout, Err: err}
	}
	return &Error{Kind: Network, Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// KindOf returns the Kind of err, or Unknown when err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// IsAuthentication reports a 401/403 failure.
func IsAuthentication(err error) bool {
	return KindOf(err) == Authentication
}
