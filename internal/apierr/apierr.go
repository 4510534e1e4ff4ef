package apierr

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

// Sentinel error kinds. Every error returned by the client packages wraps
// exactly one of these so callers can branch with errors.Is.
var (
	// ErrAuthentication is returned for bad credentials or an unrecoverable
	// session. It is always terminal: the session has been cleared.
	ErrAuthentication = errors.New("authentication failed")

	// ErrNetwork is returned when the request never produced a response.
	ErrNetwork = errors.New("network error")

	// ErrValidation is returned for 400 responses and client side input checks.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned for 403 responses.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict is returned for 409 responses, e.g. a stale signing order.
	ErrConflict = errors.New("conflict")

	// ErrInvalidSignatureRequest is returned when a signature is applied
	// without its preconditions. No network call is made.
	ErrInvalidSignatureRequest = errors.New("invalid signature request")

	// ErrServer is returned for 5xx and any other unexpected status.
	ErrServer = errors.New("server error")
)

// Error carries the kind, the HTTP status (zero for client side errors) and
// the user facing message.
type Error struct {
	Kind    error
	Status  int
	Message string
	Err     error
}

// New creates an error of the given kind with a user facing message.
func New(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an error of the given kind wrapping cause.
func Wrap(kind error, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindForStatus maps an HTTP status code to an error kind.
func KindForStatus(status int) error {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrValidation
	case http.StatusUnauthorized:
		return ErrAuthentication
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	default:
		return ErrServer
	}
}

// errorBody is the backend error envelope. message is either a string or a
// list of strings (one per failed field).
type errorBody struct {
	Message json.RawMessage `json:"message"`
	Error   string          `json:"error"`
}

// FromResponse converts a non-2xx response into an *Error. The body is
// consumed but not closed.
func FromResponse(resp *http.Response) *Error {
	e := &Error{
		Kind:   KindForStatus(resp.StatusCode),
		Status: resp.StatusCode,
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil || len(data) == 0 {
		return e
	}

	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		return e
	}

	e.Message = parseMessage(body.Message)
	if e.Message == "" {
		e.Message = body.Error
	}

	return e
}

func parseMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single
	}

	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return strings.Join(many, "; ")
	}

	return ""
}

// FromTransport wraps an error returned by http.Client.Do. Errors that
// already carry a kind (for example a failed token refresh surfaced by the
// auth transport) keep it; everything else becomes ErrNetwork.
func FromTransport(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	return Wrap(ErrNetwork, "", err)
}

// UserMessage renders err for display. Validation messages from the
// backend are shown verbatim; network failures get a generic retry hint.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *Error
	hasMessage := errors.As(err, &apiErr) && apiErr.Message != ""

	switch {
	case errors.Is(err, ErrNetwork):
		return "Could not reach the server. Check your connection and try again."
	case errors.Is(err, ErrValidation) && hasMessage:
		return apiErr.Message
	case errors.Is(err, ErrAuthentication):
		if hasMessage {
			return apiErr.Message
		}
		return "Session expired. Please log in again."
	case errors.Is(err, ErrForbidden):
		return "You do not have permission to perform this action."
	case errors.Is(err, ErrNotFound):
		return "The requested resource was not found."
	case hasMessage:
		return apiErr.Message
	default:
		return err.Error()
	}
}
