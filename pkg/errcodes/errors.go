package errcodes

import (
	"fmt"
	"net/http"
)

// Error is an error that maps onto an HTTP response.
type Error struct {
	HTTPCode int
	Message  string
	Code     string
}

func (err *Error) Error() string {
	return err.Message
}

func (err *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return te.HTTPCode == err.HTTPCode && te.Code == err.Code && te.Message == err.Message
}

// NotFound returns a 404 error naming the missing resource.
func NotFound(resource string) error {
	return &Error{http.StatusNotFound, resource + " not found.", "not_found"}
}

// Conflict returns a 409 error, used when a request collides with work that
// is already running.
func Conflict(msg string) error {
	return &Error{http.StatusConflict, msg, "conflict"}
}

func BadRequest(msg string) error {
	return &Error{http.StatusBadRequest, msg, "bad_request"}
}

func UnsupportedMediaType() error {
	return &Error{http.StatusUnsupportedMediaType, "Unsupported Media Type", "unsupported_media_type"}
}

func UnknownParameter(param string) error {
	return &Error{http.StatusUnprocessableEntity, fmt.Sprintf("Unknown Parameter %q", param), "unknown_parameter"}
}

func ValidationTypeError(msg string) error {
	return &Error{http.StatusUnprocessableEntity, msg, "validation_type_error"}
}

func ValidationError(msg string) error {
	return &Error{http.StatusUnprocessableEntity, msg, "validation_error"}
}

func MalformedPayload() error {
	return &Error{http.StatusBadRequest, "Malformed Payload", "malformed_payload"}
}

func EmptyRequestBody() error {
	return &Error{http.StatusBadRequest, "Request body can't be empty.", "empty_request_body"}
}

// Unavailable returns a 502 error for failures of a remote dependency.
func Unavailable(service string) error {
	return &Error{http.StatusBadGateway, service + " is unavailable.", "unavailable"}
}

// BuildFailed returns a 422 error carrying the packaging tool's complaint.
func BuildFailed(detail string) error {
	return &Error{http.StatusUnprocessableEntity, detail, "build_failed"}
}
