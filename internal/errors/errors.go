package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"os"

	"github.com/julianstephens/habitd/internal/constants"
	"github.com/julianstephens/habitd/internal/logger"
)

var (
	// ErrUnauthenticated means the bearer token was missing, malformed, or rejected.
	ErrUnauthenticated = stderrors.New("unauthenticated")
	// ErrNotAuthorized means the habit does not exist or belongs to another user.
	ErrNotAuthorized = stderrors.New("not authorized")
	// ErrInsufficientBalance means the user cannot afford the requested freezes.
	ErrInsufficientBalance = stderrors.New("insufficient freeze balance")
	// ErrInvalidInput means the request payload failed validation.
	ErrInvalidInput = stderrors.New("invalid input")
	// ErrAlreadyLogged means a repair targeted a day that already has a log entry.
	ErrAlreadyLogged = stderrors.New("day already logged")
)

// Error pairs a taxonomy sentinel with a message that is safe to show clients.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// New returns a domain error of the given kind.
func New(kind error, message string) error {
	return &Error{Kind: kind, Message: message}
}

// Wrap returns a domain error of the given kind that keeps cause for logging.
func Wrap(kind error, message string, cause error) error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// OpError annotates a storage failure with the operation and resource involved.
type OpError struct {
	Op       string
	Resource string
	ID       string
	Err      error
}

func (e *OpError) Error() string {
	if e == nil {
		return ""
	}
	if e.ID != "" {
		return fmt.Sprintf("%s %s %s: %v", e.Op, e.Resource, e.ID, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Resource, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// WrapOp returns nil when err is nil.
func WrapOp(op, resource, id string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Resource: resource, ID: id, Err: err}
}

// HTTPStatus maps an error onto the response status code.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case stderrors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case stderrors.Is(err, ErrNotAuthorized):
		return http.StatusForbidden
	case stderrors.Is(err, ErrInsufficientBalance), stderrors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case stderrors.Is(err, ErrAlreadyLogged):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the client-facing message for err. Unclassified
// errors collapse to a generic message so storage details never leak.
func PublicMessage(err error) string {
	if HTTPStatus(err) == http.StatusInternalServerError {
		return constants.MsgServerError
	}
	var domainErr *Error
	if stderrors.As(err, &domainErr) && domainErr.Message != "" {
		return domainErr.Message
	}
	switch {
	case stderrors.Is(err, ErrUnauthenticated):
		return constants.MsgUnauthenticated
	case stderrors.Is(err, ErrNotAuthorized):
		return constants.MsgNotAuthorized
	case stderrors.Is(err, ErrInsufficientBalance):
		return constants.MsgNotEnoughFreezes
	case stderrors.Is(err, ErrAlreadyLogged):
		return constants.MsgAlreadyLogged
	}
	return err.Error()
}

// Format formats an error message with a consistent "Error: " prefix
func Format(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Error: %v", err)
}

// Formatf formats an error message with a consistent "Error: " prefix using a format string
func Formatf(format string, args ...interface{}) string {
	return fmt.Sprintf("Error: "+format, args...)
}

// Fatal logs an error and exits the program with exit code 1
func Fatal(err error) {
	if err != nil {
		logger.Error("Command execution failed", "error", err)
		fmt.Fprintf(os.Stderr, "%s\n", Format(err))
		os.Exit(1)
	}
}
