package rpc

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a procedure error code as carried on the wire.
type Code string

// Error codes understood by routers and clients.
const (
	CodeParseError          Code = "PARSE_ERROR"
	CodeBadRequest          Code = "BAD_REQUEST"
	CodeInternal            Code = "INTERNAL_SERVER_ERROR"
	CodeNotImplemented      Code = "NOT_IMPLEMENTED"
	CodeUnauthorized        Code = "UNAUTHORIZED"
	CodeForbidden           Code = "FORBIDDEN"
	CodeNotFound            Code = "NOT_FOUND"
	CodeMethodNotSupported  Code = "METHOD_NOT_SUPPORTED"
	CodeTimeout             Code = "TIMEOUT"
	CodeConflict            Code = "CONFLICT"
	CodePreconditionFailed  Code = "PRECONDITION_FAILED"
	CodePayloadTooLarge     Code = "PAYLOAD_TOO_LARGE"
	CodeUnprocessable       Code = "UNPROCESSABLE_CONTENT"
	CodeTooManyRequests     Code = "TOO_MANY_REQUESTS"
	CodeClientClosedRequest Code = "CLIENT_CLOSED_REQUEST"
)

var codeTable = map[Code]struct {
	http    int
	jsonrpc int
}{
	CodeParseError:          {http.StatusBadRequest, -32700},
	CodeBadRequest:          {http.StatusBadRequest, -32600},
	CodeInternal:            {http.StatusInternalServerError, -32603},
	CodeNotImplemented:      {http.StatusNotImplemented, -32501},
	CodeUnauthorized:        {http.StatusUnauthorized, -32001},
	CodeForbidden:           {http.StatusForbidden, -32003},
	CodeNotFound:            {http.StatusNotFound, -32004},
	CodeMethodNotSupported:  {http.StatusMethodNotAllowed, -32005},
	CodeTimeout:             {http.StatusRequestTimeout, -32008},
	CodeConflict:            {http.StatusConflict, -32009},
	CodePreconditionFailed:  {http.StatusPreconditionFailed, -32012},
	CodePayloadTooLarge:     {http.StatusRequestEntityTooLarge, -32013},
	CodeUnprocessable:       {http.StatusUnprocessableEntity, -32022},
	CodeTooManyRequests:     {http.StatusTooManyRequests, -32029},
	CodeClientClosedRequest: {499, -32099},
}

// HTTPStatus returns the HTTP status conventionally paired with c, or 500
// for unknown codes.
func (c Code) HTTPStatus() int {
	if e, ok := codeTable[c]; ok {
		return e.http
	}
	return http.StatusInternalServerError
}

// JSONRPCCode returns the numeric JSON-RPC code for c.
func (c Code) JSONRPCCode() int {
	if e, ok := codeTable[c]; ok {
		return e.jsonrpc
	}
	return codeTable[CodeInternal].jsonrpc
}

// CodeFromHTTPStatus maps an HTTP status to the closest Code.
func CodeFromHTTPStatus(status int) Code {
	for c, e := range codeTable {
		if e.http == status && c != CodeParseError {
			return c
		}
	}
	if status >= 500 {
		return CodeInternal
	}
	return CodeBadRequest
}

// ClientError is the typed error produced by clients and routers for a
// failed procedure call. An empty Code marks a transport failure where the
// server never answered.
type ClientError struct {
	Path       string
	Code       Code
	HTTPStatus int
	Message    string
	Cause      error
}

func (e *ClientError) Error() string {
	code := string(e.Code)
	if code == "" {
		code = "NETWORK"
	}
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Path == "" {
		return fmt.Sprintf("rpc: %s: %s", code, msg)
	}
	return fmt.Sprintf("rpc: %s %s: %s", e.Path, code, msg)
}

func (e *ClientError) Unwrap() error { return e.Cause }

// Is supports errors.Is by matching any *ClientError target.
func (e *ClientError) Is(target error) bool {
	_, ok := target.(*ClientError)
	return ok
}

// ErrClient matches every *ClientError under errors.Is.
var ErrClient error = &ClientError{}

var (
	// ErrNilClient indicates a nil Client was provided.
	ErrNilClient = errors.New("rpc: client is nil")

	// ErrNilTransformer indicates a nil Transformer was provided.
	ErrNilTransformer = errors.New("rpc: transformer is nil")

	// ErrProcedureExists indicates a procedure was registered twice.
	ErrProcedureExists = errors.New("rpc: procedure already registered")
)

// NewClientError builds a ClientError whose HTTPStatus follows code.
func NewClientError(path string, code Code, message string) *ClientError {
	return &ClientError{Path: path, Code: code, HTTPStatus: code.HTTPStatus(), Message: message}
}

// AsClientError extracts a *ClientError from err.
func AsClientError(err error) (*ClientError, bool) {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// IsRetryable reports whether a failed call may succeed if repeated.
// Transport failures and server-side overload or timeout codes are
// retryable; everything the caller caused is not.
func IsRetryable(err error) bool {
	ce, ok := AsClientError(err)
	if !ok {
		return false
	}
	switch ce.Code {
	case "", CodeInternal, CodeTimeout, CodeTooManyRequests:
		return true
	default:
		return false
	}
}
