package status

import "errors"

// ErrShutdown reports that the accept loop stopped because the server was
// asked to shut down, as opposed to a listener failure.
var ErrShutdown = errors.New("graceful shutdown")

// HTTPError is an error carrying the status code it must be answered with.
// Every error produced by the protocol core is an HTTPError, so the session
// loop can always render a best-effort response before closing.
type HTTPError struct {
	Message string
	Code    Code
}

func NewError(code Code, message string) error {
	return HTTPError{
		Code:    code,
		Message: message,
	}
}

func (h HTTPError) Error() string {
	return h.Message
}

var (
	// ErrCloseConnection signals that the connection must be terminated without
	// treating it as a failure.
	ErrCloseConnection = NewError(BadRequest, "actively closing the connection")

	ErrMalformedStartLine  = NewError(BadRequest, "malformed request line")
	ErrTooManyEmptyLines   = NewError(BadRequest, "too many empty lines before the request line")
	ErrRequestLineTooLong  = NewError(RequestURITooLong, "request line is too long")
	ErrUnsupportedVersion  = NewError(HTTPVersionNotSupported, "HTTP version not supported")
	ErrHeaderFraming       = NewError(BadRequest, "malformed header line")
	ErrHeaderTooLong       = NewError(RequestHeaderFieldsTooLarge, "header exceeds the size limit")
	ErrTooManyHeaders      = NewError(RequestHeaderFieldsTooLarge, "too many headers")
	ErrHeaderReadTimeout   = NewError(RequestTimeout, "timed out waiting for headers")
	ErrMissingHost         = NewError(BadRequest, "missing required Host header")
	ErrBadHostPort         = NewError(BadRequest, "malformed Host port")
	ErrBadContentLength    = NewError(BadRequest, "malformed Content-Length")
	ErrInternalServerError = NewError(InternalServerError, "internal server error")
	ErrNotFound            = NewError(NotFound, "not found")
)
