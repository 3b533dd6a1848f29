package api

import "net/http"

// FaultCode classifies transport-tier rejections, detected before the
// payload is trusted as a well-formed command.
type FaultCode string

// Fault codes, stable across transports.
const (
	FaultMalformed    FaultCode = "malformed-request"
	FaultUnauthorized FaultCode = "unauthorized"
	FaultNotFound     FaultCode = "not-found"
	FaultInternal     FaultCode = "internal-error"
)

// Fault is a transport-tier rejection. No Response is constructed for
// a fault; the exchange terminates at the transport level.
type Fault struct {
	Code    FaultCode
	Message string
}

// Error implements the error interface.
func (f *Fault) Error() string {
	return f.Message
}

// HTTPStatus maps the fault code to its HTTP status.
func (f *Fault) HTTPStatus() int {
	switch f.Code {
	case FaultMalformed:
		return http.StatusBadRequest
	case FaultUnauthorized:
		return http.StatusUnauthorized
	case FaultNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func malformed(msg string) *Fault {
	return &Fault{Code: FaultMalformed, Message: msg}
}

func unauthorized(msg string) *Fault {
	return &Fault{Code: FaultUnauthorized, Message: msg}
}

func notFound(msg string) *Fault {
	return &Fault{Code: FaultNotFound, Message: msg}
}

func internal(msg string) *Fault {
	return &Fault{Code: FaultInternal, Message: msg}
}
