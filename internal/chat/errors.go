package chat

import "errors"

// Sentinel errors returned by the service. Handlers map these to HTTP
// status codes; the websocket layer maps them to error events. Rejections
// are always synchronous responses to the triggering request, never a
// separate error broadcast.
var (
	ErrValidation   = errors.New("bad request")
	ErrUnauthorized = errors.New("not authorized")
	ErrNotFound     = errors.New("not found")
)
