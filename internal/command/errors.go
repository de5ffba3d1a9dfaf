package command

// Code is the stable, machine-readable error code surfaced to HTTP
// clients.
type Code string

const (
	CodeNotFound      Code = "NOT_FOUND"
	CodeNotStarted    Code = "NOT_STARTED"
	CodeAlreadyEnded  Code = "ALREADY_ENDED"
	CodeLowBid        Code = "LOW_BID"
	CodeConflict      Code = "CONFLICT"
	CodeInternal      Code = "INTERNAL"
)

// Error is the typed error every command handler returns. Validation
// errors (NotFound/NotStarted/AlreadyEnded/LowBid) short-circuit inside
// the handler; Conflict means the OCC retry budget was exhausted;
// Internal covers storage, serialization, and bus failures.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string { return e.Message }

func newError(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

var (
	errNotFound     = newError(CodeNotFound, "item not found")
	errNotStarted   = newError(CodeNotStarted, "auction has not started")
	errAlreadyEnded = newError(CodeAlreadyEnded, "auction has already ended")
	errConflict     = newError(CodeConflict, "could not commit after retrying, try again")
)

func lowBid() *Error {
	return newError(CodeLowBid, "bid must be greater than the current price")
}

func internal(err error) *Error {
	return newError(CodeInternal, err.Error())
}
