package protocol

import "fmt"

const (
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrUnknownMethod = "E_UNKNOWN_METHOD"
	ErrNotStarted    = "E_NOT_STARTED"
	ErrUnknownName   = "E_UNKNOWN_NAME"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrBadRequest:    {},
	ErrUnknownMethod: {},
	ErrNotStarted:    {},
	ErrUnknownName:   {},
	ErrInternal:      {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// ErrorInfo is the error carried by a failed response.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ErrorInfo) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
