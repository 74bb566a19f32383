package stock

import (
	"encoding/json"
)

// ErrorBody is the normalized failure payload returned to callers.
type ErrorBody struct {
	Error   bool           `json:"error"`
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Envelope is the single response shape of Dispatch: either Data or Err is set.
type Envelope struct {
	Operation Operation
	Data      any
	Err       *ErrorBody
}

// IsError reports whether the envelope carries a failure.
func (e Envelope) IsError() bool {
	return e.Err != nil
}

// Kind returns the failure family, or "" on success.
func (e Envelope) Kind() ErrorKind {
	if e.Err == nil {
		return ""
	}
	return (&Error{Code: e.Err.Code}).Kind()
}

// Payload returns the value serialized to the caller.
func (e Envelope) Payload() any {
	if e.Err != nil {
		return e.Err
	}
	return e.Data
}

// MarshalJSON encodes the payload only.
func (e Envelope) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Payload())
}

func successEnvelope(op Operation, data any) Envelope {
	return Envelope{Operation: op, Data: data}
}

// errorEnvelope normalizes any error into the failure payload.
func errorEnvelope(op Operation, err error) Envelope {
	return Envelope{Operation: op, Err: NewErrorBody(err)}
}

// NewErrorBody converts err into the failure payload.
// Untyped errors are reported as store errors with their message kept.
func NewErrorBody(err error) *ErrorBody {
	typed, ok := AsError(err)
	if !ok {
		typed = newStoreError(err)
	}
	return &ErrorBody{
		Error:   true,
		Code:    typed.Code,
		Message: typed.Message,
		Details: typed.Details,
	}
}

type fileListPayload struct {
	Files []File `json:"files"`
	Count int    `json:"count"`
}

type fileMutationPayload struct {
	Success bool  `json:"success"`
	File    *File `json:"file"`
}

type fileDeletionPayload struct {
	Success     bool  `json:"success"`
	DeletedFile *File `json:"deleted_file"`
}

type categoryListPayload struct {
	Categories []Category `json:"categories"`
	Count      int        `json:"count"`
}

type categoryMutationPayload struct {
	Success  bool      `json:"success"`
	Category *Category `json:"category"`
}

type categoryDeletionPayload struct {
	Success         bool      `json:"success"`
	DeletedCategory *Category `json:"deleted_category"`
}

type userListPayload struct {
	Users []UserProfile `json:"users"`
	Count int           `json:"count"`
}

type categoryUsagePayload struct {
	CategoryUsage []CategoryUsage `json:"category_usage"`
}
