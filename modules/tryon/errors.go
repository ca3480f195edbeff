package tryon

import (
	"errors"
	"fmt"
)

// Kind - error taxonomy of the try-on flow
type Kind string

const (
	KindValidation Kind = "validation"
	KindTransport  Kind = "transport"
	KindService    Kind = "service"
	KindExtraction Kind = "extraction"
)

// Operation - which external call an error belongs to
type Operation string

const (
	OpGenerate Operation = "generate"
	OpUpscale  Operation = "upscale"
)

// serviceName - used in configuration and availability messages
func (o Operation) serviceName() string {
	if o == OpUpscale {
		return "Upscaling service"
	}
	return "Virtual Try-On service"
}

// processName - used in finish reason messages
func (o Operation) processName() string {
	if o == OpUpscale {
		return "Upscaling"
	}
	return "Image generation"
}

// Stable error codes
const (
	CodeMissingInputs    = "missing_inputs"
	CodeBusy             = "busy"
	CodeSessionNotFound  = "session_not_found"
	CodeNoResult         = "no_result"
	CodeNoInput          = "no_input"
	CodeUnknownSlot      = "unknown_slot"
	CodeUnknownExample   = "unknown_example"
	CodeExampleCorrupted = "example_corrupted"

	CodeNetwork = "network"

	CodeRateLimited      = "rate_limited"
	CodeInvalidArgument  = "invalid_argument"
	CodeAuth             = "auth"
	CodeUnavailable      = "unavailable"
	CodeUnexpected       = "unexpected"
	CodeBlockedSafety    = "blocked_safety"
	CodeBlockedRecite    = "blocked_recitation"
	CodeTooLarge         = "too_large"
	CodeUnexpectedFinish = "unexpected_finish"

	CodeNoImage = "no_image"
)

// User-facing messages without an operation placeholder
const (
	MsgMissingInputs    = "Please upload both a person and an outfit image."
	MsgBusy             = "A virtual try-on is already in progress. Please wait for it to finish."
	MsgSessionNotFound  = "This session has expired. Please start over."
	MsgNoResult         = "There is no generated image yet."
	MsgExampleCorrupted = "Could not load the example images. The data might be corrupted. Please try another example."
	MsgNetwork          = "Network error: Could not connect to the AI service. Please check your internet connection."
	MsgRateLimited      = "The AI service is currently busy due to high traffic. Please wait a moment and try again."
	MsgInvalidArgument  = "Invalid request. The images may be in an unsupported format (please use JPEG or PNG), corrupted, or too large."
	MsgTooLarge         = "The request is too large for the model to process. Please try using smaller images."
	MsgNoImageGenerate  = "The AI could not generate an image from the provided photos. This can happen if the images are not clear or suitable for the task. Please try again with different images."
	MsgNoImageUpscale   = "The AI could not upscale the image. The generated image might not be suitable for enhancement."
)

// Error - a classified failure. Message is safe to show; Err carries the technical cause for logs.
type Error struct {
	Kind      Kind
	Code      string
	Message   string
	Operation Operation
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s/%s: %s: %v", e.Kind, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s/%s: %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is - matches sentinel errors by Kind and Code
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// Failure - persisted form
func (e *Error) Failure() *Failure {
	return &Failure{Kind: e.Kind, Code: e.Code, Message: e.Message, Operation: e.Operation}
}

var (
	ErrMissingInputs   = &Error{Kind: KindValidation, Code: CodeMissingInputs, Message: MsgMissingInputs}
	ErrBusy            = &Error{Kind: KindValidation, Code: CodeBusy, Message: MsgBusy}
	ErrSessionNotFound = &Error{Kind: KindValidation, Code: CodeSessionNotFound, Message: MsgSessionNotFound}
	ErrNoResult        = &Error{Kind: KindValidation, Code: CodeNoResult, Message: MsgNoResult}
)

// NewValidationError - input problem, no network call made
func NewValidationError(code, message string, cause error) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message, Err: cause}
}

// AsError - err as *Error; unclassified errors become an unexpected service error for op
func AsError(err error, op Operation) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{
		Kind:      KindService,
		Code:      CodeUnexpected,
		Message:   unexpectedMessage(op),
		Operation: op,
		Err:       err,
	}
}

func unexpectedMessage(op Operation) string {
	return fmt.Sprintf("An unexpected error occurred with the %s. Please try again.", op.serviceName())
}
