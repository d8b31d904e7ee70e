package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode classifies processing failures.
type ErrorCode string

const (
	ErrorDecodeFailed      ErrorCode = "DECODE_FAILED"
	ErrorOCRFailed         ErrorCode = "OCR_FAILED"
	ErrorStructuringFailed ErrorCode = "STRUCTURING_FAILED"
	ErrorUnparseable       ErrorCode = "UNPARSEABLE_RESPONSE"
	ErrorTranslationFailed ErrorCode = "TRANSLATION_FAILED"
	ErrorCountMismatch     ErrorCode = "COUNT_MISMATCH"
	ErrorProcessingTimeout ErrorCode = "PROCESSING_TIMEOUT"
	ErrorStorageFailed     ErrorCode = "STORAGE_FAILED"
)

var (
	// ErrNoContent means the input carried nothing to process.
	ErrNoContent = errors.New("no content")

	// ErrUnparseable means a provider answered but the answer could not be understood.
	ErrUnparseable = errors.New("unparseable provider response")

	// ErrCountMismatch means a batch call returned a different number of results.
	ErrCountMismatch = errors.New("result count mismatch")

	// ErrProviderUnavailable means the provider is not configured.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrInvalidImage means the image bytes could not be decoded.
	ErrInvalidImage = errors.New("invalid image")
)

// ProcessingError is a structured failure carrying the request it belongs to.
type ProcessingError struct {
	Code      ErrorCode
	Message   string
	RequestID string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

func NewDecodeError(requestID string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorDecodeFailed,
		Message:   "Failed to decode image",
		RequestID: requestID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewOCRFailedError(requestID string, provider string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorOCRFailed,
		Message:   fmt.Sprintf("OCR failed at provider: %s", provider),
		RequestID: requestID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"ocr_provider": provider,
		},
		Cause: cause,
	}
}

func NewStructuringError(requestID string, chunk int, cause error) *ProcessingError {
	code := ErrorStructuringFailed
	if errors.Is(cause, ErrUnparseable) {
		code = ErrorUnparseable
	}
	return &ProcessingError{
		Code:      code,
		Message:   fmt.Sprintf("Structuring failed for chunk %d", chunk),
		RequestID: requestID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"chunk": chunk,
		},
		Cause: cause,
	}
}

func NewTranslationError(requestID string, cause error) *ProcessingError {
	code := ErrorTranslationFailed
	if errors.Is(cause, ErrCountMismatch) {
		code = ErrorCountMismatch
	}
	return &ProcessingError{
		Code:      code,
		Message:   "Translation failed",
		RequestID: requestID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewProcessingTimeoutError(requestID string, duration time.Duration, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorProcessingTimeout,
		Message:   fmt.Sprintf("Processing timed out after %v", duration),
		RequestID: requestID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"timeout_duration": duration.String(),
		},
		Cause: cause,
	}
}

func NewStorageFailedError(requestID string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorStorageFailed,
		Message:   "Failed to store scan results",
		RequestID: requestID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// UnparseableError carries a short excerpt of the response that failed to parse.
type UnparseableError struct {
	Excerpt string
	Reason  string
}

func (e *UnparseableError) Error() string {
	return fmt.Sprintf("%v: %s (response starts with %q)", ErrUnparseable, e.Reason, e.Excerpt)
}

func (e *UnparseableError) Is(target error) bool {
	return target == ErrUnparseable
}

// CodeOf returns the code of the first ProcessingError in the chain.
func CodeOf(err error) (ErrorCode, bool) {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Code, true
	}
	return "", false
}

// ToMap converts the error into a JSON-friendly map.
func (e *ProcessingError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}
	if e.RequestID != "" {
		result["request_id"] = e.RequestID
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
