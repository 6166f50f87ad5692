package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors. Kind is one of the
// sentinel errors below; Cause is the underlying failure, if any.
type AppError struct {
	Code    string
	Message string
	Kind    error
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *AppError) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// Error kinds. Per-unit kinds (document, page, inference) are isolated by the
// pipeline; only ErrNoDocuments, ErrSinkExhausted and ErrInvalidInput end a run.
var (
	ErrDocumentOpen   = errors.New("document open failed")
	ErrPageExtraction = errors.New("page extraction failed")
	ErrInference      = errors.New("inference failed")
	ErrNoDocuments    = errors.New("no input documents")
	ErrSinkExhausted  = errors.New("output sink failed")
	ErrInvalidInput   = errors.New("invalid input")
	ErrNotFound       = errors.New("resource not found")
)

// Error codes used in logs and the ledger.
const (
	CodeDocumentOpen   = "DOCUMENT_OPEN"
	CodePageExtraction = "PAGE_EXTRACTION"
	CodeInference      = "INFERENCE"
	CodeNoDocuments    = "NO_DOCUMENTS"
	CodeSink           = "SINK"
	CodeConfig         = "CONFIG_ERROR"
	CodeNotFound       = "NOT_FOUND"
)

// Error constructors
func NewAppError(code, message string, kind, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Kind:    kind,
		Cause:   cause,
	}
}

func DocumentOpenError(path string, cause error) error {
	return NewAppError(CodeDocumentOpen, path, ErrDocumentOpen, cause)
}

func PageExtractionError(path string, page int, cause error) error {
	return NewAppError(CodePageExtraction, fmt.Sprintf("%s page %d", path, page), ErrPageExtraction, cause)
}

func InferenceError(message string, cause error) error {
	return NewAppError(CodeInference, message, ErrInference, cause)
}

func SinkError(path string, cause error) error {
	return NewAppError(CodeSink, path, ErrSinkExhausted, cause)
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
