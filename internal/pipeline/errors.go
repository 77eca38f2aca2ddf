package pipeline

import (
	"errors"
	"fmt"

	"healthbyte/api/internal/media/normalizer"
	"healthbyte/api/internal/vision"
)

// ValidationError is raised before any I/O happens. The reason is safe to
// show to the user verbatim.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid submission: %s", e.Reason)
}

// UploadError means a blob could not be persisted. Already-completed
// uploads are not rolled back by the orchestrator itself.
type UploadError struct {
	Filename string
	Err      error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.Filename, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// UserMessage maps an internal pipeline error onto one of a small set of
// fixed, human-readable messages. Provider detail never leaks outward.
func UserMessage(err error) string {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Reason
	}

	var unsupportedErr *normalizer.UnsupportedFormatError
	if errors.As(err, &unsupportedErr) {
		return fmt.Sprintf("unsupported image format: %s", unsupportedErr.Filename)
	}

	var conversionErr *normalizer.ConversionError
	if errors.As(err, &conversionErr) {
		return "one of your images could not be processed"
	}

	var uploadErr *UploadError
	if errors.As(err, &uploadErr) {
		return "image upload failed, please try again"
	}

	var classificationErr *vision.ClassificationError
	if errors.As(err, &classificationErr) {
		return "image screening is unavailable right now, please try again"
	}

	return "something went wrong, please try again"
}
