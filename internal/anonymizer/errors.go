package anonymizer

import (
	"errors"
	"fmt"

	"github.com/suyashkumar/dicom/pkg/tag"

	dcm "dicom-deidentifier/internal/dicom"
)

var (
	// ErrUnreadableRecord means the source could not be parsed as DICOM.
	ErrUnreadableRecord = errors.New("unreadable record")
	// ErrMissingRequiredField means an unguarded rule targeted an absent tag or sequence item.
	ErrMissingRequiredField = errors.New("missing required field")
	// ErrWriteFailure means the de-identified record could not be written.
	ErrWriteFailure = errors.New("write failure")
	// ErrInvalidModalitySelection means a dataset selection was neither CT nor MRI.
	ErrInvalidModalitySelection = errors.New("invalid modality selection")
	// ErrSourceModified means a source file changed while it was being processed.
	ErrSourceModified = errors.New("source file modified")
)

// MissingFieldError names the tag an unguarded rule could not find.
type MissingFieldError struct {
	Tag      tag.Tag
	Sequence *tag.Tag
	Err      error
}

func (e *MissingFieldError) Error() string {
	if e.Sequence != nil {
		return fmt.Sprintf("%s: %s in %s: %v",
			ErrMissingRequiredField, dcm.TagName(e.Tag), dcm.TagName(*e.Sequence), e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", ErrMissingRequiredField, dcm.TagName(e.Tag), e.Err)
}

// Is lets errors.Is match ErrMissingRequiredField.
func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingRequiredField
}

func (e *MissingFieldError) Unwrap() error {
	return e.Err
}
