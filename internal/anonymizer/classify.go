package anonymizer

import (
	"fmt"

	dcm "dicom-deidentifier/internal/dicom"
)

// Modality is the classification of a record by its storage class.
type Modality string

const (
	ModalityCT    Modality = "CT"
	ModalityMR    Modality = "MR"
	ModalityOther Modality = "OTHER" // secondary captures, snapshots, everything else
)

// Dataset selections accepted from the user.
const (
	SelectionCT  = "CT"
	SelectionMRI = "MRI"
)

// Classify maps the SOP Class UID (0008,0016) of a record to a modality.
// Only the exact primary CT and MR image storage classes are kept; every other
// class, including a missing one, is OTHER and must not be written out.
func Classify(ds *dcm.Dataset) Modality {
	switch ds.GetSOPClassUID() {
	case dcm.CTImageStorage:
		return ModalityCT
	case dcm.MRImageStorage:
		return ModalityMR
	default:
		return ModalityOther
	}
}

// ParseSelection turns the user's dataset choice into a modality. Matching is
// exact and case-sensitive.
func ParseSelection(s string) (Modality, error) {
	switch s {
	case SelectionCT:
		return ModalityCT, nil
	case SelectionMRI:
		return ModalityMR, nil
	default:
		return "", fmt.Errorf("%w: %q (want %s or %s)", ErrInvalidModalitySelection, s, SelectionCT, SelectionMRI)
	}
}

// Selection is the user-facing dataset name for a modality.
func (m Modality) Selection() string {
	if m == ModalityMR {
		return SelectionMRI
	}
	return string(m)
}
