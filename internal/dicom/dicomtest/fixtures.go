// Package dicomtest builds synthetic CT, MR and secondary capture records for tests.
package dicomtest

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	dcm "dicom-deidentifier/internal/dicom"
)

// Private tags planted in every fixture.
var (
	PrivateCreator = tag.Tag{Group: 0x0009, Element: 0x0010}
	PrivateValue   = tag.Tag{Group: 0x0009, Element: 0x1001}
	// NestedPrivate sits inside the first RequestAttributesSequence item.
	NestedPrivate = tag.Tag{Group: 0x0041, Element: 0x0010}
)

// Original UIDs carried by fixtures before redaction.
const (
	OriginalStudyUID    = "1.2.826.0.1.3680043.2.1125.1.1"
	OriginalSeriesUID   = "1.2.826.0.1.3680043.2.1125.1.2"
	OriginalFrameUID    = "1.2.826.0.1.3680043.2.1125.1.3"
	OriginalInstanceUID = "1.2.826.0.1.3680043.2.1125.1.4"
)

// CTRecord returns a CT Image Storage record carrying every field the CT rules touch.
func CTRecord(t testing.TB) *dcm.Dataset {
	t.Helper()
	elements := append(commonElements(t, dcm.CTImageStorage, "CT"),
		mustNewElement(t, tag.PatientName, []string{"Smith^John"}),
		mustNewElement(t, tag.InstitutionAddress, []string{"1 Hospital Road, Springfield"}),
		mustNewElement(t, tag.InstitutionalDepartmentName, []string{"Radiology"}),
		mustNewElement(t, tag.SoftwareVersions, []string{"syngo CT VA48A"}),
		mustNewElement(t, tag.ScheduledProcedureStepStartDate, []string{"20240301"}),
		mustNewElement(t, tag.ScheduledProcedureStepStartTime, []string{"083000"}),
		mustNewElement(t, tag.ScheduledProcedureStepEndDate, []string{"20240301"}),
		mustNewElement(t, tag.ScheduledProcedureStepEndTime, []string{"090000"}),
		mustNewElement(t, tag.PerformedProcedureStepStartDate, []string{"20240301"}),
		mustNewElement(t, tag.PerformedProcedureStepStartTime, []string{"084500"}),
		mustNewElement(t, tag.PerformedProcedureStepID, []string{"PPS-7781"}),
		mustNewElement(t, tag.DeviceSerialNumber, []string{"SN-55012"}),
		requestAttributes(t),
	)
	return build(elements)
}

// MRRecord returns an MR Image Storage record carrying every optional field the MR rules guard.
func MRRecord(t testing.TB) *dcm.Dataset {
	t.Helper()
	elements := append(commonElements(t, dcm.MRImageStorage, "MR"),
		mustNewElement(t, tag.PatientName, []string{"Doe^Jane"}),
		mustNewElement(t, tag.InstanceCreationDate, []string{"20240302"}),
		mustNewElement(t, tag.InstanceCreationTime, []string{"101500"}),
		mustNewElement(t, tag.NameOfPhysiciansReadingStudy, []string{"House^Gregory"}),
		mustNewElement(t, tag.PatientWeight, []string{"71.5"}),
		mustNewElement(t, tag.AdditionalPatientHistory, []string{"Prior knee surgery at St. Mary"}),
		mustNewElement(t, tag.PerformedProcedureStepID, []string{"PPS-9921"}),
		mustNewElement(t, tag.DeviceSerialNumber, []string{"MR-SN-0042"}),
		requestAttributes(t),
		mustNewElement(t, tag.ReferencedImageSequence, [][]*dicom.Element{{
			mustNewElement(t, tag.ReferencedSOPClassUID, []string{dcm.MRImageStorage}),
			mustNewElement(t, tag.ReferencedSOPInstanceUID, []string{"1.2.826.0.1.3680043.2.1125.9.9"}),
		}}),
	)
	return build(elements)
}

// SecondaryCapture returns a screenshot-style record that must never be written out.
func SecondaryCapture(t testing.TB) *dcm.Dataset {
	t.Helper()
	elements := append(commonElements(t, dcm.SecondaryCaptureImageStorage, "OT"),
		mustNewElement(t, tag.PatientName, []string{"Smith^John"}),
	)
	return build(elements)
}

// Write serializes ds to dir/name and returns the path.
func Write(t testing.TB, dir, name string, ds *dcm.Dataset) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, dicom.Write(f, ds.Data,
		dicom.SkipVRVerification(),
		dicom.SkipValueTypeVerification(),
	))
	return path
}

// PrivateElement builds an LO element under an arbitrary (private) tag.
func PrivateElement(t testing.TB, tg tag.Tag, value string) *dicom.Element {
	t.Helper()
	v, err := dicom.NewValue([]string{value})
	require.NoError(t, err)
	return &dicom.Element{
		Tag:                    tg,
		ValueRepresentation:    tag.VRString,
		RawValueRepresentation: "LO",
		ValueLength:            uint32(len(value)),
		Value:                  v,
	}
}

func commonElements(t testing.TB, sopClass, modality string) []*dicom.Element {
	return []*dicom.Element{
		mustNewElement(t, tag.FileMetaInformationVersion, []byte{0x00, 0x01}),
		mustNewElement(t, tag.MediaStorageSOPClassUID, []string{sopClass}),
		mustNewElement(t, tag.MediaStorageSOPInstanceUID, []string{OriginalInstanceUID}),
		mustNewElement(t, tag.TransferSyntaxUID, []string{dcm.ExplicitVRLittleEndian}),
		mustNewElement(t, tag.SourceApplicationEntityTitle, []string{"SCANNER_AE01"}),

		mustNewElement(t, tag.SOPClassUID, []string{sopClass}),
		mustNewElement(t, tag.SOPInstanceUID, []string{OriginalInstanceUID}),
		mustNewElement(t, tag.StudyDate, []string{"20240301"}),
		mustNewElement(t, tag.SeriesDate, []string{"20240301"}),
		mustNewElement(t, tag.AcquisitionDate, []string{"20240301"}),
		mustNewElement(t, tag.ContentDate, []string{"20240301"}),
		mustNewElement(t, tag.StudyTime, []string{"084512"}),
		mustNewElement(t, tag.SeriesTime, []string{"084730"}),
		mustNewElement(t, tag.AcquisitionTime, []string{"084801"}),
		mustNewElement(t, tag.ContentTime, []string{"084802"}),
		mustNewElement(t, tag.AccessionNumber, []string{"ACC-2024-0001"}),
		mustNewElement(t, tag.Modality, []string{modality}),
		mustNewElement(t, tag.Manufacturer, []string{"SIEMENS"}),
		mustNewElement(t, tag.InstitutionName, []string{"Springfield General"}),
		mustNewElement(t, tag.ReferringPhysicianName, []string{"Hibbert^Julius"}),
		mustNewElement(t, tag.StationName, []string{"CTSTATION7"}),
		mustNewElement(t, tag.OperatorsName, []string{"Tech^Terry"}),
		mustNewElement(t, tag.ManufacturerModelName, []string{"SOMATOM Force"}),
		mustNewElement(t, tag.PatientID, []string{"MRN-00042"}),
		mustNewElement(t, tag.PatientBirthDate, []string{"19700101"}),
		mustNewElement(t, tag.PatientSex, []string{"M"}),
		mustNewElement(t, tag.PatientAge, []string{"054Y"}),
		mustNewElement(t, tag.StudyInstanceUID, []string{OriginalStudyUID}),
		mustNewElement(t, tag.SeriesInstanceUID, []string{OriginalSeriesUID}),
		mustNewElement(t, tag.StudyID, []string{"STUDY-17"}),
		mustNewElement(t, tag.FrameOfReferenceUID, []string{OriginalFrameUID}),
		PrivateElement(t, PrivateCreator, "ACME MEDICAL"),
		PrivateElement(t, PrivateValue, "patient hash 8f2c"),
	}
}

func requestAttributes(t testing.TB) *dicom.Element {
	return mustNewElement(t, tag.RequestAttributesSequence, [][]*dicom.Element{{
		mustNewElement(t, tag.ScheduledProcedureStepID, []string{"SPS-1200"}),
		mustNewElement(t, tag.RequestedProcedureID, []string{"RP-3400"}),
		PrivateElement(t, NestedPrivate, "nested vendor data"),
	}})
}

func build(elements []*dicom.Element) *dcm.Dataset {
	sort.SliceStable(elements, func(i, j int) bool {
		a, b := elements[i].Tag, elements[j].Tag
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		return a.Element < b.Element
	})
	return dcm.NewDataset(elements...)
}

func mustNewElement(t testing.TB, tg tag.Tag, data interface{}) *dicom.Element {
	t.Helper()
	elem, err := dicom.NewElement(tg, data)
	require.NoError(t, err, "could not build %s", dcm.TagName(tg))
	return elem
}
