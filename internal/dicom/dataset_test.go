package dicom_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	dcm "dicom-deidentifier/internal/dicom"
	"dicom-deidentifier/internal/dicom/dicomtest"
)

func TestDataset_Lookup(t *testing.T) {
	ds := dicomtest.CTRecord(t)

	assert.True(t, ds.Has(tag.PatientName))
	assert.Equal(t, "Smith^John", ds.GetString(tag.PatientName))
	assert.Equal(t, dcm.CTImageStorage, ds.GetSOPClassUID())
	assert.Equal(t, dicomtest.OriginalInstanceUID, ds.GetSOPInstanceUID())
	assert.Equal(t, dicomtest.OriginalInstanceUID, ds.GetTrimmedString(tag.MediaStorageSOPInstanceUID))
	assert.Equal(t, dcm.ExplicitVRLittleEndian, ds.GetTrimmedString(tag.TransferSyntaxUID))

	assert.False(t, ds.Has(tag.DeviceUID))
	assert.Empty(t, ds.GetString(tag.DeviceUID))

	_, err := ds.Element(tag.DeviceUID)
	assert.ErrorIs(t, err, dcm.ErrTagNotFound)
	assert.Contains(t, err.Error(), "(0018,1002)")
}

func TestDataset_ReplaceAndBlank(t *testing.T) {
	ds := dicomtest.CTRecord(t)

	require.NoError(t, ds.Replace(tag.PatientName, "CT_Patient"))
	assert.Equal(t, "CT_Patient", ds.GetString(tag.PatientName))

	require.NoError(t, ds.Blank(tag.PatientID))
	assert.Equal(t, dcm.BlankValue, ds.GetString(tag.PatientID))

	assert.ErrorIs(t, ds.Blank(tag.PatientWeight), dcm.ErrTagNotFound)
	assert.False(t, ds.Has(tag.PatientWeight), "blank never inserts")
}

func TestDataset_Put(t *testing.T) {
	ds := dicomtest.CTRecord(t)
	before := len(ds.Data.Elements)

	require.NoError(t, ds.Put(tag.StudyInstanceUID, "2.25.1"))
	assert.Equal(t, "2.25.1", ds.GetString(tag.StudyInstanceUID))
	assert.Len(t, ds.Data.Elements, before)

	require.NoError(t, ds.Put(tag.DeviceUID, "2.25.2"))
	assert.Equal(t, "2.25.2", ds.GetString(tag.DeviceUID))
	assert.Len(t, ds.Data.Elements, before+1)

	for i := 1; i < len(ds.Data.Elements); i++ {
		prev, cur := ds.Data.Elements[i-1].Tag, ds.Data.Elements[i].Tag
		assert.True(t, prev.Group < cur.Group || (prev.Group == cur.Group && prev.Element < cur.Element),
			"elements out of order at %d: %s before %s", i, dcm.TagName(prev), dcm.TagName(cur))
	}
}

func TestDataset_Delete(t *testing.T) {
	ds := dicomtest.MRRecord(t)

	assert.True(t, ds.Delete(tag.ReferencedImageSequence))
	assert.False(t, ds.Has(tag.ReferencedImageSequence))
	assert.False(t, ds.Delete(tag.ReferencedImageSequence))
}

func TestDataset_Item(t *testing.T) {
	ds := dicomtest.CTRecord(t)

	item, err := ds.Item(tag.RequestAttributesSequence, 0)
	require.NoError(t, err)
	assert.Equal(t, "SPS-1200", item.GetString(tag.ScheduledProcedureStepID))

	// Value edits through the item land in the parent record.
	require.NoError(t, item.Blank(tag.ScheduledProcedureStepID))
	again, err := ds.Item(tag.RequestAttributesSequence, 0)
	require.NoError(t, err)
	assert.Equal(t, dcm.BlankValue, again.GetString(tag.ScheduledProcedureStepID))

	_, err = ds.Item(tag.RequestAttributesSequence, 1)
	assert.ErrorIs(t, err, dcm.ErrEmptySequence)

	_, err = ds.Item(tag.PatientName, 0)
	assert.ErrorIs(t, err, dcm.ErrNotSequence)

	_, err = ds.Item(tag.ReferencedImageSequence, 0)
	assert.ErrorIs(t, err, dcm.ErrTagNotFound)
}

func TestDataset_ItemOfEmptySequence(t *testing.T) {
	seq, err := dicom.NewElement(tag.RequestAttributesSequence, [][]*dicom.Element{})
	require.NoError(t, err)
	ds := dcm.NewDataset(seq)

	_, err = ds.Item(tag.RequestAttributesSequence, 0)
	assert.ErrorIs(t, err, dcm.ErrEmptySequence)
}

func TestDataset_RemovePrivateTags(t *testing.T) {
	ds := dicomtest.CTRecord(t)
	assert.ElementsMatch(t,
		[]tag.Tag{dicomtest.PrivateCreator, dicomtest.PrivateValue, dicomtest.NestedPrivate},
		ds.PrivateTags())

	removed, err := ds.RemovePrivateTags()
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
	assert.Empty(t, ds.PrivateTags())

	item, err := ds.Item(tag.RequestAttributesSequence, 0)
	require.NoError(t, err)
	assert.Equal(t, "RP-3400", item.GetString(tag.RequestedProcedureID), "public nested tags survive")

	removed, err = ds.RemovePrivateTags()
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestDataset_SaveAndRead(t *testing.T) {
	dir := t.TempDir()
	ds := dicomtest.MRRecord(t)
	require.NoError(t, ds.Replace(tag.PatientName, "MRI_patient"))
	_, err := ds.RemovePrivateTags()
	require.NoError(t, err)

	out := filepath.Join(dir, "out", "Image_00000.dcm")
	require.NoError(t, ds.Save(out))

	entries, err := os.ReadDir(filepath.Dir(out))
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp file left behind")
	assert.Equal(t, "Image_00000.dcm", entries[0].Name())

	back, err := dcm.ReadDicom(out)
	require.NoError(t, err)
	assert.Equal(t, "MRI_patient", back.GetTrimmedString(tag.PatientName))
	assert.Equal(t, dcm.MRImageStorage, back.GetSOPClassUID())
	assert.Empty(t, back.PrivateTags())

	item, err := back.Item(tag.RequestAttributesSequence, 0)
	require.NoError(t, err)
	assert.Equal(t, "SPS-1200", item.GetTrimmedString(tag.ScheduledProcedureStepID))

	meta, err := dcm.ReadDicomMetadataOnly(out)
	require.NoError(t, err)
	assert.Equal(t, back.GetSOPInstanceUID(), meta.GetSOPInstanceUID())
}

func TestReadDicom_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.dcm")
	require.NoError(t, os.WriteFile(path, []byte("this is not a DICOM file"), 0644))

	_, err := dcm.ReadDicom(path)
	assert.Error(t, err)

	_, err = dcm.ReadDicom(dir)
	assert.Error(t, err)

	_, err = dcm.ReadDicom(filepath.Join(dir, "missing.dcm"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Contains(t, err.Error(), "missing.dcm")
	assert.NotContains(t, err.Error(), dir, "errors name files, not directories")
}

func TestSave_BlockedOutput(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "Image_00000.dcm")
	require.NoError(t, os.Mkdir(out, 0755))

	err := dicomtest.CTRecord(t).Save(out)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), dir)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp file is removed")
	assert.True(t, entries[0].IsDir())
}

func TestTagName(t *testing.T) {
	assert.Contains(t, dcm.TagName(tag.PatientName), "(0010,0010)")
	assert.Equal(t, "(0009,1001)", dcm.TagName(dicomtest.PrivateValue))
}
