package anonymizer

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom/pkg/tag"

	dcm "dicom-deidentifier/internal/dicom"
	"dicom-deidentifier/internal/dicom/dicomtest"
	"dicom-deidentifier/internal/progress"
)

type batchDirs struct {
	source, output, reports string
}

func newBatchDirs(t *testing.T) batchDirs {
	t.Helper()
	root := t.TempDir()
	d := batchDirs{
		source:  filepath.Join(root, "CT original dataset"),
		output:  filepath.Join(root, "CT anonymized dataset"),
		reports: filepath.Join(root, "reports"),
	}
	require.NoError(t, os.Mkdir(d.source, 0755))
	return d
}

func (d batchDirs) config(m Modality) Config {
	return Config{
		SourceDir:     d.source,
		OutputDir:     d.output,
		Modality:      m,
		ReportDir:     d.reports,
		VerifySources: true,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func outputNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func readOutput(t *testing.T, dir, name string) *dcm.Dataset {
	t.Helper()
	ds, err := dcm.ReadDicom(filepath.Join(dir, name))
	require.NoError(t, err)
	return ds
}

func TestProcessFolder_CT(t *testing.T) {
	d := newBatchDirs(t)
	dicomtest.Write(t, d.source, "a.dcm", dicomtest.CTRecord(t))
	dicomtest.Write(t, d.source, "b.dcm", dicomtest.SecondaryCapture(t))
	dicomtest.Write(t, d.source, "c.dcm", dicomtest.CTRecord(t))
	require.NoError(t, os.WriteFile(filepath.Join(d.source, "readme.txt"), []byte("not a record"), 0644))

	before, err := progress.FingerprintDir(d.source)
	require.NoError(t, err)

	var calls []Outcome
	stats, err := ProcessFolderWithProgress(context.Background(), d.config(ModalityCT), func(current, total int, _ string, o Outcome) {
		assert.Equal(t, 3, total)
		assert.Equal(t, len(calls)+1, current)
		calls = append(calls, o)
	})
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Candidates)
	assert.Equal(t, 2, stats.Success)
	assert.Equal(t, 1, stats.Skipped)
	assert.Zero(t, stats.Failed)
	assert.Equal(t, []Outcome{OutcomeSuccess, OutcomeSkipped, OutcomeSuccess}, calls)

	// The secondary capture keeps its number; outputs are named by candidate position.
	assert.Equal(t, []string{"Image_00000.dcm", "Image_00002.dcm"}, outputNames(t, d.output))

	first := readOutput(t, d.output, "Image_00000.dcm")
	second := readOutput(t, d.output, "Image_00002.dcm")

	for _, ds := range []*dcm.Dataset{first, second} {
		assert.Equal(t, CTPlaceholderName, ds.GetTrimmedString(tag.PatientName))
		assert.Empty(t, ds.GetTrimmedString(tag.PatientID))
		assert.Empty(t, ds.GetTrimmedString(tag.InstitutionName))
		assert.Empty(t, ds.GetTrimmedString(tag.SeriesInstanceUID))
		assert.Equal(t, stats.Run.Study, ds.GetTrimmedString(tag.StudyInstanceUID))
		assert.Equal(t, ds.GetSOPInstanceUID(), ds.GetTrimmedString(tag.MediaStorageSOPInstanceUID))
		assert.Empty(t, ds.PrivateTags())
		assert.False(t, ds.Has(tag.DeviceUID))
	}
	assert.NotEqual(t, first.GetSOPInstanceUID(), second.GetSOPInstanceUID())
	assert.NotEqual(t,
		first.GetTrimmedString(tag.FrameOfReferenceUID),
		second.GetTrimmedString(tag.FrameOfReferenceUID))

	after, err := progress.FingerprintDir(d.source)
	require.NoError(t, err)
	assert.Equal(t, before, after, "sources are never modified")

	manifest, err := progress.LoadManifest(filepath.Join(d.reports, ManifestName))
	require.NoError(t, err)
	assert.Equal(t, "CT", manifest.Modality)
	assert.Equal(t, 3, manifest.Summary.Total)
	assert.Equal(t, progress.StatusSkipped, manifest.Files["b.dcm"].Status)
	assert.Equal(t, "Image_00002.dcm", manifest.Files["c.dcm"].Output)
	assert.Equal(t, before["a.dcm"], manifest.Files["a.dcm"].Fingerprint)
}

func TestProcessFolder_MR(t *testing.T) {
	d := newBatchDirs(t)
	dicomtest.Write(t, d.source, "01.dcm", dicomtest.MRRecord(t))

	noSerial := dicomtest.MRRecord(t)
	require.True(t, noSerial.Delete(tag.DeviceSerialNumber))
	dicomtest.Write(t, d.source, "02.dcm", noSerial)

	dicomtest.Write(t, d.source, "03.dcm", dicomtest.CTRecord(t))

	stats, err := ProcessFolder(context.Background(), d.config(ModalityMR))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Success)
	assert.Equal(t, 1, stats.Skipped, "CT records are skipped in an MR run")

	first := readOutput(t, d.output, "Image_00000.dcm")
	second := readOutput(t, d.output, "Image_00001.dcm")

	assert.Equal(t, stats.Run.Equipment, first.GetTrimmedString(tag.DeviceUID))
	assert.Equal(t, stats.Run.Equipment, second.GetTrimmedString(tag.DeviceUID))
	assert.Equal(t, MRPlaceholderName, first.GetTrimmedString(tag.PatientName))
	assert.Empty(t, first.GetTrimmedString(tag.DeviceSerialNumber))
	assert.False(t, second.Has(tag.DeviceSerialNumber))
	assert.False(t, first.Has(tag.ReferencedImageSequence))
}

func TestProcessFolder_ContinuesPastFailures(t *testing.T) {
	d := newBatchDirs(t)
	dicomtest.Write(t, d.source, "a.dcm", dicomtest.CTRecord(t))
	require.NoError(t, os.WriteFile(filepath.Join(d.source, "b.dcm"), []byte("truncated garbage"), 0644))

	incomplete := dicomtest.CTRecord(t)
	require.True(t, incomplete.Delete(tag.RequestAttributesSequence))
	dicomtest.Write(t, d.source, "c.dcm", incomplete)

	dicomtest.Write(t, d.source, "d.dcm", dicomtest.CTRecord(t))

	stats, err := ProcessFolder(context.Background(), d.config(ModalityCT))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Success)
	assert.Equal(t, 2, stats.Failed)

	assert.Equal(t, []string{"Image_00000.dcm", "Image_00003.dcm"}, outputNames(t, d.output))

	assert.ErrorIs(t, stats.Results[1].Err, ErrUnreadableRecord)
	assert.ErrorIs(t, stats.Results[2].Err, ErrMissingRequiredField)

	manifest, err := progress.LoadManifest(filepath.Join(d.reports, ManifestName))
	require.NoError(t, err)
	assert.Equal(t, "unreadable-record", manifest.Files["b.dcm"].Kind)
	assert.Equal(t, "missing-required-field", manifest.Files["c.dcm"].Kind)
	assert.Empty(t, manifest.Files["c.dcm"].Output)

	log, err := os.ReadFile(filepath.Join(d.reports, ErrorLogName))
	require.NoError(t, err)
	assert.Contains(t, string(log), "| b.dcm | unreadable-record |")
	assert.Contains(t, string(log), "| c.dcm | missing-required-field |")
}

func TestProcessFolder_FailFast(t *testing.T) {
	d := newBatchDirs(t)
	require.NoError(t, os.WriteFile(filepath.Join(d.source, "a.dcm"), []byte("garbage"), 0644))
	dicomtest.Write(t, d.source, "b.dcm", dicomtest.CTRecord(t))

	cfg := d.config(ModalityCT)
	cfg.FailFast = true

	stats, err := ProcessFolder(context.Background(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnreadableRecord)
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.Failed)
	assert.Zero(t, stats.Success)
	assert.Empty(t, outputNames(t, d.output))
}

func TestProcessFolder_DryRun(t *testing.T) {
	d := newBatchDirs(t)
	dicomtest.Write(t, d.source, "a.dcm", dicomtest.CTRecord(t))
	dicomtest.Write(t, d.source, "b.dcm", dicomtest.SecondaryCapture(t))

	incomplete := dicomtest.CTRecord(t)
	require.True(t, incomplete.Delete(tag.RequestAttributesSequence))
	dicomtest.Write(t, d.source, "c.dcm", incomplete)

	cfg := d.config(ModalityCT)
	cfg.DryRun = true

	stats, err := ProcessFolder(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Success)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 1, stats.Failed, "a dry run fails the records a real run would fail")
	assert.Equal(t, filepath.Join(d.output, "Image_00000.dcm"), stats.Results[0].Output)

	assert.Equal(t, OutcomeFailed, stats.Results[2].Outcome)
	assert.ErrorIs(t, stats.Results[2].Err, ErrMissingRequiredField)
	assert.Empty(t, stats.Results[2].Output)
	assert.Empty(t, stats.Errors)

	assert.NoDirExists(t, d.output)
	assert.NoDirExists(t, d.reports)
}

func TestProcessFolder_WriteFailure(t *testing.T) {
	d := newBatchDirs(t)
	dicomtest.Write(t, d.source, "a.dcm", dicomtest.CTRecord(t))

	// A directory in the way of the first output name.
	require.NoError(t, os.MkdirAll(filepath.Join(d.output, "Image_00000.dcm"), 0755))

	stats, err := ProcessFolder(context.Background(), d.config(ModalityCT))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.ErrorIs(t, stats.Results[0].Err, ErrWriteFailure)
	assert.Empty(t, stats.Results[0].Output)

	assert.Equal(t, []string{"Image_00000.dcm"}, outputNames(t, d.output), "no partial file is left behind")
	assert.DirExists(t, filepath.Join(d.output, "Image_00000.dcm"))

	manifest, err := progress.LoadManifest(filepath.Join(d.reports, ManifestName))
	require.NoError(t, err)
	assert.Equal(t, "write-failure", manifest.Files["a.dcm"].Kind)

	log, err := os.ReadFile(filepath.Join(d.reports, ErrorLogName))
	require.NoError(t, err)
	assert.Contains(t, string(log), "| a.dcm | write-failure |")
	assert.NotContains(t, string(log), d.output)
}

func TestProcessFolder_SourceModified(t *testing.T) {
	d := newBatchDirs(t)
	dicomtest.Write(t, d.source, "a.dcm", dicomtest.CTRecord(t))
	dicomtest.Write(t, d.source, "b.dcm", dicomtest.CTRecord(t))

	original := readRecord
	t.Cleanup(func() { readRecord = original })
	readRecord = func(path string) (*dcm.Dataset, error) {
		ds, err := original(path)
		if err == nil && filepath.Base(path) == "a.dcm" {
			f, ferr := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
			require.NoError(t, ferr)
			_, ferr = f.Write([]byte{0, 0})
			require.NoError(t, ferr)
			require.NoError(t, f.Close())
		}
		return ds, err
	}

	stats, err := ProcessFolder(context.Background(), d.config(ModalityCT))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Success)

	assert.ErrorIs(t, stats.Results[0].Err, ErrSourceModified)
	assert.Empty(t, stats.Results[0].Output)
	assert.Equal(t, []string{"Image_00001.dcm"}, outputNames(t, d.output), "output of a modified source is removed")

	manifest, err := progress.LoadManifest(filepath.Join(d.reports, ManifestName))
	require.NoError(t, err)
	assert.Equal(t, "source-modified", manifest.Files["a.dcm"].Kind)
	assert.Contains(t, stats.Errors, "1 errors logged to")
}

func TestProcessFolder_NoReports(t *testing.T) {
	d := newBatchDirs(t)
	dicomtest.Write(t, d.source, "a.dcm", dicomtest.CTRecord(t))

	cfg := d.config(ModalityCT)
	cfg.ReportDir = ""
	cfg.VerifySources = false

	stats, err := ProcessFolder(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Success)
	assert.NoDirExists(t, d.reports)
	assert.Equal(t, []string{"Image_00000.dcm"}, outputNames(t, d.output))
}

func TestProcessFolder_Empty(t *testing.T) {
	d := newBatchDirs(t)

	stats, err := ProcessFolder(context.Background(), d.config(ModalityCT))
	require.NoError(t, err)
	assert.Zero(t, stats.Candidates)
	assert.NotEmpty(t, stats.Run.Study)
}

func TestProcessFolder_InvalidModality(t *testing.T) {
	d := newBatchDirs(t)

	_, err := ProcessFolder(context.Background(), d.config(ModalityOther))
	assert.ErrorIs(t, err, ErrInvalidModalitySelection)
}

func TestProcessFolder_MissingSource(t *testing.T) {
	d := newBatchDirs(t)
	cfg := d.config(ModalityCT)
	cfg.SourceDir = filepath.Join(cfg.SourceDir, "missing")

	_, err := ProcessFolder(context.Background(), cfg)
	assert.Error(t, err)
}

func TestProcessFolder_Cancelled(t *testing.T) {
	d := newBatchDirs(t)
	dicomtest.Write(t, d.source, "a.dcm", dicomtest.CTRecord(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := ProcessFolder(ctx, d.config(ModalityCT))
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, stats)
	assert.Empty(t, stats.Results)
	assert.Empty(t, outputNames(t, d.output))
}

func TestProcessFolder_UIDRoot(t *testing.T) {
	d := newBatchDirs(t)
	dicomtest.Write(t, d.source, "a.dcm", dicomtest.CTRecord(t))

	cfg := d.config(ModalityCT)
	cfg.UIDRoot = "1.2.826.0.1.3680043.10.543."

	stats, err := ProcessFolder(context.Background(), cfg)
	require.NoError(t, err)
	assert.Regexp(t, `^1\.2\.826\.0\.1\.3680043\.10\.543\.\d+$`, stats.Run.Study)

	out := readOutput(t, d.output, "Image_00000.dcm")
	assert.Regexp(t, `^1\.2\.826\.0\.1\.3680043\.10\.543\.\d+$`, out.GetSOPInstanceUID())

	cfg.UIDRoot = "not-a-root"
	_, err = ProcessFolder(context.Background(), cfg)
	assert.Error(t, err)
}

func TestFailureKind(t *testing.T) {
	assert.Empty(t, FailureKind(nil))
	assert.Equal(t, "write-failure", FailureKind(ErrWriteFailure))
	assert.Equal(t, "source-modified", FailureKind(ErrSourceModified))
	assert.Equal(t, "other", FailureKind(os.ErrPermission))
}
