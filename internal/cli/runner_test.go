package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dicom-deidentifier/internal/anonymizer"
	"dicom-deidentifier/internal/config"
	"dicom-deidentifier/internal/dicom/dicomtest"
)

func TestPromptModality(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    anonymizer.Modality
		retries int
		wantErr bool
	}{
		{"ct", "CT\n", anonymizer.ModalityCT, 0, false},
		{"mri", "MRI\n", anonymizer.ModalityMR, 0, false},
		{"crlf", "MRI\r\n", anonymizer.ModalityMR, 0, false},
		{"no trailing newline", "CT", anonymizer.ModalityCT, 0, false},
		{"lowercase then valid", "ct\nmr\nMR\nMRI\n", anonymizer.ModalityMR, 3, false},
		{"padded is rejected", " CT\nCT\n", anonymizer.ModalityCT, 1, false},
		{"eof", "xray\n", "", 1, true},
		{"empty input", "", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got, err := PromptModality(strings.NewReader(tt.input), &out)

			assert.Equal(t, tt.retries, strings.Count(out.String(), RetryText))
			if tt.wantErr {
				assert.ErrorIs(t, err, anonymizer.ErrInvalidModalitySelection)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.retries+1, strings.Count(out.String(), PromptText))
		})
	}
}

func TestProgressBar(t *testing.T) {
	var buf bytes.Buffer
	pb := newProgressBar(&buf, 10)

	pb.update(0, 0)
	assert.Empty(t, buf.String())

	pb.update(1, 2)
	assert.Equal(t, "\r[#####-----]  50%  (1/2)", buf.String())
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ctConfig(t *testing.T) *config.Config {
	t.Helper()
	work := t.TempDir()
	src := filepath.Join(work, config.CTSourceName)
	require.NoError(t, os.Mkdir(src, 0755))

	dicomtest.Write(t, src, "a.dcm", dicomtest.CTRecord(t))
	dicomtest.Write(t, src, "b.dcm", dicomtest.SecondaryCapture(t))

	return &config.Config{
		WorkDir:       work,
		Extension:     ".dcm",
		CT:            config.Dataset{SourceDir: src, OutputDir: filepath.Join(work, config.CTOutputName)},
		ReportDir:     filepath.Join(work, config.ReportName),
		VerifySources: true,
	}
}

func TestRun(t *testing.T) {
	cfg := ctConfig(t)
	var out bytes.Buffer

	err := Run(context.Background(), Options{
		Config:   cfg,
		Modality: anonymizer.ModalityCT,
		Logger:   quietLogger(),
		Out:      &out,
	})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Complete! 1 succeeded, 0 failed, 1 skipped (of 2 files)")
	assert.FileExists(t, filepath.Join(cfg.CT.OutputDir, "Image_00000.dcm"))
	assert.NoFileExists(t, filepath.Join(cfg.CT.OutputDir, "Image_00001.dcm"))
	assert.FileExists(t, filepath.Join(cfg.ReportDir, anonymizer.ManifestName))
	assert.Contains(t, out.String(), "Errors:    No errors")
}

func TestRun_DryRun(t *testing.T) {
	cfg := ctConfig(t)
	var out bytes.Buffer

	err := Run(context.Background(), Options{
		Config:   cfg,
		Modality: anonymizer.ModalityCT,
		DryRun:   true,
		Logger:   quietLogger(),
		Out:      &out,
	})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "[DRY RUN MODE]")
	assert.NoDirExists(t, cfg.CT.OutputDir)
	assert.NoDirExists(t, cfg.ReportDir)
}

func TestRun_MissingSource(t *testing.T) {
	cfg := ctConfig(t)
	cfg.MRI = config.Dataset{SourceDir: filepath.Join(cfg.WorkDir, "nope"), OutputDir: filepath.Join(cfg.WorkDir, "out")}

	err := Run(context.Background(), Options{Config: cfg, Modality: anonymizer.ModalityMR, Out: io.Discard})
	assert.ErrorContains(t, err, "source folder does not exist")
}

func TestPrintUsage(t *testing.T) {
	var buf bytes.Buffer
	PrintUsage(&buf)
	assert.Contains(t, buf.String(), "--modality")
	assert.Contains(t, buf.String(), "CT original dataset")
}
