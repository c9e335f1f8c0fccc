package anonymizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	dcm "dicom-deidentifier/internal/dicom"
	"dicom-deidentifier/internal/identity"
	"dicom-deidentifier/internal/progress"
)

// Report file names inside Config.ReportDir.
const (
	ErrorLogName = "errors.log"
	ManifestName = "manifest.json"
)

// Config holds the settings for one de-identification run.
type Config struct {
	SourceDir     string
	OutputDir     string
	Modality      Modality // ModalityCT or ModalityMR
	Extension     string   // candidate suffix, also used for output names
	ReportDir     string   // errors.log and manifest.json; empty disables reports
	UIDRoot       string   // optional organization root for generated UIDs
	DryRun        bool
	FailFast      bool // abort the batch on the first failed file
	VerifySources bool // fingerprint sources before and after processing
	Logger        *slog.Logger
}

// Record readers, swapped in tests.
var (
	readRecord   = dcm.ReadDicom
	readMetadata = dcm.ReadDicomMetadataOnly
)

// Outcome is the result class of one candidate file.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// FileResult describes what happened to one candidate file.
type FileResult struct {
	Index   int
	Source  string
	Output  string // empty unless written (or, in a dry run, would be written)
	Class   Modality
	Outcome Outcome
	Err     error
}

// Stats holds processing statistics
type Stats struct {
	Candidates int
	Success    int
	Failed     int
	Skipped    int
	Run        identity.RunIdentifiers
	Results    []FileResult
	Errors     string // error log summary; empty when reports are off
}

// ProgressCallback is called after each candidate file with its outcome.
type ProgressCallback func(current, total int, filename string, outcome Outcome)

// ProcessFolder de-identifies every candidate file of cfg.SourceDir.
func ProcessFolder(ctx context.Context, cfg Config) (*Stats, error) {
	return ProcessFolderWithProgress(ctx, cfg, nil)
}

// ProcessFolderWithProgress de-identifies every candidate file of cfg.SourceDir
// into cfg.OutputDir, reporting each outcome to progressCb.
//
// Per-file failures are recorded in the returned Stats and do not stop the run
// unless cfg.FailFast is set. The returned error covers run-level problems,
// cancellation and, with FailFast, the first file failure.
func ProcessFolderWithProgress(ctx context.Context, cfg Config, progressCb ProgressCallback) (*Stats, error) {
	if cfg.Modality != ModalityCT && cfg.Modality != ModalityMR {
		return nil, fmt.Errorf("%w: %q", ErrInvalidModalitySelection, cfg.Modality)
	}
	if cfg.Extension == "" {
		cfg.Extension = dcm.DefaultExtension
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("modality", string(cfg.Modality))

	uids, err := identity.NewGenerator(cfg.UIDRoot)
	if err != nil {
		return nil, err
	}

	files, err := dcm.FindDicomFiles(cfg.SourceDir, cfg.Extension)
	if err != nil {
		return nil, fmt.Errorf("could not find DICOM files: %w", err)
	}

	// Drawn once, before any file, and shared by every record of the run.
	stats := &Stats{
		Candidates: len(files),
		Run:        uids.NewRunIdentifiers(),
	}

	if len(files) == 0 {
		log.Warn("no DICOM files found", "dir", cfg.SourceDir, "extension", cfg.Extension)
		return stats, nil
	}
	log.Info("found DICOM files", "count", len(files), "dir", cfg.SourceDir)

	r := &run{
		cfg:    cfg,
		log:    log,
		engine: NewEngine(uids),
		ids:    stats.Run,
	}

	if !cfg.DryRun {
		if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
			return nil, fmt.Errorf("could not create output directory: %w", err)
		}

		if cfg.ReportDir != "" {
			r.errorLog, err = progress.NewErrorLogger(filepath.Join(cfg.ReportDir, ErrorLogName))
			if err != nil {
				return nil, fmt.Errorf("could not create error logger: %w", err)
			}
			defer r.errorLog.Close()

			r.manifest = progress.NewManifest(filepath.Join(cfg.ReportDir, ManifestName), string(cfg.Modality))
		}
	}

	var runErr error
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		res := r.processFile(i, path)
		stats.Results = append(stats.Results, res)

		switch res.Outcome {
		case OutcomeSuccess:
			stats.Success++
		case OutcomeSkipped:
			stats.Skipped++
		case OutcomeFailed:
			stats.Failed++
		}

		if progressCb != nil {
			progressCb(i+1, len(files), filepath.Base(path), res.Outcome)
		}

		if res.Outcome == OutcomeFailed && cfg.FailFast {
			runErr = fmt.Errorf("%s: %w", filepath.Base(path), res.Err)
			break
		}
	}

	if r.manifest != nil {
		if err := r.manifest.Save(); err != nil {
			log.Warn("could not save manifest", "error", err)
		}
	}

	if r.errorLog != nil {
		stats.Errors = r.errorLog.Summary()
	}

	log.Info("run complete",
		"success", stats.Success, "failed", stats.Failed, "skipped", stats.Skipped,
		"study_uid", stats.Run.Study, "errors", stats.Errors)

	return stats, runErr
}

type run struct {
	cfg      Config
	log      *slog.Logger
	engine   *Engine
	ids      identity.RunIdentifiers
	errorLog *progress.ErrorLogger
	manifest *progress.Manifest
}

func (r *run) processFile(index int, path string) FileResult {
	res := FileResult{Index: index, Source: path}
	name := filepath.Base(path)

	var fingerprint string
	if r.cfg.VerifySources {
		fp, err := progress.Fingerprint(path)
		if err != nil {
			return r.fail(res, fmt.Errorf("%w: %w", ErrUnreadableRecord, err), "")
		}
		fingerprint = fp
	}

	read := readRecord
	if r.cfg.DryRun {
		read = readMetadata
	}
	ds, err := read(path)
	if err != nil {
		return r.fail(res, fmt.Errorf("%w: %w", ErrUnreadableRecord, err), fingerprint)
	}

	res.Class = Classify(ds)
	if res.Class != r.cfg.Modality {
		res.Outcome = OutcomeSkipped
		r.log.Debug("skipped", "file", name, "class", string(res.Class), "sop_class", ds.GetSOPClassUID())
		r.record(res, fingerprint)
		return res
	}

	output := filepath.Join(r.cfg.OutputDir, dcm.OutputName(index, r.cfg.Extension))

	// A dry run redacts in memory so it fails the same files a real run would.
	if err := r.engine.Redact(ds, res.Class, r.ids); err != nil {
		return r.fail(res, err, fingerprint)
	}

	if r.cfg.DryRun {
		res.Output = output
		res.Outcome = OutcomeSuccess
		r.log.Info("would write", "file", name, "output", filepath.Base(output))
		return res
	}

	if err := ds.Save(output); err != nil {
		return r.fail(res, fmt.Errorf("%w: %w", ErrWriteFailure, err), fingerprint)
	}
	res.Output = output

	if r.cfg.VerifySources {
		after, err := progress.Fingerprint(path)
		if err != nil || after != fingerprint {
			// The output was built from a source that changed underneath us.
			os.Remove(output)
			res.Output = ""
			return r.fail(res, fmt.Errorf("%w: %s", ErrSourceModified, name), fingerprint)
		}
	}

	res.Outcome = OutcomeSuccess
	r.log.Info("de-identified", "file", name, "output", filepath.Base(output), "sop_instance", ds.GetSOPInstanceUID())
	r.record(res, fingerprint)
	return res
}

func (r *run) fail(res FileResult, err error, fingerprint string) FileResult {
	res.Outcome = OutcomeFailed
	res.Err = err

	r.log.Error("failed", "file", filepath.Base(res.Source), "error", err)
	if r.errorLog != nil {
		r.errorLog.Log(res.Source, FailureKind(err), err.Error())
	}
	r.record(res, fingerprint)
	return res
}

func (r *run) record(res FileResult, fingerprint string) {
	if r.manifest == nil {
		return
	}

	entry := progress.FileEntry{
		Status:      progress.FileStatus(res.Outcome),
		Fingerprint: fingerprint,
		Class:       string(res.Class),
	}
	if res.Output != "" {
		entry.Output = filepath.Base(res.Output)
	}
	if res.Err != nil {
		entry.Error = res.Err.Error()
		entry.Kind = FailureKind(res.Err)
	}
	r.manifest.Record(filepath.Base(res.Source), entry)
}

// FailureKind names the error class of a failed file for reports.
func FailureKind(err error) string {
	var missing *MissingFieldError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &missing):
		return "missing-required-field"
	case errors.Is(err, ErrUnreadableRecord):
		return "unreadable-record"
	case errors.Is(err, ErrWriteFailure):
		return "write-failure"
	case errors.Is(err, ErrSourceModified):
		return "source-modified"
	default:
		return "other"
	}
}
