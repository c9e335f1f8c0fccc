package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"dicom-deidentifier/internal/anonymizer"
	"dicom-deidentifier/internal/config"
	"dicom-deidentifier/internal/publish"
)

// Prompt texts of the interactive dataset selection.
const (
	PromptText = "Choose which dataset you want to deidentify (CT or MRI): "
	RetryText  = "You didn't enter either CT or MRI.  Please try again."
)

// Options holds CLI configuration options
type Options struct {
	Config   *config.Config
	Modality anonymizer.Modality
	DryRun   bool
	Logger   *slog.Logger
	Out      io.Writer // defaults to os.Stdout
}

// Run executes one de-identification run for the selected modality.
func Run(ctx context.Context, opts Options) error {
	if opts.Config == nil {
		return fmt.Errorf("configuration is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	cfg := opts.Config

	source, output, err := cfg.Dirs(string(opts.Modality))
	if err != nil {
		return err
	}

	info, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("source folder does not exist: %s", source)
	}
	if !info.IsDir() {
		return fmt.Errorf("source path is not a directory: %s", source)
	}

	runCfg := anonymizer.Config{
		SourceDir:     source,
		OutputDir:     output,
		Modality:      opts.Modality,
		Extension:     cfg.Extension,
		ReportDir:     cfg.Reports(),
		UIDRoot:       cfg.UIDRoot,
		DryRun:        opts.DryRun,
		FailFast:      cfg.FailFast,
		VerifySources: cfg.VerifySources,
		Logger:        opts.Logger,
	}

	printHeader(out, runCfg)

	pb := newProgressBar(out, 50)
	progressCallback := func(current, total int, filename string, outcome anonymizer.Outcome) {
		pb.update(current, total)
	}

	if opts.DryRun {
		fmt.Fprintln(out, "\n[DRY RUN MODE]")
	}
	fmt.Fprintln(out)

	stats, runErr := anonymizer.ProcessFolderWithProgress(ctx, runCfg, progressCallback)
	if stats == nil {
		return fmt.Errorf("processing failed: %w", runErr)
	}
	if done := stats.Success + stats.Failed + stats.Skipped; done > 0 {
		pb.update(done, stats.Candidates)
		fmt.Fprintln(out)
	}

	printSummary(out, stats, runCfg)

	if runErr != nil {
		return fmt.Errorf("processing stopped: %w", runErr)
	}

	if cfg.Export.Enabled() && !opts.DryRun && stats.Success > 0 {
		if err := export(ctx, out, cfg.Export, output, opts.Logger); err != nil {
			return err
		}
	}

	return nil
}

func export(ctx context.Context, out io.Writer, e config.Export, dir string, log *slog.Logger) error {
	store, err := publish.New(ctx, publish.Options{
		Endpoint:  e.Endpoint,
		Region:    e.Region,
		Bucket:    e.Bucket,
		AccessKey: e.AccessKey,
		SecretKey: e.SecretKey,
		UseSSL:    e.UseSSL,
		Prefix:    e.Prefix,
	}, log)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	keys, err := store.UploadDir(ctx, dir)
	if err != nil {
		return fmt.Errorf("export failed after %d objects: %w", len(keys), err)
	}
	fmt.Fprintf(out, "Exported:  %d files to %s/%s\n", len(keys), e.Endpoint, e.Bucket)
	return nil
}

// PromptModality asks on w until r yields exactly CT or MRI. It only gives up
// when r is exhausted.
func PromptModality(r io.Reader, w io.Writer) (anonymizer.Modality, error) {
	scanner := bufio.NewScanner(r)
	for {
		fmt.Fprint(w, PromptText)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", fmt.Errorf("could not read selection: %w", err)
			}
			return "", fmt.Errorf("%w: no selection before end of input", anonymizer.ErrInvalidModalitySelection)
		}

		m, err := anonymizer.ParseSelection(strings.TrimRight(scanner.Text(), "\r"))
		if err == nil {
			return m, nil
		}
		if !errors.Is(err, anonymizer.ErrInvalidModalitySelection) {
			return "", err
		}
		fmt.Fprintf(w, "%s\n\n", RetryText)
	}
}

// PrintUsage prints CLI usage information
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, `DICOM De-identifier

USAGE:
  dicom-deidentifier                      Ask which dataset to process (CT or MRI)
  dicom-deidentifier -modality CT [flags] Process without prompting
  dicom-deidentifier -gui                 Launch the desktop window

FLAGS:
  -m, --modality <CT|MRI>   Dataset to de-identify (or DEID_MODALITY)
  -c, --config <path>       YAML config file (default: deidentifier.yaml if present)
  -w, --work-dir <path>     Folder holding the "CT/MRI original dataset" folders
      --uid-root <root>     Organization UID root for new identifiers (e.g. 1.2.826.0.1.3680043.10.543.)
      --report-dir <path>   Where errors.log and manifest.json go ("off" disables)
      --log-level <level>   debug, info, warn or error
      --fail-fast           Stop at the first file that cannot be de-identified
      --no-verify           Skip the before/after source fingerprint check
  -n, --dry-run             Classify and list outputs, write nothing
      --gui                 Launch the desktop window
  -h, --help                Show this help message

DIRECTORIES (relative to the work dir unless configured):
  CT original dataset   ->  CT anonymized dataset
  MRI original dataset  ->  MRI anonymized dataset

  Only *.dcm files directly inside the source folder are read. Outputs are
  numbered Image_00000.dcm, Image_00001.dcm, ... in file name order. Records
  that are not CT or MR image storage (secondary captures, reports) are
  skipped and never written. Source files are never modified.

EXPORT:
  Set export.endpoint and export.bucket (or DEID_EXPORT_ENDPOINT and
  DEID_EXPORT_BUCKET) to upload the anonymized folder to S3/MinIO after a run.

EXAMPLES:
  # Preview what an MRI run would write
  ./dicom-deidentifier -m MRI -n

  # De-identify CT scans under /data/study with an organization UID root
  ./dicom-deidentifier -m CT -w /data/study --uid-root 1.2.826.0.1.3680043.10.543.
`)
}

// printHeader prints the CLI header with configuration
func printHeader(w io.Writer, cfg anonymizer.Config) {
	fmt.Fprintln(w, "DICOM De-identifier")
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintf(w, "Dataset:   %s\n", cfg.Modality.Selection())
	fmt.Fprintf(w, "Source:    %s\n", cfg.SourceDir)
	fmt.Fprintf(w, "Output:    %s\n", cfg.OutputDir)
	if cfg.ReportDir != "" {
		fmt.Fprintf(w, "Reports:   %s\n", cfg.ReportDir)
	}
	if cfg.UIDRoot != "" {
		fmt.Fprintf(w, "UID root:  %s\n", cfg.UIDRoot)
	}

	var options []string
	if cfg.VerifySources {
		options = append(options, "Verify sources")
	}
	if cfg.FailFast {
		options = append(options, "Fail fast")
	}
	if cfg.DryRun {
		options = append(options, "Dry run")
	}
	if len(options) > 0 {
		fmt.Fprintf(w, "Options:   %s\n", strings.Join(options, ", "))
	}
}

// printSummary prints the processing summary
func printSummary(w io.Writer, stats *anonymizer.Stats, cfg anonymizer.Config) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintf(w, "Complete! %d succeeded, %d failed, %d skipped (of %d files)\n",
		stats.Success, stats.Failed, stats.Skipped, stats.Candidates)
	if stats.Candidates == 0 {
		fmt.Fprintf(w, "No %s files found in %s\n", cfg.Extension, cfg.SourceDir)
		return
	}
	fmt.Fprintf(w, "Study UID: %s\n", stats.Run.Study)
	if cfg.Modality == anonymizer.ModalityMR {
		fmt.Fprintf(w, "Device UID: %s\n", stats.Run.Equipment)
	}
	if !cfg.DryRun {
		fmt.Fprintf(w, "Output:    %s\n", cfg.OutputDir)
	}
	if stats.Errors != "" {
		fmt.Fprintf(w, "Errors:    %s\n", stats.Errors)
	}
}

// progressBar represents a terminal progress bar
type progressBar struct {
	w     io.Writer
	width int
}

func newProgressBar(w io.Writer, width int) *progressBar {
	return &progressBar{w: w, width: width}
}

// update updates the progress bar display
func (pb *progressBar) update(current, total int) {
	if total == 0 {
		return
	}

	percent := float64(current) / float64(total)
	filled := int(percent * float64(pb.width))
	if filled > pb.width {
		filled = pb.width
	}

	bar := strings.Repeat("#", filled) + strings.Repeat("-", pb.width-filled)
	fmt.Fprintf(pb.w, "\r[%s] %3.0f%%  (%d/%d)", bar, percent*100, current, total)
}
