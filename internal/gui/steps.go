package gui

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"dicom-deidentifier/internal/anonymizer"
	"dicom-deidentifier/internal/config"
	dcm "dicom-deidentifier/internal/dicom"
)

// previewLimit caps the per-file lines shown after a dry run.
const previewLimit = 200

// StepBuilder handles creating UI content for each wizard step
type StepBuilder struct {
	window fyne.Window
	wizard *Wizard
	cfg    *config.Config
	log    *slog.Logger
	ctx    context.Context

	// Dataset
	modalityRadio  *widget.RadioGroup
	sourceEntry    *widget.Entry
	outputEntry    *widget.Entry
	fileCountLabel *widget.Label

	// Preview
	previewProgress *widget.ProgressBar
	previewStatus   *widget.Label
	previewFiles    *widget.Label
	dryRunComplete  bool

	// Process
	processProgress    *widget.ProgressBar
	processStatus      *widget.Label
	processFileCount   *widget.Label
	processCurrentFile *widget.Label
	processStats       *widget.Label
	processSummary     *widget.Label
	processing         bool
	processingMu       sync.Mutex
}

// NewStepBuilder creates a new step builder
func NewStepBuilder(ctx context.Context, window fyne.Window, wizard *Wizard, cfg *config.Config, log *slog.Logger) *StepBuilder {
	return &StepBuilder{
		window: window,
		wizard: wizard,
		cfg:    cfg,
		log:    log,
		ctx:    ctx,
	}
}

func stepTitle(text string) *canvas.Text {
	t := canvas.NewText(text, ColorTextPrimary)
	t.TextSize = 18
	t.TextStyle = fyne.TextStyle{Bold: true}
	return t
}

func (s *StepBuilder) folderRow(entry *widget.Entry) fyne.CanvasObject {
	browse := widget.NewButton("Browse", func() {
		dialog.ShowFolderOpen(func(uri fyne.ListableURI, err error) {
			if err != nil || uri == nil {
				return
			}
			entry.SetText(uri.Path())
		}, s.window)
	})
	return container.NewBorder(nil, nil, nil, browse, entry)
}

// BuildDatasetStep creates the dataset selection content.
func (s *StepBuilder) BuildDatasetStep() fyne.CanvasObject {
	s.sourceEntry = widget.NewEntry()
	s.sourceEntry.OnChanged = func(string) { s.updateFileCount() }
	s.outputEntry = widget.NewEntry()

	s.fileCountLabel = widget.NewLabel("")
	s.fileCountLabel.Wrapping = fyne.TextWrapWord

	s.modalityRadio = widget.NewRadioGroup([]string{anonymizer.SelectionCT, anonymizer.SelectionMRI}, func(choice string) {
		m, err := anonymizer.ParseSelection(choice)
		if err != nil {
			return
		}
		source, output, err := s.cfg.Dirs(string(m))
		if err != nil {
			return
		}
		s.sourceEntry.SetText(source)
		s.outputEntry.SetText(output)
	})
	s.modalityRadio.Horizontal = true
	s.modalityRadio.Required = true

	content := container.NewVBox(
		stepTitle("Choose Dataset"),
		widget.NewSeparator(),
		widget.NewLabelWithStyle("Which dataset do you want to de-identify?", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		s.modalityRadio,
		widget.NewSeparator(),
		widget.NewLabelWithStyle("Source Folder", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		s.folderRow(s.sourceEntry),
		s.fileCountLabel,
		widget.NewLabelWithStyle("Output Folder", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		s.folderRow(s.outputEntry),
	)

	return container.NewPadded(content)
}

// BuildPreviewStep creates the dry run content.
func (s *StepBuilder) BuildPreviewStep() fyne.CanvasObject {
	s.previewProgress = widget.NewProgressBar()
	s.previewStatus = widget.NewLabel("Scanning files...")

	s.previewFiles = widget.NewLabel("")
	s.previewFiles.TextStyle = fyne.TextStyle{Monospace: true}

	scroll := container.NewVScroll(s.previewFiles)
	scroll.SetMinSize(fyne.NewSize(0, 220))

	header := container.NewVBox(
		stepTitle("Preview (Dry Run)"),
		widget.NewSeparator(),
		s.previewProgress,
		s.previewStatus,
	)

	return container.NewBorder(
		container.NewPadded(header),
		nil, nil, nil,
		container.NewPadded(createCard("Planned outputs", scroll)),
	)
}

// BuildProcessStep creates the processing content.
func (s *StepBuilder) BuildProcessStep() fyne.CanvasObject {
	s.processProgress = widget.NewProgressBar()
	s.processStatus = widget.NewLabel("Ready to process")
	s.processFileCount = widget.NewLabel("")
	s.processCurrentFile = widget.NewLabel("")
	s.processCurrentFile.Wrapping = fyne.TextWrapWord

	s.processStats = widget.NewLabel("")
	s.processSummary = widget.NewLabel("")
	s.processSummary.Wrapping = fyne.TextWrapWord

	header := container.NewVBox(
		stepTitle("Processing"),
		widget.NewSeparator(),
		s.processProgress,
		s.processStatus,
		s.processFileCount,
		s.processCurrentFile,
		widget.NewSeparator(),
	)

	scroll := container.NewVScroll(container.NewVBox(s.processStats, s.processSummary))
	scroll.SetMinSize(fyne.NewSize(0, 150))

	return container.NewBorder(
		container.NewPadded(header),
		nil, nil, nil,
		container.NewPadded(scroll),
	)
}

func (s *StepBuilder) updateFileCount() {
	source := strings.TrimSpace(s.sourceEntry.Text)
	if source == "" {
		s.fileCountLabel.SetText("")
		return
	}

	s.fileCountLabel.SetText("Scanning...")
	ext := s.cfg.Extension

	go func() {
		files, err := dcm.FindDicomFiles(source, ext)
		// Fyne v2.4 handles thread safety for widget updates
		switch {
		case err != nil:
			s.fileCountLabel.SetText("Folder not found")
		case len(files) == 0:
			s.fileCountLabel.SetText(fmt.Sprintf("No %s files found", ext))
		default:
			s.fileCountLabel.SetText(fmt.Sprintf("Found %d %s file(s)", len(files), ext))
		}
	}()
}

// ValidateDatasetStep checks that a dataset and both folders are set.
func (s *StepBuilder) ValidateDatasetStep() bool {
	if _, err := anonymizer.ParseSelection(s.modalityRadio.Selected); err != nil {
		dialog.ShowError(fmt.Errorf("please choose CT or MRI"), s.window)
		return false
	}

	source := strings.TrimSpace(s.sourceEntry.Text)
	output := strings.TrimSpace(s.outputEntry.Text)
	if source == "" || output == "" {
		dialog.ShowError(fmt.Errorf("please enter both a source and an output folder"), s.window)
		return false
	}
	if filepath.Clean(source) == filepath.Clean(output) {
		dialog.ShowError(fmt.Errorf("the output folder must differ from the source folder"), s.window)
		return false
	}

	return true
}

// runConfig builds the batch configuration from the form values.
func (s *StepBuilder) runConfig(dryRun bool) anonymizer.Config {
	m, _ := anonymizer.ParseSelection(s.modalityRadio.Selected)
	return anonymizer.Config{
		SourceDir:     strings.TrimSpace(s.sourceEntry.Text),
		OutputDir:     strings.TrimSpace(s.outputEntry.Text),
		Modality:      m,
		Extension:     s.cfg.Extension,
		ReportDir:     s.cfg.Reports(),
		UIDRoot:       s.cfg.UIDRoot,
		DryRun:        dryRun,
		FailFast:      s.cfg.FailFast,
		VerifySources: s.cfg.VerifySources,
		Logger:        s.log,
	}
}

// RunDryRun classifies every candidate when entering the preview step.
func (s *StepBuilder) RunDryRun() {
	s.dryRunComplete = false
	s.previewProgress.SetValue(0)
	s.previewStatus.SetText("Scanning files...")
	s.previewFiles.SetText("")
	s.wizard.SetNextEnabled(false)

	cfg := s.runConfig(true)

	go func() {
		stats, err := anonymizer.ProcessFolderWithProgress(s.ctx, cfg, func(current, total int, _ string, _ anonymizer.Outcome) {
			s.previewProgress.SetValue(float64(current) / float64(total))
		})
		if err != nil {
			s.previewStatus.SetText(fmt.Sprintf("Error: %v", err))
			return
		}

		s.previewProgress.SetValue(1.0)
		s.previewFiles.SetText(previewText(stats, previewLimit))
		if stats.Success == 0 {
			s.previewStatus.SetText(fmt.Sprintf("Nothing to de-identify: %s", countsText(stats)))
			return
		}

		s.previewStatus.SetText(fmt.Sprintf("Scan complete: %s. Click \"De-identify\" to continue.", countsText(stats)))
		s.dryRunComplete = true
		s.wizard.SetNextEnabled(true)
	}()
}

// RunProcess executes the de-identification run.
func (s *StepBuilder) RunProcess() {
	s.processingMu.Lock()
	if s.processing {
		s.processingMu.Unlock()
		return
	}
	s.processing = true
	s.processingMu.Unlock()

	s.processProgress.SetValue(0)
	s.processStatus.SetText("Starting...")
	s.processFileCount.SetText("")
	s.processCurrentFile.SetText("")
	s.processStats.SetText("")
	s.processSummary.SetText("")
	s.wizard.SetBackEnabled(false)
	s.wizard.SetNextEnabled(false)

	cfg := s.runConfig(false)

	go func() {
		defer func() {
			s.processingMu.Lock()
			s.processing = false
			s.processingMu.Unlock()
		}()

		var success, failed, skipped int
		progressCallback := func(current, total int, filename string, outcome anonymizer.Outcome) {
			switch outcome {
			case anonymizer.OutcomeSuccess:
				success++
			case anonymizer.OutcomeFailed:
				failed++
			case anonymizer.OutcomeSkipped:
				skipped++
			}

			s.processProgress.SetValue(float64(current) / float64(total))
			s.processFileCount.SetText(fmt.Sprintf("Processing %d/%d files", current, total))
			s.processCurrentFile.SetText(fmt.Sprintf("Current: %s", filename))
			s.processStats.SetText(fmt.Sprintf("Success: %d | Skipped: %d | Failed: %d", success, skipped, failed))
		}

		stats, err := anonymizer.ProcessFolderWithProgress(s.ctx, cfg, progressCallback)
		switch {
		case stats == nil:
			s.processStatus.SetText("Error!")
			s.processSummary.SetText(fmt.Sprintf("Error: %v", err))
		case err != nil:
			s.processStatus.SetText("Stopped")
			s.processSummary.SetText(fmt.Sprintf("Error: %v\n\n%s", err, summaryText(stats, cfg)))
		default:
			s.processProgress.SetValue(1.0)
			s.processStatus.SetText("Complete!")
			s.processStats.SetText(countsText(stats))
			s.processSummary.SetText(summaryText(stats, cfg))
		}

		s.wizard.SetNextText("Done")
		s.wizard.SetNextEnabled(true)
	}()
}

// IsProcessing returns whether processing is in progress
func (s *StepBuilder) IsProcessing() bool {
	s.processingMu.Lock()
	defer s.processingMu.Unlock()
	return s.processing
}

func countsText(stats *anonymizer.Stats) string {
	return fmt.Sprintf("%d to write, %d skipped, %d unreadable or incomplete",
		stats.Success, stats.Skipped, stats.Failed)
}

// previewText lists each candidate with its planned output, skip reason or error.
func previewText(stats *anonymizer.Stats, limit int) string {
	var b strings.Builder
	for i, res := range stats.Results {
		if i == limit {
			fmt.Fprintf(&b, "... and %d more\n", len(stats.Results)-limit)
			break
		}
		name := filepath.Base(res.Source)
		switch res.Outcome {
		case anonymizer.OutcomeSuccess:
			fmt.Fprintf(&b, "%s -> %s\n", name, filepath.Base(res.Output))
		case anonymizer.OutcomeSkipped:
			fmt.Fprintf(&b, "%s skipped (%s)\n", name, res.Class)
		case anonymizer.OutcomeFailed:
			fmt.Fprintf(&b, "%s failed: %s\n", name, anonymizer.FailureKind(res.Err))
		}
	}
	return b.String()
}

func summaryText(stats *anonymizer.Stats, cfg anonymizer.Config) string {
	var b strings.Builder
	fmt.Fprintf(&b, "De-identified %d of %d file(s)\n", stats.Success, stats.Candidates)
	fmt.Fprintf(&b, "Study UID: %s\n", stats.Run.Study)
	if cfg.Modality == anonymizer.ModalityMR {
		fmt.Fprintf(&b, "Device UID: %s\n", stats.Run.Equipment)
	}
	fmt.Fprintf(&b, "\nOutput: %s", cfg.OutputDir)
	if cfg.ReportDir != "" {
		fmt.Fprintf(&b, "\nReports: %s", cfg.ReportDir)
	}
	if stats.Errors != "" {
		fmt.Fprintf(&b, "\n%s", stats.Errors)
	}
	return b.String()
}
