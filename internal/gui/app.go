// Package gui is the desktop front-end: choose CT or MRI, preview, de-identify.
package gui

import (
	"context"
	"log/slog"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"dicom-deidentifier/internal/config"
)

const (
	AppTitle  = "DICOM De-identifier"
	AppWidth  = 650
	AppHeight = 560
)

// App represents the GUI application
type App struct {
	fyneApp    fyne.App
	mainWindow fyne.Window
	wizard     *Wizard
	steps      *StepBuilder
	cfg        *config.Config
	log        *slog.Logger
}

// NewApp creates a new GUI application
func NewApp(cfg *config.Config, log *slog.Logger) *App {
	a := app.New()
	a.Settings().SetTheme(&ReadingRoomTheme{})

	return &App{
		fyneApp: a,
		cfg:     cfg,
		log:     log,
	}
}

// Run starts the GUI application and blocks until the window closes.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.mainWindow = a.fyneApp.NewWindow(AppTitle)
	a.mainWindow.Resize(fyne.NewSize(AppWidth, AppHeight))
	a.mainWindow.CenterOnScreen()

	a.wizard = NewWizard(a.mainWindow)
	a.wizard.SetStatusIndicator(a.createVerifyIndicator())

	a.steps = NewStepBuilder(ctx, a.mainWindow, a.wizard, a.cfg, a.log)
	a.wizard.SetStepContent(StepDataset, a.steps.BuildDatasetStep())
	a.wizard.SetStepContent(StepPreview, a.steps.BuildPreviewStep())
	a.wizard.SetStepContent(StepProcess, a.steps.BuildProcessStep())

	a.wizard.SetCanProceed(func(step WizardStep) bool {
		switch step {
		case StepDataset:
			return a.steps.ValidateDatasetStep()
		case StepPreview:
			return a.steps.dryRunComplete
		case StepProcess:
			// "Done" closes the app
			if !a.steps.IsProcessing() {
				a.mainWindow.Close()
			}
			return false
		}
		return true
	})

	a.wizard.SetOnStepChange(func(step WizardStep) {
		switch step {
		case StepPreview:
			a.steps.RunDryRun()
		case StepProcess:
			a.steps.RunProcess()
		}
	})

	a.mainWindow.SetContent(a.wizard.Build())

	a.mainWindow.SetCloseIntercept(func() {
		if !a.steps.IsProcessing() {
			a.mainWindow.Close()
			return
		}
		dialog.ShowConfirm("Confirm Exit",
			"De-identification is in progress. The current file will finish, the rest will not be processed. Exit?",
			func(confirm bool) {
				if confirm {
					cancel()
					a.mainWindow.Close()
				}
			}, a.mainWindow)
	})

	a.mainWindow.ShowAndRun()
}

// createVerifyIndicator shows whether sources are fingerprinted before and after each file.
func (a *App) createVerifyIndicator() fyne.CanvasObject {
	circle := canvas.NewCircle(ColorStatusRed)
	label := widget.NewLabel("Source check: off")
	if a.cfg.VerifySources {
		circle.FillColor = ColorStatusGreen
		label.SetText("Source check: on")
	}
	return container.New(&statusLayout{}, circle, label)
}

// statusLayout vertically centers a small circle in front of a label.
type statusLayout struct{}

func (l *statusLayout) MinSize(objects []fyne.CanvasObject) fyne.Size {
	if len(objects) < 2 {
		return fyne.NewSize(0, 0)
	}
	circleSize := float32(10)
	labelSize := objects[1].MinSize()
	return fyne.NewSize(circleSize+8+labelSize.Width, labelSize.Height)
}

func (l *statusLayout) Layout(objects []fyne.CanvasObject, size fyne.Size) {
	if len(objects) < 2 {
		return
	}
	circle := objects[0]
	label := objects[1]

	circleSize := float32(10)
	labelSize := label.MinSize()

	circle.Resize(fyne.NewSize(circleSize, circleSize))
	circle.Move(fyne.NewPos(4, (size.Height-circleSize)/2))

	label.Resize(labelSize)
	label.Move(fyne.NewPos(circleSize+12, (size.Height-labelSize.Height)/2))
}
