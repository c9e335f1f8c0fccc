package gui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"
)

// WizardStep represents a step in the wizard
type WizardStep int

const (
	StepDataset WizardStep = iota
	StepPreview
	StepProcess
)

var stepTitles = []string{"Dataset", "Preview", "Process"}

// Wizard manages the step flow and navigation row.
type Wizard struct {
	window      fyne.Window
	currentStep WizardStep

	stepContents map[WizardStep]fyne.CanvasObject

	backButton *widget.Button
	nextButton *widget.Button

	stepIndicators []*canvas.Circle
	stepLabels     []*canvas.Text

	contentContainer *fyne.Container
	stepIndicator    fyne.CanvasObject

	// shown between the navigation buttons when set
	statusIndicator fyne.CanvasObject

	onStepChange func(WizardStep)
	canProceed   func(WizardStep) bool
}

// NewWizard creates a new wizard instance
func NewWizard(window fyne.Window) *Wizard {
	w := &Wizard{
		window:       window,
		currentStep:  StepDataset,
		stepContents: make(map[WizardStep]fyne.CanvasObject),
	}

	w.createNavButtons()
	w.createStepIndicator()

	return w
}

func (w *Wizard) createNavButtons() {
	w.backButton = widget.NewButton("Back", func() {
		w.Previous()
	})

	w.nextButton = widget.NewButton("Next", func() {
		w.Next()
	})
	w.nextButton.Importance = widget.HighImportance

	w.backButton.Disable()
}

func (w *Wizard) createStepIndicator() {
	w.stepIndicators = make([]*canvas.Circle, len(stepTitles))
	w.stepLabels = make([]*canvas.Text, len(stepTitles))

	var items []fyne.CanvasObject

	for i, title := range stepTitles {
		circle := canvas.NewCircle(ColorStepInactive)
		circle.StrokeColor = ColorBorder
		circle.StrokeWidth = 2
		w.stepIndicators[i] = circle

		label := canvas.NewText(title, ColorTextSecondary)
		label.TextSize = 12
		label.Alignment = fyne.TextAlignCenter
		w.stepLabels[i] = label

		circleContainer := container.New(&stepCircleLayout{}, circle)
		items = append(items, container.NewVBox(
			container.NewCenter(circleContainer),
			container.NewCenter(label),
		))

		if i < len(stepTitles)-1 {
			line := canvas.NewRectangle(ColorBorder)
			items = append(items, container.New(&stepLineLayout{}, line))
		}
	}

	w.stepIndicator = container.NewHBox(items...)
	w.updateStepIndicator()
}

// stepCircleLayout is a custom layout for step indicator circles
type stepCircleLayout struct{}

func (l *stepCircleLayout) MinSize(objects []fyne.CanvasObject) fyne.Size {
	return fyne.NewSize(24, 24)
}

func (l *stepCircleLayout) Layout(objects []fyne.CanvasObject, size fyne.Size) {
	for _, o := range objects {
		o.Resize(fyne.NewSize(24, 24))
		o.Move(fyne.NewPos(0, 0))
	}
}

// stepLineLayout is a custom layout for connecting lines
type stepLineLayout struct{}

func (l *stepLineLayout) MinSize(objects []fyne.CanvasObject) fyne.Size {
	return fyne.NewSize(60, 24)
}

func (l *stepLineLayout) Layout(objects []fyne.CanvasObject, size fyne.Size) {
	for _, o := range objects {
		o.Resize(fyne.NewSize(60, 2))
		o.Move(fyne.NewPos(0, 11))
	}
}

func (w *Wizard) updateStepIndicator() {
	for i := range stepTitles {
		step := WizardStep(i)
		switch {
		case step < w.currentStep:
			w.stepIndicators[i].FillColor = ColorStepComplete
			w.stepIndicators[i].StrokeColor = ColorStepComplete
			w.stepLabels[i].Color = ColorTextPrimary
		case step == w.currentStep:
			w.stepIndicators[i].FillColor = ColorPrimaryAccent
			w.stepIndicators[i].StrokeColor = ColorPrimaryAccent
			w.stepLabels[i].Color = ColorTextPrimary
		default:
			w.stepIndicators[i].FillColor = ColorStepInactive
			w.stepIndicators[i].StrokeColor = ColorBorder
			w.stepLabels[i].Color = ColorTextSecondary
		}
		w.stepIndicators[i].Refresh()
		w.stepLabels[i].Refresh()
	}
}

// SetStepContent sets the content for a specific step
func (w *Wizard) SetStepContent(step WizardStep, content fyne.CanvasObject) {
	w.stepContents[step] = content
}

// SetOnStepChange sets the callback for when the step changes
func (w *Wizard) SetOnStepChange(callback func(WizardStep)) {
	w.onStepChange = callback
}

// SetCanProceed sets the validation callback for step transitions
func (w *Wizard) SetCanProceed(callback func(WizardStep) bool) {
	w.canProceed = callback
}

// SetStatusIndicator sets an optional status indicator to display in the footer
func (w *Wizard) SetStatusIndicator(indicator fyne.CanvasObject) {
	w.statusIndicator = indicator
}

// Next moves to the next step
func (w *Wizard) Next() {
	if w.canProceed != nil && !w.canProceed(w.currentStep) {
		return
	}
	if w.currentStep < StepProcess {
		w.GoToStep(w.currentStep + 1)
	}
}

// Previous moves to the previous step
func (w *Wizard) Previous() {
	if w.currentStep > StepDataset {
		w.GoToStep(w.currentStep - 1)
	}
}

// GoToStep navigates to a specific step
func (w *Wizard) GoToStep(step WizardStep) {
	if step < StepDataset || step > StepProcess {
		return
	}

	w.currentStep = step
	w.updateStepIndicator()
	w.updateNavButtons()
	w.updateContent()

	if w.onStepChange != nil {
		w.onStepChange(step)
	}
}

// GetCurrentStep returns the current wizard step
func (w *Wizard) GetCurrentStep() WizardStep {
	return w.currentStep
}

func (w *Wizard) updateNavButtons() {
	if w.currentStep == StepDataset {
		w.backButton.Disable()
	} else {
		w.backButton.Enable()
	}

	switch w.currentStep {
	case StepProcess:
		w.nextButton.SetText("Done")
		w.nextButton.Disable() // enabled again when the run ends
	case StepPreview:
		w.nextButton.SetText("De-identify")
	default:
		w.nextButton.SetText("Next")
		w.nextButton.Enable()
	}
}

func (w *Wizard) updateContent() {
	if w.contentContainer == nil {
		return
	}

	w.contentContainer.Objects = nil
	if content, ok := w.stepContents[w.currentStep]; ok {
		w.contentContainer.Objects = []fyne.CanvasObject{content}
	}
	w.contentContainer.Refresh()
}

// SetNextEnabled enables or disables the next button
func (w *Wizard) SetNextEnabled(enabled bool) {
	if enabled {
		w.nextButton.Enable()
	} else {
		w.nextButton.Disable()
	}
}

// SetNextText sets the text of the next button
func (w *Wizard) SetNextText(text string) {
	w.nextButton.SetText(text)
}

// SetBackEnabled enables or disables the back button
func (w *Wizard) SetBackEnabled(enabled bool) {
	if enabled && w.currentStep > StepDataset {
		w.backButton.Enable()
	} else {
		w.backButton.Disable()
	}
}

// Build creates the complete wizard UI
func (w *Wizard) Build() fyne.CanvasObject {
	w.contentContainer = container.NewStack()
	if content, ok := w.stepContents[w.currentStep]; ok {
		w.contentContainer.Objects = []fyne.CanvasObject{content}
	}

	contentBg := canvas.NewRectangle(ColorCardBackground)
	contentBg.CornerRadius = 8

	contentCard := container.NewStack(
		contentBg,
		container.NewPadded(w.contentContainer),
	)

	var middle fyne.CanvasObject = layout.NewSpacer()
	if w.statusIndicator != nil {
		middle = container.NewCenter(w.statusIndicator)
	}
	bottomRow := container.NewBorder(nil, nil, w.backButton, w.nextButton, middle)

	separator := canvas.NewRectangle(ColorBorder)
	separator.SetMinSize(fyne.NewSize(0, 1))

	return container.NewBorder(
		container.NewVBox(
			container.NewPadded(container.NewCenter(w.stepIndicator)),
			separator,
		),
		container.NewPadded(bottomRow),
		nil, nil,
		container.NewPadded(contentCard),
	)
}

// createCard creates a styled card container
func createCard(title string, content fyne.CanvasObject) fyne.CanvasObject {
	bg := canvas.NewRectangle(ColorCardBackground)
	bg.CornerRadius = 8

	var header fyne.CanvasObject
	if title != "" {
		titleLabel := canvas.NewText(title, ColorTextPrimary)
		titleLabel.TextSize = 16
		titleLabel.TextStyle = fyne.TextStyle{Bold: true}
		header = container.NewVBox(
			titleLabel,
			canvas.NewRectangle(color.Transparent),
		)
	}

	return container.NewStack(
		bg,
		container.NewPadded(
			container.NewBorder(header, nil, nil, nil, content),
		),
	)
}
