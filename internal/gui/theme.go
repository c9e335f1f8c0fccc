package gui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// Reading room palette: dim neutral greys with a teal accent, so the window
// can sit next to a diagnostic viewer without glare.
var (
	ColorBackground     = color.NRGBA{R: 0x12, G: 0x16, B: 0x1A, A: 0xFF}
	ColorCardBackground = color.NRGBA{R: 0x1B, G: 0x21, B: 0x27, A: 0xFF}
	ColorInput          = color.NRGBA{R: 0x24, G: 0x2C, B: 0x33, A: 0xFF}
	ColorBorder         = color.NRGBA{R: 0x37, G: 0x42, B: 0x4C, A: 0xFF}
	ColorPrimaryAccent  = color.NRGBA{R: 0x2B, G: 0xB5, B: 0xA6, A: 0xFF}
	ColorAccentHover    = color.NRGBA{R: 0x22, G: 0x94, B: 0x88, A: 0xFF}
	ColorTextPrimary    = color.NRGBA{R: 0xE3, G: 0xE8, B: 0xEC, A: 0xFF}
	ColorTextSecondary  = color.NRGBA{R: 0x93, G: 0xA0, B: 0xAB, A: 0xFF}
	ColorDisabled       = color.NRGBA{R: 0x4D, G: 0x58, B: 0x61, A: 0xFF}

	// Outcome colors match the Success / Skipped / Failed counters.
	ColorSuccess = color.NRGBA{R: 0x5C, G: 0xC2, B: 0x7A, A: 0xFF}
	ColorWarning = color.NRGBA{R: 0xE0, G: 0xB0, B: 0x4C, A: 0xFF}
	ColorError   = color.NRGBA{R: 0xE5, G: 0x5F, B: 0x5F, A: 0xFF}

	ColorStepInactive = ColorBorder
	ColorStepComplete = ColorSuccess
	ColorStatusGreen  = ColorSuccess
	ColorStatusRed    = ColorError
)

var readingRoomColors = map[fyne.ThemeColorName]color.Color{
	theme.ColorNameBackground:        ColorBackground,
	theme.ColorNameButton:            ColorPrimaryAccent,
	theme.ColorNameDisabledButton:    ColorDisabled,
	theme.ColorNameDisabled:          ColorDisabled,
	theme.ColorNameError:             ColorError,
	theme.ColorNameFocus:             ColorPrimaryAccent,
	theme.ColorNameForeground:        ColorTextPrimary,
	theme.ColorNameHeaderBackground:  ColorCardBackground,
	theme.ColorNameHover:             ColorAccentHover,
	theme.ColorNameHyperlink:         ColorPrimaryAccent,
	theme.ColorNameInputBackground:   ColorInput,
	theme.ColorNameInputBorder:       ColorBorder,
	theme.ColorNameMenuBackground:    ColorCardBackground,
	theme.ColorNameOverlayBackground: ColorCardBackground,
	theme.ColorNamePlaceHolder:       ColorTextSecondary,
	theme.ColorNamePressed:           ColorAccentHover,
	theme.ColorNamePrimary:           ColorPrimaryAccent,
	theme.ColorNameScrollBar:         ColorBorder,
	theme.ColorNameSelection:         color.NRGBA{R: 0x2B, G: 0xB5, B: 0xA6, A: 0x55},
	theme.ColorNameSeparator:         ColorBorder,
	theme.ColorNameShadow:            color.NRGBA{A: 0x80},
	theme.ColorNameSuccess:           ColorSuccess,
	theme.ColorNameWarning:           ColorWarning,
}

// File lists and UIDs are long; the wizard uses slightly tighter text than fyne's defaults.
var readingRoomSizes = map[fyne.ThemeSizeName]float32{
	theme.SizeNamePadding:            6,
	theme.SizeNameInnerPadding:       10,
	theme.SizeNameInlineIcon:         18,
	theme.SizeNameScrollBar:          10,
	theme.SizeNameScrollBarSmall:     3,
	theme.SizeNameSeparatorThickness: 1,
	theme.SizeNameText:               13,
	theme.SizeNameHeadingText:        20,
	theme.SizeNameSubHeadingText:     15,
	theme.SizeNameCaptionText:        11,
	theme.SizeNameInputBorder:        1,
	theme.SizeNameInputRadius:        4,
	theme.SizeNameSelectionRadius:    3,
}

// ReadingRoomTheme is the dark theme of the desktop window. The palette is
// fixed, so the variant requested by the system is ignored.
type ReadingRoomTheme struct{}

var _ fyne.Theme = (*ReadingRoomTheme)(nil)

func (ReadingRoomTheme) Color(name fyne.ThemeColorName, _ fyne.ThemeVariant) color.Color {
	if c, ok := readingRoomColors[name]; ok {
		return c
	}
	return theme.DefaultTheme().Color(name, theme.VariantDark)
}

func (ReadingRoomTheme) Font(style fyne.TextStyle) fyne.Resource {
	if style.Monospace {
		return theme.DefaultTextMonospaceFont()
	}
	return theme.DefaultTheme().Font(style)
}

func (ReadingRoomTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}

func (ReadingRoomTheme) Size(name fyne.ThemeSizeName) float32 {
	if s, ok := readingRoomSizes[name]; ok {
		return s
	}
	return theme.DefaultTheme().Size(name)
}
