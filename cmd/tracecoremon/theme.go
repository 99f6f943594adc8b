package main

import (
	"github.com/gdamore/tcell"
	"github.com/rivo/tview"
)

// Theme is a small named color palette, mirroring the teacher's
// ui.Theme/LightTheme/DarkTheme convention (main.go's "-theme" flag picks
// one of these by name and calls Apply).
type Theme struct {
	BackgroundColor    tcell.Color
	TextColor          tcell.Color
	HighlightTextColor tcell.Color
	BorderColor        tcell.Color
}

// Apply installs the theme into tview's global style defaults, the same
// way the teacher's ui.Theme.Apply does.
func (t Theme) Apply() {
	tview.Styles.PrimitiveBackgroundColor = t.BackgroundColor
	tview.Styles.ContrastBackgroundColor = t.BackgroundColor
	tview.Styles.PrimaryTextColor = t.TextColor
	tview.Styles.SecondaryTextColor = t.HighlightTextColor
	tview.Styles.BorderColor = t.BorderColor
	tview.Styles.TitleColor = t.HighlightTextColor
}

var lightTheme = Theme{
	BackgroundColor:    tcell.ColorWhite,
	TextColor:          tcell.ColorBlack,
	HighlightTextColor: tcell.ColorDarkBlue,
	BorderColor:        tcell.ColorGray,
}

var darkTheme = Theme{
	BackgroundColor:    tcell.ColorBlack,
	TextColor:          tcell.ColorWhite,
	HighlightTextColor: tcell.ColorYellow,
	BorderColor:        tcell.ColorGray,
}

var themes = map[string]Theme{
	"light": lightTheme,
	"dark":  darkTheme,
}
