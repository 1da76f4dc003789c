package app

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"

	"pocket-curator/pkg/colorutil"
)

// CuratorTheme provides a custom theme for the application.
type CuratorTheme struct{}

var _ fyne.Theme = (*CuratorTheme)(nil)

func (t *CuratorTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNamePrimary, theme.ColorNameFocus:
		return colorutil.Gold
	case theme.ColorNameSelection:
		return colorutil.WithAlpha(colorutil.Gold, 0x80)
	case theme.ColorNameError:
		return colorutil.Danger
	case theme.ColorNameBackground:
		if variant == theme.VariantDark {
			return colorutil.Ink
		}
		return theme.DefaultTheme().Color(name, variant)
	default:
		return theme.DefaultTheme().Color(name, variant)
	}
}

func (t *CuratorTheme) Font(style fyne.TextStyle) fyne.Resource {
	return theme.DefaultTheme().Font(style)
}

func (t *CuratorTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}

func (t *CuratorTheme) Size(name fyne.ThemeSizeName) float32 {
	switch name {
	case theme.SizeNameInputRadius, theme.SizeNameSelectionRadius:
		return 8
	default:
		return theme.DefaultTheme().Size(name)
	}
}
