package theme

import (
	"github.com/gdamore/tcell/v2"
)

// Colorize paints text in the color of element, in bold.
func Colorize(element Context, text string) string {
	return styled(element, "b", text)
}

// Emphasize paints text in the color of element, bold and underlined.
func Emphasize(element Context, text string) string {
	return styled(element, "bu", text)
}

// Badge renders title as a label on a background of the color of element.
// The label text is black or white, whichever is readable on that background.
func Badge(element Context, title string) string {
	fg := "white"
	if isLight(Color(element)) {
		fg = "black"
	}

	return "[" + fg + ":" + ThemeConfig[element] + ":b] " + title + " [-:-:-] "
}

// Selected returns the style of a selected table cell painted with element.
func Selected(element Context) tcell.Style {
	bg := tcell.ColorWhite
	if isLight(Color(element)) {
		bg = tcell.ColorBlack
	}

	return tcell.StyleDefault.Foreground(Color(element)).Background(bg)
}

// Color returns the color of element.
func Color(element Context) tcell.Color {
	name := ThemeConfig[element]
	if name == "black" {
		return tcell.Color16
	}

	return tcell.GetColor(name)
}

func styled(element Context, flags, text string) string {
	return "[" + ThemeConfig[element] + "::" + flags + "]" + text + "[-:-:-]"
}

// isLight reports whether c has a perceived brightness above the midpoint.
// The default color has no RGB value, and counts as dark.
func isLight(c tcell.Color) bool {
	r, g, b := c.RGB()

	return r*299+g*587+b*114 > 130*1000
}

// validColor reports whether name is a color the terminal understands.
func validColor(name string) bool {
	return name == "transparent" || tcell.GetColor(name) != tcell.ColorDefault
}
