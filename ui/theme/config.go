package theme

import (
	"fmt"
	"slices"
	"strings"
)

// Context describes the type of context to apply the color into.
type Context string

// The different context types for themes.
const (
	ThemeText                    Context = "Text"
	ThemeBorder                  Context = "Border"
	ThemeBackground              Context = "Background"
	ThemeStatusInfo              Context = "StatusInfo"
	ThemeStatusError             Context = "StatusError"
	ThemeHeader                  Context = "Header"
	ThemeHeaderScanning          Context = "HeaderScanning"
	ThemeDevice                  Context = "Device"
	ThemeDeviceName              Context = "DeviceName"
	ThemeDeviceAppearance        Context = "DeviceAppearance"
	ThemeDeviceConnected         Context = "DeviceConnected"
	ThemeDeviceProperty          Context = "DeviceProperty"
	ThemeDevicePropertyConnected Context = "DevicePropertyConnected"
	ThemeProgressBar             Context = "ProgressBar"
	ThemeProgressText            Context = "ProgressText"
	ThemePairingFound            Context = "PairingFound"
	ThemePairingTimedOut         Context = "PairingTimedOut"
)

// ThemeConfig stores a list of color for the modifier elements.
var ThemeConfig = map[Context]string{
	ThemeText:        "white",
	ThemeBorder:      "white",
	ThemeBackground:  "default",
	ThemeStatusInfo:  "white",
	ThemeStatusError: "red",

	ThemeHeader:         "white",
	ThemeHeaderScanning: "yellow",

	ThemeDevice:                  "white",
	ThemeDeviceName:              "white",
	ThemeDeviceAppearance:        "white",
	ThemeDeviceConnected:         "white",
	ThemeDeviceProperty:          "grey",
	ThemeDevicePropertyConnected: "green",

	ThemeProgressBar:     "white",
	ThemeProgressText:    "white",
	ThemePairingFound:    "green",
	ThemePairingTimedOut: "orange",
}

// ParseThemeConfig parses the theme configuration.
func ParseThemeConfig(themeConfig map[string]string) error {
	for context, color := range themeConfig {
		if _, ok := ThemeConfig[Context(context)]; !ok {
			return fmt.Errorf("unknown theme element %s, valid elements are %s", context, strings.Join(contexts(), ", "))
		}

		if !validColor(color) {
			return fmt.Errorf("theme configuration is incorrect for %s (%s)", context, color)
		}

		switch color {
		case "black":
			color = "#000000"

		case "transparent":
			color = "default"
		}

		ThemeConfig[Context(context)] = color
	}

	return nil
}

// contexts returns the sorted names of all theme elements.
func contexts() []string {
	names := make([]string, 0, len(ThemeConfig))
	for context := range ThemeConfig {
		names = append(names, string(context))
	}
	slices.Sort(names)

	return names
}
