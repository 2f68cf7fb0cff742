package keybindings

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Key describes the application keybinding type.
type Key string

// The different application keybinding types.
const (
	KeySelect         Key = "Select"
	KeyCancel         Key = "Cancel"
	KeySuspend        Key = "Suspend"
	KeyQuit           Key = "Quit"
	KeyClose          Key = "Close"
	KeyHelp           Key = "Help"
	KeyDevicePair     Key = "DevicePair"
	KeyDeviceRemove   Key = "DeviceRemove"
	KeyDeviceInfo     Key = "DeviceInfo"
	KeyDeviceRefresh  Key = "DeviceRefresh"
	KeyDeviceLast     Key = "DeviceLastConnected"
	KeyPairingCancel  Key = "PairingCancel"
	KeyNavigateUp     Key = "NavigateUp"
	KeyNavigateDown   Key = "NavigateDown"
	KeyNavigateTop    Key = "NavigateTop"
	KeyNavigateBottom Key = "NavigateBottom"
)

// Context describes the context where the keybinding is
// supposed to be applied in.
type Context string

// The different context types for keybindings.
const (
	ContextApp     Context = "App"
	ContextDevice  Context = "Device"
	ContextPairing Context = "Pairing"
)

// KeyData stores the metadata for the key.
type KeyData struct {
	Title   string
	Context Context
	Kb      Keybinding
	Global  bool
}

// Keybinding stores the keybinding. Rune is a space for non-rune keys,
// and Shift is folded into Rune for rune keys.
type Keybinding struct {
	Key  tcell.Key
	Rune rune
	Mod  tcell.ModMask
}

// Keybindings contains an entire list of keybindings and its associated contexts and other data.
type Keybindings struct {
	keyData map[Key]*KeyData
	byKey   map[Context]map[Keybinding]Key
}

// fallbackContexts are searched after the contexts passed to [Keybindings.Key].
var fallbackContexts = []Context{ContextApp, ContextDevice}

// navigation maps the navigation keys to the arrow keys they emulate.
var navigation = map[Key]Keybinding{
	KeyNavigateUp:     special(tcell.KeyUp, tcell.ModNone),
	KeyNavigateDown:   special(tcell.KeyDown, tcell.ModNone),
	KeyNavigateTop:    special(tcell.KeyHome, tcell.ModNone),
	KeyNavigateBottom: special(tcell.KeyEnd, tcell.ModNone),
}

// keyAliases maps alternate spellings to the key names known to tcell.
var keyAliases = map[string]string{
	"Pgup":      "PgUp",
	"Pgdn":      "PgDn",
	"Pageup":    "PgUp",
	"Pagedown":  "PgDn",
	"Upright":   "UpRight",
	"Downright": "DownRight",
	"Upleft":    "UpLeft",
	"Downleft":  "DownLeft",
	"Prtsc":     "Print",
	"Backspace": "Backspace2",
}

// NewKeybindings returns the default keybindings.
func NewKeybindings() *Keybindings {
	k := &Keybindings{keyData: defaults()}
	k.index()

	return k
}

// Data returns the metadata of key.
func (k *Keybindings) Data(key Key) *KeyData {
	return k.keyData[key]
}

// Key returns the key bound to event. The given contexts are searched
// first, then the application and device contexts.
func (k *Keybindings) Key(event *tcell.EventKey, keyContexts ...Context) Key {
	kb := fromEvent(event)

	for _, c := range slices.Concat(keyContexts, fallbackContexts) {
		if key, ok := k.byKey[c][kb]; ok {
			return key
		}
	}

	return ""
}

// Name returns the display name of kb.
func (k *Keybindings) Name(kb Keybinding) string {
	if kb.Key != tcell.KeyRune {
		return tcell.NewEventKey(kb.Key, kb.Rune, kb.Mod).Name()
	}

	name := string(kb.Rune)
	if kb.Rune == ' ' {
		name = "Space"
	}
	if kb.Mod&tcell.ModAlt != 0 {
		name = "Alt+" + name
	}

	return name
}

// IsNavigation returns the arrow key event emulated by pressed, if pressed
// is a navigation key and event is not already that arrow key.
func (k *Keybindings) IsNavigation(pressed Key, event *tcell.EventKey) (*tcell.EventKey, bool) {
	target, ok := navigation[pressed]
	if !ok || target == fromEvent(event) {
		return nil, false
	}

	return tcell.NewEventKey(target.Key, target.Rune, target.Mod), true
}

// Validate applies the keybindings in kbMap, which maps a key type to a
// binding such as "Ctrl+x" or "Alt+r". It fails if a binding cannot be
// parsed, or if two keys would share a binding in the same context or
// where either key is global.
func (k *Keybindings) Validate(kbMap map[string]string) error {
	if len(kbMap) == 0 {
		return nil
	}

	names := make(map[string]tcell.Key, len(tcell.KeyNames))
	for key, name := range tcell.KeyNames {
		names[name] = key
	}

	for _, keyType := range slices.Sorted(maps.Keys(kbMap)) {
		data, ok := k.keyData[Key(keyType)]
		if !ok {
			return fmt.Errorf("config: Invalid key type %s", keyType)
		}

		kb, err := parseBinding(kbMap[keyType], names)
		if err != nil {
			return fmt.Errorf("config: %w for %s (%s)", err, keyType, kbMap[keyType])
		}

		data.Kb = kb
	}

	k.index()

	return k.conflicts()
}

// index rebuilds the lookup of keys by context and binding.
func (k *Keybindings) index() {
	k.byKey = make(map[Context]map[Keybinding]Key)

	for key, data := range k.keyData {
		if k.byKey[data.Context] == nil {
			k.byKey[data.Context] = make(map[Keybinding]Key)
		}

		k.byKey[data.Context][data.Kb] = key
	}
}

// conflicts reports the keys which share a binding in overlapping contexts.
func (k *Keybindings) conflicts() error {
	keys := slices.Sorted(maps.Keys(k.keyData))
	reported := make(map[Keybinding]bool)

	var lines []string

	for i, key := range keys {
		data := k.keyData[key]
		if reported[data.Kb] {
			continue
		}

		for _, other := range keys[i+1:] {
			o := k.keyData[other]
			if o.Kb != data.Kb || (o.Context != data.Context && !o.Global && !data.Global) {
				continue
			}

			reported[data.Kb] = true
			lines = append(lines, fmt.Sprintf("- %s will override %s (%s)", key, other, k.Name(data.Kb)))

			break
		}
	}

	if lines == nil {
		return nil
	}

	return errors.New("Config: The following keybindings will conflict:\n" + strings.Join(lines, "\n"))
}

// parseBinding parses a binding made of modifiers and exactly one key,
// separated by '+' or spaces. names maps the tcell key names to keys.
func parseBinding(binding string, names map[string]tcell.Key) (Keybinding, error) {
	kb := Keybinding{Key: tcell.KeyRune, Rune: ' '}

	var found []string

	tokens := strings.FieldsFunc(binding, func(c rune) bool {
		return unicode.IsSpace(c) || c == '+'
	})

	for _, token := range tokens {
		if runewidth.StringWidth(token) == 1 {
			kb.Rune, _ = utf8.DecodeRuneInString(token)
			found = append(found, token)

			continue
		}

		token = cases.Title(language.Und, cases.NoLower).String(token)
		if alias, ok := keyAliases[token]; ok {
			token = alias
		}

		switch token {
		case "Ctrl":
			kb.Mod |= tcell.ModCtrl

		case "Alt":
			kb.Mod |= tcell.ModAlt

		case "Shift":
			kb.Mod |= tcell.ModShift

		case "Space":
			kb.Rune = ' '
			found = append(found, token)

		case "Plus":
			kb.Rune = '+'
			found = append(found, token)

		default:
			if key, ok := names[token]; ok {
				kb.Key, kb.Rune = key, ' '
				found = append(found, token)
			}
		}
	}

	switch {
	case len(found) == 0:
		return kb, errors.New("No key specified or invalid keybinding")

	case len(found) > 1:
		return kb, errors.New("More than one key entered")
	}

	if kb.Key == tcell.KeyRune && kb.Mod&tcell.ModShift != 0 {
		kb.Rune = unicode.ToUpper(kb.Rune)
		kb.Mod &^= tcell.ModShift
	}

	// tcell reports Ctrl with a letter or space as a control key.
	if kb.Key == tcell.KeyRune && kb.Mod&tcell.ModCtrl != 0 {
		name := "Ctrl-" + string(unicode.ToUpper(kb.Rune))
		if kb.Rune == ' ' {
			name = "Ctrl-Space"
		}

		if key, ok := names[name]; ok {
			kb.Key, kb.Rune = key, ' '
		}
	}

	return kb, nil
}

// fromEvent returns the binding of a key event.
func fromEvent(event *tcell.EventKey) Keybinding {
	if event.Key() != tcell.KeyRune {
		return special(event.Key(), event.Modifiers())
	}

	return Keybinding{tcell.KeyRune, event.Rune(), event.Modifiers() &^ tcell.ModShift}
}

func special(key tcell.Key, mod tcell.ModMask) Keybinding {
	return Keybinding{key, ' ', mod}
}

func char(r rune) Keybinding {
	return Keybinding{tcell.KeyRune, r, tcell.ModNone}
}

// defaults returns the default keybindings.
func defaults() map[Key]*KeyData {
	app := func(title string, kb Keybinding, global bool) *KeyData {
		return &KeyData{Title: title, Context: ContextApp, Kb: kb, Global: global}
	}
	in := func(c Context, title string, r rune) *KeyData {
		return &KeyData{Title: title, Context: c, Kb: char(r)}
	}

	return map[Key]*KeyData{
		KeyClose:   app("Close", special(tcell.KeyEscape, tcell.ModNone), true),
		KeyQuit:    app("Quit", char('Q'), true),
		KeySelect:  app("Select", special(tcell.KeyEnter, tcell.ModNone), true),
		KeyCancel:  app("Cancel", special(tcell.KeyCtrlX, tcell.ModCtrl), true),
		KeySuspend: app("Suspend", special(tcell.KeyCtrlZ, tcell.ModCtrl), true),
		KeyHelp:    app("Help", char('?'), true),

		KeyNavigateUp:     app("Navigate Up", char('k'), false),
		KeyNavigateDown:   app("Navigate Down", char('j'), false),
		KeyNavigateTop:    app("Navigate Top", char('g'), false),
		KeyNavigateBottom: app("Navigate Bottom", char('G'), false),

		KeyDevicePair:    in(ContextDevice, "Pair New", 'p'),
		KeyDeviceRemove:  in(ContextDevice, "Remove", 'd'),
		KeyDeviceInfo:    in(ContextDevice, "Info", 'i'),
		KeyDeviceRefresh: in(ContextDevice, "Refresh", 'r'),
		KeyDeviceLast:    in(ContextDevice, "Last Connected", 'l'),

		KeyPairingCancel: in(ContextPairing, "Stop Scanning", 'x'),
	}
}
