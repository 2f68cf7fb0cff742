package keybindings

import (
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"
)

func runeEvent(r rune) *tcell.EventKey {
	return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)
}

func TestKey_defaults(t *testing.T) {
	kb := NewKeybindings()

	cases := []struct {
		event    *tcell.EventKey
		contexts []Context
		want     Key
	}{
		{runeEvent('p'), nil, KeyDevicePair},
		{runeEvent('d'), []Context{ContextDevice}, KeyDeviceRemove},
		{runeEvent('Q'), nil, KeyQuit},
		{runeEvent('j'), nil, KeyNavigateDown},
		{runeEvent('x'), []Context{ContextPairing}, KeyPairingCancel},
		{runeEvent('x'), nil, ""},
		{tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone), nil, KeySelect},
	}

	for _, tc := range cases {
		if got := kb.Key(tc.event, tc.contexts...); got != tc.want {
			t.Fatalf("Key(%s, %v) = %q, want %q", tc.event.Name(), tc.contexts, got, tc.want)
		}
	}
}

func TestValidate_remaps(t *testing.T) {
	kb := NewKeybindings()

	if err := kb.Validate(map[string]string{"DevicePair": "n", "DeviceRefresh": "Alt+r"}); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if got := kb.Key(runeEvent('n')); got != KeyDevicePair {
		t.Fatalf("remapped key = %q, want DevicePair", got)
	}
	if got := kb.Key(runeEvent('p')); got != "" {
		t.Fatalf("old binding still resolves to %q", got)
	}

	refresh := kb.Data(KeyDeviceRefresh).Kb
	if refresh.Rune != 'r' || refresh.Mod != tcell.ModAlt {
		t.Fatalf("DeviceRefresh = %+v, want Alt+r", refresh)
	}
	if got := kb.Name(refresh); got != "Alt+r" {
		t.Fatalf("Name = %q, want Alt+r", got)
	}
}

func TestValidate_errors(t *testing.T) {
	cases := map[string]struct {
		bindings map[string]string
		want     string
	}{
		"unknown type": {map[string]string{"AdapterToggle": "t"}, "Invalid key type AdapterToggle"},
		"two keys":     {map[string]string{"DeviceInfo": "a+b"}, "More than one key"},
		"same context": {map[string]string{"DeviceRemove": "p"}, "will conflict"},
		"global":       {map[string]string{"DeviceInfo": "Q"}, "will conflict"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := NewKeybindings().Validate(tc.bindings)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Validate(%v) = %v, want error containing %q", tc.bindings, err, tc.want)
			}
		})
	}
}

func TestName(t *testing.T) {
	kb := NewKeybindings()

	if got := kb.Name(Keybinding{tcell.KeyRune, ' ', tcell.ModNone}); got != "Space" {
		t.Fatalf("Name(space) = %q", got)
	}
	if got := kb.Name(kb.Data(KeyPairingCancel).Kb); got != "x" {
		t.Fatalf("Name(PairingCancel) = %q", got)
	}
}

func TestIsNavigation(t *testing.T) {
	kb := NewKeybindings()

	ev, ok := kb.IsNavigation(KeyNavigateDown, runeEvent('j'))
	if !ok || ev.Key() != tcell.KeyDown {
		t.Fatalf("IsNavigation(j) = %v, %v", ev, ok)
	}

	if _, ok := kb.IsNavigation(KeyDevicePair, runeEvent('p')); ok {
		t.Fatal("DevicePair reported as navigation")
	}
}

func TestKey_shiftedRunes(t *testing.T) {
	kb := NewKeybindings()

	for _, mod := range []tcell.ModMask{tcell.ModNone, tcell.ModShift} {
		if got := kb.Key(tcell.NewEventKey(tcell.KeyRune, '?', mod)); got != KeyHelp {
			t.Fatalf("'?' with modifiers %v = %q, want Help", mod, got)
		}
		if got := kb.Key(tcell.NewEventKey(tcell.KeyRune, 'G', mod)); got != KeyNavigateBottom {
			t.Fatalf("'G' with modifiers %v = %q, want NavigateBottom", mod, got)
		}
	}
}

func TestParseBinding(t *testing.T) {
	names := make(map[string]tcell.Key)
	for key, name := range tcell.KeyNames {
		names[name] = key
	}

	cases := map[string]Keybinding{
		"Ctrl+x":   {tcell.KeyCtrlX, ' ', tcell.ModCtrl},
		"shift+a":  {tcell.KeyRune, 'A', tcell.ModNone},
		"Alt+Plus": {tcell.KeyRune, '+', tcell.ModAlt},
		"pgdn":     {tcell.KeyPgDn, ' ', tcell.ModNone},
		"Space":    {tcell.KeyRune, ' ', tcell.ModNone},
	}

	for binding, want := range cases {
		got, err := parseBinding(binding, names)
		if err != nil {
			t.Fatalf("parseBinding(%q): %v", binding, err)
		}
		if got != want {
			t.Fatalf("parseBinding(%q) = %+v, want %+v", binding, got, want)
		}
	}

	if _, err := parseBinding("Ctrl+Alt", names); err == nil || !strings.Contains(err.Error(), "No key specified") {
		t.Fatalf("modifiers only: err = %v", err)
	}
}

func TestValidate_conflictReportIsStable(t *testing.T) {
	bindings := map[string]string{"DeviceRemove": "p", "DeviceInfo": "r"}

	first := NewKeybindings().Validate(bindings)
	if first == nil {
		t.Fatal("expected a conflict")
	}

	for range 10 {
		if err := NewKeybindings().Validate(bindings); err == nil || err.Error() != first.Error() {
			t.Fatalf("conflict report changed: %v, then %v", first, err)
		}
	}

	want := "- DeviceInfo will override DeviceRefresh (r)\n- DevicePair will override DeviceRemove (p)"
	if !strings.HasSuffix(first.Error(), want) {
		t.Fatalf("conflicts = %q, want suffix %q", first.Error(), want)
	}
}
