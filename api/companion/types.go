package companion

import "strconv"

// AddressType describes how a Bluetooth LE address was assigned.
// It is required alongside the address to identify a device to the adapter.
type AddressType string

// The different address types.
const (
	AddressPublic AddressType = "public"
	AddressRandom AddressType = "random"
)

// Valid reports whether the address type is known.
func (a AddressType) Valid() bool {
	return a == AddressPublic || a == AddressRandom
}

// Appearance describes the device category reported by the adapter.
type Appearance string

// The different appearance categories.
const (
	AppearanceMouse      Appearance = "Mouse"
	AppearanceKeyboard   Appearance = "Keyboard"
	AppearanceGenericHID Appearance = "Generic HID"
	AppearanceUnknown    Appearance = "Unknown"
)

// Category returns the appearance, mapping anything that is not
// a known category to AppearanceUnknown.
func (a Appearance) Category() Appearance {
	switch a {
	case AppearanceMouse, AppearanceKeyboard, AppearanceGenericHID:
		return a
	}

	return AppearanceUnknown
}

// Device holds the information about a peripheral known to the adapter.
type Device struct {
	Address     string      `json:"address"`
	AddressType AddressType `json:"addressType"`
	Name        string      `json:"name"`
	Appearance  Appearance  `json:"appearance"`
	IsConnected bool        `json:"isConnected"`
}

// DisplayName returns the name of the device, or a placeholder if it is empty.
func (d Device) DisplayName() string {
	if d.Name == "" {
		return "(No name)"
	}

	return d.Name
}

// ScanMode describes which devices the adapter reports while scanning.
type ScanMode int

// The different scan modes.
const (
	ScanNewDevicesOnly    ScanMode = 0
	ScanAllDevices        ScanMode = 1
	ScanPairedDevicesOnly ScanMode = 2
)

// Valid reports whether the scan mode is known.
func (s ScanMode) Valid() bool {
	return s >= ScanNewDevicesOnly && s <= ScanPairedDevicesOnly
}

// String returns the name of the scan mode.
func (s ScanMode) String() string {
	switch s {
	case ScanNewDevicesOnly:
		return "NewDevicesOnly"
	case ScanAllDevices:
		return "AllDevices"
	case ScanPairedDevicesOnly:
		return "PairedDevicesOnly"
	}

	return "ScanMode(" + strconv.Itoa(int(s)) + ")"
}

// DeleteResult is the reply of a bond deletion.
// A result with Deleted set to false is not an error; Message explains why.
type DeleteResult struct {
	Deleted bool   `json:"deleted"`
	Message string `json:"message"`
}

// BondedDevicesResponse is the reply of the bonded devices query.
type BondedDevicesResponse struct {
	BondedDevices []Device `json:"bondedDevices"`
}

// DeleteRequest is the body of a bond deletion.
type DeleteRequest struct {
	Address     string      `json:"address"`
	AddressType AddressType `json:"addressType"`
}

// ScanModeRequest is the body of a scan mode change.
type ScanModeRequest struct {
	ScanMode ScanMode `json:"scanMode"`
}

// LastConnectedResponse is the reply of the most recently bonded device query.
type LastConnectedResponse struct {
	Exists              bool    `json:"exists"`
	LastConnectedDevice *Device `json:"lastConnectedDevice,omitempty"`
}
