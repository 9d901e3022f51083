// Package smarthome is the client for the smart-home REST API: device,
// room, and group inventory plus state changes, with retry, circuit
// breaking, and caching layered on the shared HTTP client.
package smarthome

import "strings"

// Shade hardware types as reported by the upstream API.
var shadeDeviceTypes = map[string]bool{
	"Curtain":      true,
	"Curtain3":     true,
	"Blind Tilt":   true,
	"Roller Shade": true,
}

// Shade name keywords, including the Portuguese terms used in
// bilingual households.
var shadeNameKeywords = []string{"shade", "curtain", "blind", "persiana", "cortina"}

// Color is a hue/saturation color, with an optional brightness
// component when embedded in a state update.
type Color struct {
	Hue        int `json:"hue"`
	Saturation int `json:"saturation"`
	Brightness int `json:"brightness,omitempty"`
}

// State is a device state as reported by the API, or a partial state
// update to apply. Absent fields mean "unknown" on read and "leave
// unchanged" on write.
type State struct {
	On         *bool  `json:"on,omitempty"`
	Brightness *int   `json:"brightness,omitempty"`
	Color      *Color `json:"color,omitempty"`
	ColorTemp  *int   `json:"colorTemp,omitempty"`
}

// IsZero reports whether the state carries no changes at all.
func (s State) IsZero() bool {
	return s.On == nil && s.Brightness == nil && s.Color == nil && s.ColorTemp == nil
}

// RoomRef is the room a device belongs to, as embedded in a device.
type RoomRef struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// Device is a controllable device in the home.
type Device struct {
	ID           string         `json:"id"`
	ExternalID   string         `json:"externalId,omitempty"`
	Name         string         `json:"name"`
	Type         string         `json:"type,omitempty"`
	DeviceType   string         `json:"deviceType,omitempty"`
	Room         *RoomRef       `json:"room,omitempty"`
	State        State          `json:"state"`
	Reachable    *bool          `json:"reachable,omitempty"`
	Capabilities map[string]any `json:"capabilities,omitempty"`
}

// TargetID returns the identifier to address state updates to: the
// external ID when the device has one, the internal ID otherwise.
func (d Device) TargetID() string {
	if d.ExternalID != "" {
		return d.ExternalID
	}
	return d.ID
}

// IsReachable reports reachability, defaulting to true when the API
// omits the field.
func (d Device) IsReachable() bool {
	return d.Reachable == nil || *d.Reachable
}

// RoomName returns the device's room name, or "" when unassigned.
func (d Device) RoomName() string {
	if d.Room == nil {
		return ""
	}
	return d.Room.Name
}

// IsShade reports whether the device is a window covering, by hardware
// type or by name keyword.
func (d Device) IsShade() bool {
	if shadeDeviceTypes[d.DeviceType] || shadeDeviceTypes[d.Type] {
		return true
	}
	name := strings.ToLower(d.Name)
	for _, kw := range shadeNameKeywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}

// IsTiltingBlind reports whether the device is a venetian blind whose
// actuator tilts slats rather than raising a panel.
func (d Device) IsTiltingBlind() bool {
	return d.DeviceType == "Blind Tilt"
}

// Room groups devices by physical location.
type Room struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Devices []Device `json:"devices,omitempty"`
}

// Group is a user-defined collection of devices controlled together.
type Group struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Devices []Device `json:"devices,omitempty"`
}

// DeviceResult is the per-device outcome of a group state change.
type DeviceResult struct {
	Device  string `json:"device"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// GroupStateResult is the upstream response to a group state change.
type GroupStateResult struct {
	Results []DeviceResult `json:"results"`
}
