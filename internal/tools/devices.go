package tools

import (
	"context"
	"strings"

	"github.com/hearthd/hearth/internal/resolve"
	"github.com/hearthd/hearth/internal/smarthome"
)

// Words that suggest the user meant a room, not a single device.
var roomIndicators = []string{
	"lights", "light", "room", "kitchen", "living",
	"bedroom", "bathroom", "office", "dining",
}

func (r *Registry) registerDeviceTools() {
	r.Register(&Tool{
		Name:        "get_all_devices",
		Description: "Get a list of all available smart home devices with their current state. Use this to discover what devices exist and their names.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
			"required":   []string{},
		},
		handler: r.handleGetAllDevices,
	})

	r.Register(&Tool{
		Name:        "get_device_status",
		Description: "Get the current status of a specific device by name or ID.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"device_name": map[string]any{
					"type":        "string",
					"description": "The name or ID of the device to query",
				},
			},
			"required": []string{"device_name"},
		},
		handler: r.handleGetDeviceStatus,
	})

	r.Register(&Tool{
		Name:        "control_device",
		Description: "Control a SINGLE specific device by its exact name. Only use this when the user mentions a specific device name like 'Kitchen Bulb 1' or 'Desk Lamp'. Do NOT use this for room-based commands like 'kitchen lights' - use control_room instead.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"device_name": map[string]any{
					"type":        "string",
					"description": "The EXACT name of a specific device (e.g., 'Kitchen Bulb 1', 'Desk Lamp'). NOT for room names or 'kitchen lights'.",
				},
				"on": map[string]any{
					"type":        "boolean",
					"description": "Turn device on (true) or off (false)",
				},
				"brightness": map[string]any{
					"type":        "integer",
					"minimum":     0,
					"maximum":     100,
					"description": "Brightness level from 0-100. Setting brightness > 0 also turns the device on.",
				},
				"color": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"hue": map[string]any{
							"type":        "integer",
							"minimum":     0,
							"maximum":     360,
							"description": "Color hue (0-360). 0=red, 60=yellow, 120=green, 180=cyan, 240=blue, 300=magenta",
						},
						"saturation": map[string]any{
							"type":        "integer",
							"minimum":     0,
							"maximum":     100,
							"description": "Color saturation (0-100). 0=white, 100=full color",
						},
					},
					"description": "Set color using hue and saturation",
				},
				"color_temp": map[string]any{
					"type":        "integer",
					"minimum":     2000,
					"maximum":     6500,
					"description": "Color temperature in Kelvin. 2000-3000=warm/cozy, 4000=neutral, 5000-6500=cool/daylight",
				},
			},
			"required": []string{"device_name"},
		},
		handler: r.handleControlDevice,
	})

	r.Register(&Tool{
		Name:        "control_shade",
		Description: "Control smart shades, curtains, or blinds. Use this for any window covering control like opening, closing, or setting a specific position. For Blind Tilt devices (venetian blinds with tilting slats), 'open' sets horizontal slats to let light through, and 'close' tilts slats downward to block light.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"device_name": map[string]any{
					"type":        "string",
					"description": "The name of the shade, curtain, or blind to control.",
				},
				"action": map[string]any{
					"type":        "string",
					"enum":        []string{ActionOpen, ActionClose, ActionStop, ActionPosition},
					"description": "Action to perform: 'open' fully opens (horizontal slats for blinds), 'close' fully closes (tilts down for blinds), 'stop' pauses movement, 'position' sets specific openness level.",
				},
				"position": map[string]any{
					"type":        "integer",
					"minimum":     0,
					"maximum":     100,
					"description": "Openness percentage (0-100). 0 = fully closed, 100 = fully open. Only used with action='position'.",
				},
			},
			"required": []string{"device_name", "action"},
		},
		handler: r.handleControlShade,
	})
}

// DeviceSummary is the compact per-device view in listings.
type DeviceSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type,omitempty"`
	Room       string `json:"room,omitempty"`
	On         *bool  `json:"on"`
	Brightness *int   `json:"brightness"`
	Reachable  bool   `json:"reachable"`
}

// DeviceListResult is the outcome of get_all_devices.
type DeviceListResult struct {
	Success bool            `json:"success"`
	Devices []DeviceSummary `json:"devices"`
	Count   int             `json:"count"`
}

func (r DeviceListResult) Ok() bool { return r.Success }

// DeviceStatusResult is the outcome of get_device_status.
type DeviceStatusResult struct {
	Success bool         `json:"success"`
	Device  DeviceDetail `json:"device"`
}

func (r DeviceStatusResult) Ok() bool { return r.Success }

// DeviceDetail is the full view of one device.
type DeviceDetail struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Type         string          `json:"type,omitempty"`
	Room         string          `json:"room,omitempty"`
	State        smarthome.State `json:"state"`
	Reachable    bool            `json:"reachable"`
	Capabilities map[string]any  `json:"capabilities,omitempty"`
}

// DeviceNotFoundResult reports a failed device lookup along with the
// inventory, so the model can self-correct.
type DeviceNotFoundResult struct {
	Success          bool     `json:"success"`
	Error            string   `json:"error"`
	AvailableDevices []string `json:"available_devices"`
	Suggestion       string   `json:"suggestion,omitempty"`
}

func (r DeviceNotFoundResult) Ok() bool { return false }

// ShadeNotFoundResult reports a failed shade lookup, listing only
// shade devices when any exist.
type ShadeNotFoundResult struct {
	Success         bool     `json:"success"`
	Error           string   `json:"error"`
	AvailableShades []string `json:"available_shades"`
}

func (r ShadeNotFoundResult) Ok() bool { return false }

// ControlResult is the outcome of a single-device control action.
type ControlResult struct {
	Success bool            `json:"success"`
	Device  string          `json:"device"`
	Action  string          `json:"action"`
	State   smarthome.State `json:"state"`
	Note    string          `json:"note,omitempty"`
}

func (r ControlResult) Ok() bool { return r.Success }

func (r *Registry) handleGetAllDevices(ctx context.Context, _ map[string]any) Result {
	// Discovery always bypasses the cache: the user is asking what
	// exists right now.
	devices, err := r.store.RefreshDevices(ctx)
	if err != nil {
		r.logger.Error("failed to get devices", "error", err)
		return Errorf("%v", err)
	}

	summaries := make([]DeviceSummary, 0, len(devices))
	for _, d := range devices {
		summaries = append(summaries, DeviceSummary{
			ID:         d.ID,
			Name:       d.Name,
			Type:       d.Type,
			Room:       d.RoomName(),
			On:         d.State.On,
			Brightness: d.State.Brightness,
			Reachable:  d.IsReachable(),
		})
	}
	return DeviceListResult{Success: true, Devices: summaries, Count: len(devices)}
}

type deviceStatusArgs struct {
	DeviceName string `json:"device_name"`
}

func (r *Registry) handleGetDeviceStatus(ctx context.Context, args map[string]any) Result {
	var a deviceStatusArgs
	if err := decodeArgs(args, &a); err != nil {
		return Errorf("%v", err)
	}

	devices, err := r.store.Devices(ctx)
	if err != nil {
		r.logger.Error("failed to get device status", "error", err)
		return Errorf("%v", err)
	}

	device, ok := findDevice(devices, a.DeviceName)
	if !ok {
		return DeviceNotFoundResult{
			Error:            "Device '" + a.DeviceName + "' not found",
			AvailableDevices: deviceNames(devices),
		}
	}

	return DeviceStatusResult{
		Success: true,
		Device: DeviceDetail{
			ID:           device.ID,
			Name:         device.Name,
			Type:         device.Type,
			Room:         device.RoomName(),
			State:        device.State,
			Reachable:    device.IsReachable(),
			Capabilities: device.Capabilities,
		},
	}
}

type controlDeviceArgs struct {
	DeviceName string `json:"device_name"`
	On         *bool  `json:"on"`
	Brightness *int   `json:"brightness"`
	Color      *struct {
		Hue        int `json:"hue"`
		Saturation int `json:"saturation"`
	} `json:"color"`
	ColorTemp *int `json:"color_temp"`
}

// buildState assembles the partial state update a control_device call
// describes. Raising brightness above zero implies turning on.
func (a controlDeviceArgs) buildState(current smarthome.State) smarthome.State {
	var s smarthome.State

	if a.On != nil {
		on := *a.On
		s.On = &on
	}
	if a.Brightness != nil {
		b := *a.Brightness
		s.Brightness = &b
		if b > 0 {
			on := true
			s.On = &on
		}
	}
	if a.Color != nil {
		bri := 100
		if a.Brightness != nil {
			bri = *a.Brightness
		} else if current.Brightness != nil {
			bri = *current.Brightness
		}
		s.Color = &smarthome.Color{
			Hue:        a.Color.Hue,
			Saturation: a.Color.Saturation,
			Brightness: bri,
		}
	}
	if a.ColorTemp != nil {
		ct := *a.ColorTemp
		s.ColorTemp = &ct
	}
	return s
}

func (r *Registry) handleControlDevice(ctx context.Context, args map[string]any) Result {
	var a controlDeviceArgs
	if err := decodeArgs(args, &a); err != nil {
		return Errorf("%v", err)
	}

	devices, err := r.store.Devices(ctx)
	if err != nil {
		r.logger.Error("failed to control device", "error", err)
		return Errorf("%v", err)
	}

	device, ok := findDevice(devices, a.DeviceName)
	if !ok {
		result := DeviceNotFoundResult{
			Error:            "Device '" + a.DeviceName + "' not found",
			AvailableDevices: deviceNames(devices),
		}
		if looksLikeRoomRequest(a.DeviceName) {
			result.Error += ". This looks like a room request - use control_room instead"
			result.Suggestion = "Use control_room to control all lights in a room"
		}
		return result
	}

	state := a.buildState(device.State)
	if state.IsZero() {
		return Errorf("No state changes specified")
	}

	if err := r.store.Client().SetDeviceState(ctx, device.TargetID(), state); err != nil {
		r.logger.Error("failed to control device",
			"device", device.Name, "error", err)
		return Errorf("%v", err)
	}
	r.store.MarkDevicesModified()

	return ControlResult{
		Success: true,
		Device:  device.Name,
		Action:  joinActions(state),
		State:   state,
	}
}

type controlShadeArgs struct {
	DeviceName string `json:"device_name"`
	Action     string `json:"action"`
	Position   *int   `json:"position"`
}

func (r *Registry) handleControlShade(ctx context.Context, args map[string]any) Result {
	var a controlShadeArgs
	if err := decodeArgs(args, &a); err != nil {
		return Errorf("%v", err)
	}

	devices, err := r.store.Devices(ctx)
	if err != nil {
		r.logger.Error("failed to control shade", "error", err)
		return Errorf("%v", err)
	}

	device, ok := findDevice(devices, a.DeviceName)
	if !ok {
		var shades []string
		for _, d := range devices {
			if d.IsShade() {
				shades = append(shades, d.Name)
			}
		}
		if len(shades) == 0 {
			shades = deviceNames(devices)
		}
		return ShadeNotFoundResult{
			Error:           "Shade '" + a.DeviceName + "' not found",
			AvailableShades: shades,
		}
	}

	if a.Action == ActionStop {
		// The upstream API has no stop primitive. The device keeps its
		// current position, so acknowledge without a state change.
		r.logger.Info("stop command for shade, holding current position",
			"device", device.Name)
		return ControlResult{
			Success: true,
			Device:  device.Name,
			Action:  ActionStop,
			Note:    "Stop command sent",
		}
	}

	if a.Action == ActionPosition && a.Position == nil {
		return Errorf("Position is required for 'position' action")
	}

	position := 0
	if a.Position != nil {
		position = *a.Position
	}
	state := shadeStateUpdate(device, a.Action, position, r.tilt)
	if state.IsZero() {
		return Errorf("Unknown action: %s", a.Action)
	}

	if err := r.store.Client().SetDeviceState(ctx, device.TargetID(), state); err != nil {
		r.logger.Error("failed to control shade",
			"device", device.Name, "error", err)
		return Errorf("%v", err)
	}
	r.store.MarkDevicesModified()

	return ControlResult{
		Success: true,
		Device:  device.Name,
		Action:  shadeActionDescription(a.Action, position),
		State:   state,
	}
}

// findDevice resolves a spoken name against the device inventory.
func findDevice(devices []smarthome.Device, name string) (smarthome.Device, bool) {
	cands := make([]resolve.Candidate, len(devices))
	for i, d := range devices {
		cands[i] = resolve.Candidate{Name: d.Name, ID: d.ID}
	}
	i, ok := resolve.Find(cands, name)
	if !ok {
		return smarthome.Device{}, false
	}
	return devices[i], true
}

// looksLikeRoomRequest guesses whether a failed device lookup was
// really a room command.
func looksLikeRoomRequest(name string) bool {
	lower := strings.ToLower(name)
	for _, w := range roomIndicators {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
