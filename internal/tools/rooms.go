package tools

import (
	"context"
	"fmt"

	"github.com/hearthd/hearth/internal/resolve"
	"github.com/hearthd/hearth/internal/smarthome"
)

func (r *Registry) registerRoomTools() {
	r.Register(&Tool{
		Name:        "get_all_rooms",
		Description: "Get a list of all rooms and their devices. Use this to see how devices are organized by room.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
			"required":   []string{},
		},
		handler: r.handleGetAllRooms,
	})

	r.Register(&Tool{
		Name:        "control_room",
		Description: "Control ALL LIGHTS in a room at once (excludes shades/blinds). USE THIS when user says 'kitchen lights', 'bedroom lights', 'turn on the kitchen', 'turn off the living room', 'turn off everything', etc. This controls lights ONLY — shades/blinds are never affected.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"room_name": map[string]any{
					"type":        "string",
					"description": "The name of the room (e.g., 'Kitchen', 'Living Room', 'Bedroom'). Extract just the room name without 'lights' or 'light'.",
				},
				"on": map[string]any{
					"type":        "boolean",
					"description": "Turn all devices in the room on (true) or off (false)",
				},
				"brightness": map[string]any{
					"type":        "integer",
					"minimum":     0,
					"maximum":     100,
					"description": "Set brightness for all devices in the room (0-100)",
				},
				"color_temp": map[string]any{
					"type":        "integer",
					"minimum":     2000,
					"maximum":     6500,
					"description": "Color temperature in Kelvin for all devices that support it",
				},
			},
			"required": []string{"room_name"},
		},
		handler: r.handleControlRoom,
	})

	r.Register(&Tool{
		Name:        "control_room_shades",
		Description: "Control ALL shades, curtains, or blinds in a room at once. ONLY use this when the user EXPLICITLY mentions shades, blinds, curtains, persianas, or cortinas. Examples: 'close the living room blinds', 'open bedroom curtains', 'fecha as cortinas da sala'. NEVER use for generic room commands like 'turn off the living room' or 'desliga a sala' — those are for lights only.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"room_name": map[string]any{
					"type":        "string",
					"description": "The name of the room (e.g., 'Kitchen', 'Living Room', 'Bedroom', 'Sala'). Extract just the room name without 'blinds', 'curtains', etc.",
				},
				"action": map[string]any{
					"type":        "string",
					"enum":        []string{ActionOpen, ActionClose, ActionPosition},
					"description": "Action to perform: 'open' fully opens all shades, 'close' fully closes all shades, 'position' sets specific openness.",
				},
				"position": map[string]any{
					"type":        "integer",
					"minimum":     0,
					"maximum":     100,
					"description": "Openness percentage (0-100). 0 = fully closed, 100 = fully open. Only used with action='position'.",
				},
			},
			"required": []string{"room_name", "action"},
		},
		handler: r.handleControlRoomShades,
	})
}

// RoomSummary is the compact per-room view in listings.
type RoomSummary struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	DeviceCount int      `json:"device_count"`
	Devices     []string `json:"devices"`
}

// RoomListResult is the outcome of get_all_rooms.
type RoomListResult struct {
	Success bool          `json:"success"`
	Rooms   []RoomSummary `json:"rooms"`
	Count   int           `json:"count"`
}

func (r RoomListResult) Ok() bool { return r.Success }

// RoomNotFoundResult reports a failed room lookup with close-match
// suggestions.
type RoomNotFoundResult struct {
	Success        bool     `json:"success"`
	Error          string   `json:"error"`
	Suggestions    []string `json:"suggestions,omitempty"`
	AvailableRooms []string `json:"available_rooms"`
}

func (r RoomNotFoundResult) Ok() bool { return false }

// RoomControlResult is the outcome of control_room: success when at
// least one device accepted the change.
type RoomControlResult struct {
	Success           bool                     `json:"success"`
	Room              string                   `json:"room"`
	Action            string                   `json:"action,omitempty"`
	Message           string                   `json:"message,omitempty"`
	DevicesControlled int                      `json:"devices_controlled"`
	TotalDevices      int                      `json:"total_devices,omitempty"`
	Results           []smarthome.DeviceResult `json:"results,omitempty"`
}

func (r RoomControlResult) Ok() bool { return r.Success }

// RoomShadesResult is the outcome of control_room_shades.
type RoomShadesResult struct {
	Success         bool                     `json:"success"`
	Room            string                   `json:"room"`
	Action          string                   `json:"action"`
	ShadesControlled int                     `json:"shades_controlled"`
	TotalShades     int                      `json:"total_shades"`
	Results         []smarthome.DeviceResult `json:"results"`
}

func (r RoomShadesResult) Ok() bool { return r.Success }

// NoShadesResult reports that a room has no window coverings.
type NoShadesResult struct {
	Success    bool     `json:"success"`
	Room       string   `json:"room"`
	Error      string   `json:"error"`
	AllDevices []string `json:"all_devices"`
}

func (r NoShadesResult) Ok() bool { return false }

func (r *Registry) handleGetAllRooms(ctx context.Context, _ map[string]any) Result {
	rooms, err := r.store.RefreshRooms(ctx)
	if err != nil {
		r.logger.Error("failed to get rooms", "error", err)
		return Errorf("%v", err)
	}

	summaries := make([]RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		summaries = append(summaries, RoomSummary{
			ID:          room.ID,
			Name:        room.Name,
			DeviceCount: len(room.Devices),
			Devices:     deviceNames(room.Devices),
		})
	}
	return RoomListResult{Success: true, Rooms: summaries, Count: len(rooms)}
}

type controlRoomArgs struct {
	RoomName   string `json:"room_name"`
	On         *bool  `json:"on"`
	Brightness *int   `json:"brightness"`
	ColorTemp  *int   `json:"color_temp"`
}

func (a controlRoomArgs) buildState() smarthome.State {
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
	if a.ColorTemp != nil {
		ct := *a.ColorTemp
		s.ColorTemp = &ct
	}
	return s
}

func (r *Registry) handleControlRoom(ctx context.Context, args map[string]any) Result {
	var a controlRoomArgs
	if err := decodeArgs(args, &a); err != nil {
		return Errorf("%v", err)
	}

	rooms, err := r.store.Rooms(ctx)
	if err != nil {
		r.logger.Error("failed to control room", "error", err)
		return Errorf("%v", err)
	}

	room, ok := findRoom(rooms, a.RoomName)
	if !ok {
		return roomNotFound(rooms, a.RoomName)
	}

	// Shades are never touched by room light commands; they have their
	// own tool with an explicit-mention-only contract.
	var lights []smarthome.Device
	for _, d := range room.Devices {
		if !d.IsShade() {
			lights = append(lights, d)
		}
	}
	if len(lights) == 0 {
		return RoomControlResult{
			Success: true,
			Room:    room.Name,
			Message: "Room has no devices",
		}
	}

	state := a.buildState()
	if state.IsZero() {
		return Errorf("No state changes specified")
	}

	r.logger.Info("controlling room",
		"room", room.Name, "devices", len(lights), "state", state)

	results := r.applyToDevices(ctx, lights, func(smarthome.Device) smarthome.State {
		return state
	})
	r.store.MarkRoomsModified()

	controlled := countSuccesses(results)
	return RoomControlResult{
		Success:           controlled > 0,
		Room:              room.Name,
		Action:            joinActions(state),
		DevicesControlled: controlled,
		TotalDevices:      len(lights),
		Results:           results,
	}
}

type controlRoomShadesArgs struct {
	RoomName string `json:"room_name"`
	Action   string `json:"action"`
	Position *int   `json:"position"`
}

func (r *Registry) handleControlRoomShades(ctx context.Context, args map[string]any) Result {
	var a controlRoomShadesArgs
	if err := decodeArgs(args, &a); err != nil {
		return Errorf("%v", err)
	}

	rooms, err := r.store.Rooms(ctx)
	if err != nil {
		r.logger.Error("failed to control room shades", "error", err)
		return Errorf("%v", err)
	}

	room, ok := findRoom(rooms, a.RoomName)
	if !ok {
		return roomNotFound(rooms, a.RoomName)
	}

	var shades []smarthome.Device
	for _, d := range room.Devices {
		if d.IsShade() {
			shades = append(shades, d)
		}
	}
	if len(shades) == 0 {
		return NoShadesResult{
			Room:       room.Name,
			Error:      fmt.Sprintf("No shades/curtains/blinds found in %s", room.Name),
			AllDevices: deviceNames(room.Devices),
		}
	}

	if a.Action == ActionPosition && a.Position == nil {
		return Errorf("Position is required for 'position' action")
	}
	position := 0
	if a.Position != nil {
		position = *a.Position
	}

	r.logger.Info("controlling room shades",
		"room", room.Name, "shades", len(shades), "action", a.Action)

	results := r.applyToDevices(ctx, shades, func(d smarthome.Device) smarthome.State {
		return shadeStateUpdate(d, a.Action, position, r.tilt)
	})
	r.store.MarkRoomsModified()

	controlled := countSuccesses(results)
	return RoomShadesResult{
		Success:          controlled > 0,
		Room:             room.Name,
		Action:           shadeActionDescription(a.Action, position),
		ShadesControlled: controlled,
		TotalShades:      len(shades),
		Results:          results,
	}
}

// applyToDevices sends per-device state updates sequentially,
// collecting an outcome for each. One failing device does not stop the
// rest of the room.
func (r *Registry) applyToDevices(ctx context.Context, devices []smarthome.Device, state func(smarthome.Device) smarthome.State) []smarthome.DeviceResult {
	results := make([]smarthome.DeviceResult, 0, len(devices))
	for _, d := range devices {
		if err := r.store.Client().SetDeviceState(ctx, d.TargetID(), state(d)); err != nil {
			r.logger.Error("device update failed",
				"device", d.Name, "error", err)
			results = append(results, smarthome.DeviceResult{
				Device: d.Name, Success: false, Error: err.Error(),
			})
			continue
		}
		results = append(results, smarthome.DeviceResult{Device: d.Name, Success: true})
	}
	return results
}

func countSuccesses(results []smarthome.DeviceResult) int {
	n := 0
	for _, res := range results {
		if res.Success {
			n++
		}
	}
	return n
}

func findRoom(rooms []smarthome.Room, name string) (smarthome.Room, bool) {
	cands := make([]resolve.Candidate, len(rooms))
	for i, room := range rooms {
		cands[i] = resolve.Candidate{Name: room.Name, ID: room.ID}
	}
	i, ok := resolve.Find(cands, name)
	if !ok {
		return smarthome.Room{}, false
	}
	return rooms[i], true
}

func roomNotFound(rooms []smarthome.Room, name string) RoomNotFoundResult {
	cands := make([]resolve.Candidate, len(rooms))
	names := make([]string, len(rooms))
	for i, room := range rooms {
		cands[i] = resolve.Candidate{Name: room.Name, ID: room.ID}
		names[i] = room.Name
	}
	return RoomNotFoundResult{
		Error:          "Room '" + name + "' not found",
		Suggestions:    resolve.Suggest(cands, name),
		AvailableRooms: names,
	}
}
