package tools

import (
	"fmt"

	"github.com/hearthd/hearth/internal/smarthome"
)

// Shade actions accepted by control_shade and control_room_shades.
const (
	ActionOpen     = "open"
	ActionClose    = "close"
	ActionStop     = "stop"
	ActionPosition = "position"
)

// TiltProfile maps visual openness (0-100) onto the actuator scale for
// tilting venetian blinds, whose position axis runs tilt-down (0)
// through horizontal (50) to tilt-up (100).
type TiltProfile interface {
	// Position converts openness to an actuator position.
	Position(openness int) int

	// OpenPosition is the actuator position for "fully open".
	OpenPosition() int
}

// MidpointTilt treats horizontal slats (position 50) as fully open and
// always closes downward to 0. This is the default: it matches how
// people read "open the blinds".
type MidpointTilt struct{}

func (MidpointTilt) Position(openness int) int {
	switch {
	case openness >= 100:
		return 50
	case openness <= 0:
		return 0
	default:
		return openness / 2
	}
}

func (MidpointTilt) OpenPosition() int { return 50 }

// LinearTilt passes openness straight through to the actuator, for
// installations where the upstream hub already normalizes tilt.
type LinearTilt struct{}

func (LinearTilt) Position(openness int) int {
	if openness > 100 {
		return 100
	}
	if openness < 0 {
		return 0
	}
	return openness
}

func (LinearTilt) OpenPosition() int { return 100 }

// TiltProfileByName resolves a configured profile name. Unknown names
// fall back to midpoint.
func TiltProfileByName(name string) TiltProfile {
	if name == "linear" {
		return LinearTilt{}
	}
	return MidpointTilt{}
}

// shadeStateUpdate builds the state change that performs a shade action
// on the given device. The upstream API models shade position on the
// brightness axis. Returns a zero state for "stop", which sends nothing
// upstream.
func shadeStateUpdate(d smarthome.Device, action string, position int, tilt TiltProfile) smarthome.State {
	var s smarthome.State
	tilting := d.IsTiltingBlind()

	switch action {
	case ActionOpen:
		on := true
		s.On = &on
		open := 100
		if tilting {
			open = tilt.OpenPosition()
		}
		s.Brightness = &open
	case ActionClose:
		off := false
		closed := 0
		s.On = &off
		s.Brightness = &closed
	case ActionPosition:
		pos := position
		if tilting {
			pos = tilt.Position(position)
		}
		on := position > 0
		s.On = &on
		s.Brightness = &pos
	}

	return s
}

// shadeActionDescription renders the action for confirmations.
func shadeActionDescription(action string, position int) string {
	switch action {
	case ActionOpen:
		return "opened"
	case ActionClose:
		return "closed"
	case ActionPosition:
		return fmt.Sprintf("set to %d%%", position)
	}
	return action
}
