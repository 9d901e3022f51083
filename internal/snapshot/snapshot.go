// Package snapshot aggregates the current smart-home state into the
// context handed to the language model before each turn: a structured
// JSON form for tool-call grounding and a compact text summary for the
// system prompt.
package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hearthd/hearth/internal/resilience"
	"github.com/hearthd/hearth/internal/smarthome"
)

// cacheTTL is shorter than the tool caches: prompt context should lag
// reality by seconds, not half a minute.
const cacheTTL = 15 * time.Second

// DeviceView is one device in the structured snapshot.
type DeviceView struct {
	Name         string         `json:"name"`
	ID           string         `json:"id"`
	Room         string         `json:"room,omitempty"`
	State        map[string]any `json:"state"`
	Capabilities []string       `json:"capabilities"`
}

// ListView is a room or group in the structured snapshot.
type ListView struct {
	Name        string   `json:"name"`
	ID          string   `json:"id"`
	DeviceNames []string `json:"device_names"`
}

// Snapshot is the structured smart-home state. Shades are split out
// from lights because their state reads as position, not brightness.
type Snapshot struct {
	Rooms   []ListView   `json:"rooms"`
	Devices []DeviceView `json:"devices"`
	Groups  []ListView   `json:"groups"`
	Shades  []DeviceView `json:"shades"`
}

// Service builds snapshots from the smart-home API, caching both forms
// independently.
type Service struct {
	client *smarthome.Client
	logger *slog.Logger

	structured *resilience.Cache[*Snapshot]
	text       *resilience.Cache[string]
}

// NewService creates a snapshot service.
func NewService(client *smarthome.Client, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		client:     client,
		logger:     logger,
		structured: resilience.NewCache[*Snapshot](cacheTTL),
		text:       resilience.NewCache[string](cacheTTL),
	}
}

// Invalidate drops both caches. Called after state changes so the next
// turn sees the new state.
func (s *Service) Invalidate() {
	s.structured.Clear()
	s.text.Clear()
}

// fetchAll retrieves devices, rooms, and groups concurrently. A failed
// fetch degrades to an empty list: a partial snapshot is better than
// no context at all.
func (s *Service) fetchAll(ctx context.Context) ([]smarthome.Device, []smarthome.Room, []smarthome.Group) {
	var (
		wg      sync.WaitGroup
		devices []smarthome.Device
		rooms   []smarthome.Room
		groups  []smarthome.Group
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		var err error
		if devices, err = s.client.Devices(ctx); err != nil {
			s.logger.Warn("failed to fetch devices for snapshot", "error", err)
			devices = nil
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		if rooms, err = s.client.Rooms(ctx); err != nil {
			s.logger.Warn("failed to fetch rooms for snapshot", "error", err)
			rooms = nil
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		if groups, err = s.client.Groups(ctx); err != nil {
			s.logger.Warn("failed to fetch groups for snapshot", "error", err)
			groups = nil
		}
	}()
	wg.Wait()

	return devices, rooms, groups
}

// Structured returns the JSON-shaped snapshot, cached.
func (s *Service) Structured(ctx context.Context) *Snapshot {
	if cached, ok := s.structured.Get(); ok {
		return cached
	}

	devices, rooms, groups := s.fetchAll(ctx)
	snap := buildSnapshot(devices, rooms, groups)
	s.structured.Set(snap)

	s.logger.Debug("built structured snapshot",
		"devices", len(snap.Devices),
		"shades", len(snap.Shades),
		"rooms", len(snap.Rooms))
	return snap
}

// Summary returns the text summary for the system prompt, cached.
func (s *Service) Summary(ctx context.Context) string {
	if cached, ok := s.text.Get(); ok {
		return cached
	}

	devices, rooms, groups := s.fetchAll(ctx)
	text := buildSummary(devices, rooms, groups)
	s.text.Set(text)
	return text
}

func buildSnapshot(devices []smarthome.Device, rooms []smarthome.Room, groups []smarthome.Group) *Snapshot {
	snap := &Snapshot{
		Rooms:   make([]ListView, 0, len(rooms)),
		Groups:  make([]ListView, 0, len(groups)),
		Devices: []DeviceView{},
		Shades:  []DeviceView{},
	}

	for _, d := range devices {
		view := DeviceView{
			Name:         d.Name,
			ID:           d.ID,
			Room:         d.RoomName(),
			Capabilities: deviceCapabilities(d),
		}
		if d.IsShade() {
			pos := 0
			if d.State.Brightness != nil {
				pos = *d.State.Brightness
			}
			view.State = map[string]any{
				"position":  pos,
				"reachable": d.IsReachable(),
			}
			snap.Shades = append(snap.Shades, view)
			continue
		}

		state := map[string]any{
			"on":        d.State.On != nil && *d.State.On,
			"reachable": d.IsReachable(),
		}
		if d.State.Brightness != nil {
			state["brightness"] = *d.State.Brightness
		}
		view.State = state
		snap.Devices = append(snap.Devices, view)
	}

	for _, r := range rooms {
		snap.Rooms = append(snap.Rooms, ListView{
			Name:        r.Name,
			ID:          r.ID,
			DeviceNames: names(r.Devices),
		})
	}
	for _, g := range groups {
		snap.Groups = append(snap.Groups, ListView{
			Name:        g.Name,
			ID:          g.ID,
			DeviceNames: names(g.Devices),
		})
	}

	return snap
}

// deviceCapabilities infers what a device can do from its type and
// reported state.
func deviceCapabilities(d smarthome.Device) []string {
	if d.IsShade() {
		return []string{"open", "close", "position"}
	}
	caps := []string{"on_off"}
	if d.State.Brightness != nil {
		caps = append(caps, "brightness")
	}
	if d.State.Color != nil {
		caps = append(caps, "color")
	}
	if d.State.ColorTemp != nil {
		caps = append(caps, "color_temperature")
	}
	return caps
}

func buildSummary(devices []smarthome.Device, rooms []smarthome.Room, groups []smarthome.Group) string {
	var lines []string
	lines = append(lines, "## Current Smart Home State")

	if len(rooms) > 0 {
		summaries := make([]string, 0, len(rooms))
		for _, r := range rooms {
			summaries = append(summaries, roomSummary(r))
		}
		lines = append(lines, "**Rooms:** "+strings.Join(summaries, ", "))
	} else {
		lines = append(lines, "**Rooms:** None configured")
	}

	if len(groups) > 0 {
		summaries := make([]string, 0, len(groups))
		for _, g := range groups {
			summaries = append(summaries, fmt.Sprintf("%s (%d devices)", g.Name, len(g.Devices)))
		}
		lines = append(lines, "**Groups:** "+strings.Join(summaries, ", "))
	}

	var lights, shades []string
	for _, d := range devices {
		if d.IsShade() {
			shades = append(shades, locatedState(d, shadeState(d)))
		} else {
			lights = append(lights, locatedState(d, lightState(d)))
		}
	}

	switch {
	case len(lights) == 0 && len(shades) == 0:
		lines = append(lines, "**Devices:** None found")
	default:
		if len(lights) > 0 {
			lines = append(lines, "**Lights:** "+strings.Join(lights, ", "))
		}
		if len(shades) > 0 {
			lines = append(lines, "**Shades/Curtains:** "+strings.Join(shades, ", "))
		}
	}

	lines = append(lines, "")
	lines = append(lines, "Use control_room for room names, control_device for specific device names, control_shade for shades/curtains.")

	return strings.Join(lines, "\n")
}

func roomSummary(r smarthome.Room) string {
	total := len(r.Devices)
	if total == 0 {
		return r.Name + " (empty)"
	}
	on := 0
	for _, d := range r.Devices {
		if d.State.On != nil && *d.State.On {
			on++
		}
	}
	switch on {
	case 0:
		return fmt.Sprintf("%s (%d lights, all off)", r.Name, total)
	case total:
		return fmt.Sprintf("%s (%d lights, all on)", r.Name, total)
	default:
		return fmt.Sprintf("%s (%d lights, %d on)", r.Name, total, on)
	}
}

// shadeState renders shade position: the brightness axis reads as
// openness.
func shadeState(d smarthome.Device) string {
	pos := 0
	if d.State.Brightness != nil {
		pos = *d.State.Brightness
	}
	switch {
	case pos >= 100:
		return "open"
	case pos <= 0:
		return "closed"
	default:
		return fmt.Sprintf("%d%% open", pos)
	}
}

func lightState(d smarthome.Device) string {
	on := d.State.On != nil && *d.State.On
	switch {
	case on && d.State.Brightness != nil:
		return fmt.Sprintf("on, %d%%", *d.State.Brightness)
	case on:
		return "on"
	default:
		return "off"
	}
}

func locatedState(d smarthome.Device, state string) string {
	if room := d.RoomName(); room != "" {
		return fmt.Sprintf("%s [%s] (%s)", d.Name, room, state)
	}
	return fmt.Sprintf("%s (%s)", d.Name, state)
}

func names(devices []smarthome.Device) []string {
	out := make([]string, 0, len(devices))
	for _, d := range devices {
		out = append(out, d.Name)
	}
	return out
}
