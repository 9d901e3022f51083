package tools

import (
	"context"

	"github.com/hearthd/hearth/internal/resolve"
	"github.com/hearthd/hearth/internal/smarthome"
)

func (r *Registry) registerGroupTools() {
	r.Register(&Tool{
		Name:        "get_all_groups",
		Description: "Get a list of all device groups. Groups are custom collections of devices that can be controlled together.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
			"required":   []string{},
		},
		handler: r.handleGetAllGroups,
	})

	r.Register(&Tool{
		Name:        "control_group",
		Description: "Control all devices in a custom group at once.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"group_name": map[string]any{
					"type":        "string",
					"description": "The name of the device group",
				},
				"on": map[string]any{
					"type":        "boolean",
					"description": "Turn all devices in the group on (true) or off (false)",
				},
				"brightness": map[string]any{
					"type":        "integer",
					"minimum":     0,
					"maximum":     100,
					"description": "Set brightness for all devices in the group (0-100)",
				},
				"color_temp": map[string]any{
					"type":        "integer",
					"minimum":     2000,
					"maximum":     6500,
					"description": "Color temperature in Kelvin for all devices that support it",
				},
			},
			"required": []string{"group_name"},
		},
		handler: r.handleControlGroup,
	})
}

// GroupSummary is the compact per-group view in listings.
type GroupSummary struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	DeviceCount int      `json:"device_count"`
	Devices     []string `json:"devices"`
}

// GroupListResult is the outcome of get_all_groups.
type GroupListResult struct {
	Success bool           `json:"success"`
	Groups  []GroupSummary `json:"groups"`
	Count   int            `json:"count"`
}

func (r GroupListResult) Ok() bool { return r.Success }

// GroupNotFoundResult reports a failed group lookup.
type GroupNotFoundResult struct {
	Success         bool     `json:"success"`
	Error           string   `json:"error"`
	Suggestions     []string `json:"suggestions,omitempty"`
	AvailableGroups []string `json:"available_groups"`
}

func (r GroupNotFoundResult) Ok() bool { return false }

// GroupControlResult is the outcome of control_group.
type GroupControlResult struct {
	Success           bool                     `json:"success"`
	Group             string                   `json:"group"`
	Action            string                   `json:"action"`
	DevicesControlled int                      `json:"devices_controlled"`
	TotalDevices      int                      `json:"total_devices"`
	Results           []smarthome.DeviceResult `json:"results"`
}

func (r GroupControlResult) Ok() bool { return r.Success }

func (r *Registry) handleGetAllGroups(ctx context.Context, _ map[string]any) Result {
	groups, err := r.store.RefreshGroups(ctx)
	if err != nil {
		r.logger.Error("failed to get groups", "error", err)
		return Errorf("%v", err)
	}

	summaries := make([]GroupSummary, 0, len(groups))
	for _, g := range groups {
		summaries = append(summaries, GroupSummary{
			ID:          g.ID,
			Name:        g.Name,
			DeviceCount: len(g.Devices),
			Devices:     deviceNames(g.Devices),
		})
	}
	return GroupListResult{Success: true, Groups: summaries, Count: len(groups)}
}

type controlGroupArgs struct {
	GroupName  string `json:"group_name"`
	On         *bool  `json:"on"`
	Brightness *int   `json:"brightness"`
	ColorTemp  *int   `json:"color_temp"`
}

func (r *Registry) handleControlGroup(ctx context.Context, args map[string]any) Result {
	var a controlGroupArgs
	if err := decodeArgs(args, &a); err != nil {
		return Errorf("%v", err)
	}

	groups, err := r.store.Groups(ctx)
	if err != nil {
		r.logger.Error("failed to control group", "error", err)
		return Errorf("%v", err)
	}

	group, ok := findGroup(groups, a.GroupName)
	if !ok {
		cands := make([]resolve.Candidate, len(groups))
		names := make([]string, len(groups))
		for i, g := range groups {
			cands[i] = resolve.Candidate{Name: g.Name, ID: g.ID}
			names[i] = g.Name
		}
		return GroupNotFoundResult{
			Error:           "Group '" + a.GroupName + "' not found",
			Suggestions:     resolve.Suggest(cands, a.GroupName),
			AvailableGroups: names,
		}
	}

	state := controlRoomArgs{
		On:         a.On,
		Brightness: a.Brightness,
		ColorTemp:  a.ColorTemp,
	}.buildState()
	if state.IsZero() {
		return Errorf("No state changes specified")
	}

	// Groups have a dedicated bulk endpoint; the upstream fans out and
	// reports per-device outcomes.
	result, err := r.store.Client().SetGroupState(ctx, group.ID, state)
	if err != nil {
		r.logger.Error("failed to control group",
			"group", group.Name, "error", err)
		return Errorf("%v", err)
	}
	r.store.MarkGroupsModified()

	controlled := countSuccesses(result.Results)
	return GroupControlResult{
		Success:           controlled > 0,
		Group:             group.Name,
		Action:            joinActions(state),
		DevicesControlled: controlled,
		TotalDevices:      len(group.Devices),
		Results:           result.Results,
	}
}

func findGroup(groups []smarthome.Group, name string) (smarthome.Group, bool) {
	cands := make([]resolve.Candidate, len(groups))
	for i, g := range groups {
		cands[i] = resolve.Candidate{Name: g.Name, ID: g.ID}
	}
	i, ok := resolve.Find(cands, name)
	if !ok {
		return smarthome.Group{}, false
	}
	return groups[i], true
}
