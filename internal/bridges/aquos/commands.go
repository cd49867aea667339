package aquos

import (
	"embed"
	"fmt"
	"os"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"
)

// Command table category names read by the client.
const (
	categoryInput  = "input"
	categoryRemote = "remote"
)

// ValidRegions lists the embedded command map variants.
var ValidRegions = []string{"eu", "us", "cn", "jp"}

// RequiredCommands are the top-level command names the client resolves.
// A regional map may store an empty code for an optional command
// (digital_channel_cable_minor); it must still declare the key.
var RequiredCommands = []string{
	"name", "model", "version", "ip_version",
	"power", "power_control", "input_index",
	"av_mode", "volume", "volume_up", "volume_down",
	"view_mode", "mute", "sound_mode", "sleep",
	"analog_channel", "digital_channel_air",
	"digital_channel_cable_major", "digital_channel_cable_minor",
	"channel_up", "channel_down",
	categoryInput, categoryRemote,
}

//go:embed commands/*.yaml
var commandMaps embed.FS

// Input is one entry of the command table's input category.
type Input struct {
	// Key is the table key (e.g. "hdmi_2").
	Key string `json:"key"`

	// Name is the display name reported to callers (e.g. "HDMI_IN_2").
	Name string `json:"name"`

	// Index is the number the TV reports for this input.
	Index int `json:"index"`

	// Command is the mnemonic that selects this input.
	Command string `json:"command"`
}

// CommandTable resolves human-readable command paths to wire mnemonics.
// It is immutable after construction and safe for concurrent reads.
type CommandTable struct {
	region          string
	root            map[string]any
	inputs          []Input
	remote          []string
	hasMinorChannel bool
}

type inputDef struct {
	Index   *int   `yaml:"index"`
	Name    string `yaml:"name"`
	Command string `yaml:"command"`
}

type tableDocument struct {
	Input  map[string]inputDef `yaml:"input"`
	Remote map[string]string   `yaml:"remote"`
}

// LoadCommandTable loads one of the embedded regional command maps.
func LoadCommandTable(region string) (*CommandTable, error) {
	if !slices.Contains(ValidRegions, region) {
		return nil, fmt.Errorf("command map should be one of %v, not %q", ValidRegions, region)
	}

	data, err := commandMaps.ReadFile("commands/" + region + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("reading command map %s: %w", region, err)
	}

	table, err := ParseCommandTable(data)
	if err != nil {
		return nil, fmt.Errorf("command map %s: %w", region, err)
	}
	table.region = region
	return table, nil
}

// LoadCommandTableFile loads an operator-supplied command map from disk.
func LoadCommandTableFile(path string) (*CommandTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading command map file: %w", err)
	}

	table, err := ParseCommandTable(data)
	if err != nil {
		return nil, fmt.Errorf("command map %s: %w", path, err)
	}
	table.region = path
	return table, nil
}

// ParseCommandTable builds a table from a YAML document.
//
// Leaves may be strings or scalars; scalars are rendered with fmt.Sprint.
// Input entries must declare an index and a command.
func ParseCommandTable(data []byte) (*CommandTable, error) {
	var root map[string]any
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parsing command map: %w", err)
	}
	if root == nil {
		return nil, fmt.Errorf("command map is empty")
	}

	var doc tableDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing command map categories: %w", err)
	}

	t := &CommandTable{root: root}

	for key, def := range doc.Input {
		if def.Index == nil {
			return nil, fmt.Errorf("input %q has no index", key)
		}
		if def.Command == "" {
			return nil, fmt.Errorf("input %q has no command", key)
		}
		name := def.Name
		if name == "" {
			name = key
		}
		t.inputs = append(t.inputs, Input{
			Key:     key,
			Name:    name,
			Index:   *def.Index,
			Command: def.Command,
		})
	}
	sort.Slice(t.inputs, func(i, j int) bool {
		if t.inputs[i].Index != t.inputs[j].Index {
			return t.inputs[i].Index < t.inputs[j].Index
		}
		return t.inputs[i].Key < t.inputs[j].Key
	})

	for key, code := range doc.Remote {
		if code != "" {
			t.remote = append(t.remote, key)
		}
	}
	sort.Strings(t.remote)

	if code, err := t.Resolve("digital_channel_cable_minor"); err == nil && code != "" {
		t.hasMinorChannel = true
	}

	return t, nil
}

// Region returns the variant name (or file path) the table was loaded from.
func (t *CommandTable) Region() string {
	return t.region
}

// Resolve walks path through the nested table and returns the leaf mnemonic.
//
// A single name is looked up at the top level. Paths that stop on a
// category, continue past a leaf, or end on an empty code fail with
// *UnknownCommandError naming the offending segment.
func (t *CommandTable) Resolve(path ...string) (string, error) {
	if len(path) == 0 {
		return "", &UnknownCommandError{Reason: "empty command path"}
	}

	var node any = t.root
	for _, seg := range path {
		category, ok := asCategory(node)
		if !ok {
			return "", &UnknownCommandError{Path: path, Segment: seg, Reason: "parent is a command, not a category"}
		}
		next, ok := category[seg]
		if !ok {
			return "", &UnknownCommandError{Path: path, Segment: seg}
		}
		node = next
	}

	last := path[len(path)-1]
	if _, ok := asCategory(node); ok {
		return "", &UnknownCommandError{Path: path, Segment: last, Reason: "path names a category, not a command"}
	}
	switch v := node.(type) {
	case nil:
		return "", &UnknownCommandError{Path: path, Segment: last, Reason: "not supported by this command map"}
	case string:
		if v == "" {
			return "", &UnknownCommandError{Path: path, Segment: last, Reason: "not supported by this command map"}
		}
		return v, nil
	default:
		return fmt.Sprint(v), nil
	}
}

// asCategory accepts both decoded mapping shapes; YAML keys written as
// bare numbers (remote digits) decode with non-string keys.
func asCategory(node any) (map[string]any, bool) {
	switch m := node.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[fmt.Sprint(k)] = v
		}
		return out, true
	default:
		return nil, false
	}
}

// Inputs returns the input category ordered by index.
func (t *CommandTable) Inputs() []Input {
	return slices.Clone(t.inputs)
}

// InputByIndex returns the input registered under the given index.
func (t *CommandTable) InputByIndex(index int) (Input, bool) {
	for _, in := range t.inputs {
		if in.Index == index {
			return in, true
		}
	}
	return Input{}, false
}

// RemoteButtons returns the names of remote keys that have a code in this map.
func (t *CommandTable) RemoteButtons() []string {
	return slices.Clone(t.remote)
}

// HasMinorChannelCommand reports whether digital cable channels are set
// with a separate minor-channel command.
func (t *CommandTable) HasMinorChannelCommand() bool {
	return t.hasMinorChannel
}

// Missing returns the required top-level commands absent from the table.
func (t *CommandTable) Missing() []string {
	var missing []string
	for _, name := range RequiredCommands {
		if _, ok := t.root[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
