package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/sheetsync/internal/ui"
)

// Scenario is a scripted sequence of messages plus assertions on the
// resulting trace, store and UI state.
type Scenario struct {
	// Name identifies the scenario and its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Screen is the display geometry. Defaults to 1072x1448.
	Screen *ScreenSpec `yaml:"screen,omitempty"`

	// LongPressMS overrides the long-press threshold.
	LongPressMS int `yaml:"long_press_ms,omitempty"`

	// Steps are processed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// ScreenSpec is a display geometry.
type ScreenSpec struct {
	Width  uint32 `yaml:"width"`
	Height uint32 `yaml:"height"`
}

// Step is one message. Which fields apply depends on Message.
type Step struct {
	Message string `yaml:"message"`

	Name    string   `yaml:"name,omitempty"`
	WmClass string   `yaml:"wm_class,omitempty"`
	Title   string   `yaml:"title,omitempty"`
	Tags    []string `yaml:"tags,omitempty"`
	All     bool     `yaml:"all,omitempty"`

	// Image defaults to a 1x1 black bitmap.
	Image *ImageSpec `yaml:"image,omitempty"`

	// Event and Key describe an input step. AtMS is the offset from
	// testutil.Epoch.
	Event string `yaml:"event,omitempty"`
	Key   string `yaml:"key,omitempty"`
	AtMS  int64  `yaml:"at_ms,omitempty"`

	// Expect validates the step's outcome. If nil, nothing is checked.
	Expect *Expect `yaml:"expect,omitempty"`
}

// ImageSpec is a solid Gray8 bitmap.
type ImageSpec struct {
	Width  uint32 `yaml:"width"`
	Height uint32 `yaml:"height"`
	Fill   uint8  `yaml:"fill,omitempty"`
}

// Expect is a subset match on a step's outcome.
type Expect struct {
	// Outcome is ok, noop, error or stopped.
	Outcome   string `yaml:"outcome,omitempty"`
	Error     string `yaml:"error,omitempty"`
	Rendered  *bool  `yaml:"rendered,omitempty"`
	Persisted *bool  `yaml:"persisted,omitempty"`
}

// Message names.
const (
	MsgFocusedWindow     = "focused_window"
	MsgScreenInfo        = "screen_info"
	MsgContentInfo       = "content_info"
	MsgUploadEntry       = "upload_entry"
	MsgRemoveEntry       = "remove_entry"
	MsgUploadTransient   = "upload_transient"
	MsgClearTransient    = "clear_transient"
	MsgAddEntryTags      = "add_entry_tags"
	MsgRemoveEntryTags   = "remove_entry_tags"
	MsgAddWmClassTags    = "add_wm_class_tags"
	MsgRemoveWmClassTags = "remove_wm_class_tags"
	MsgInput             = "input"
	MsgShutdown          = "shutdown"
)

// Assertion validates trace or final state.
type Assertion struct {
	Type string `yaml:"type"`

	// Kind and Count are used by trace_count; Count alone by saves.
	Kind  string `yaml:"kind,omitempty"`
	Count int    `yaml:"count,omitempty"`

	// Kinds is the expected order (trace_order).
	Kinds []string `yaml:"kinds,omitempty"`

	// Badge, Name, Placeholder and Overlay match the final frame.
	Badge       string `yaml:"badge,omitempty"`
	Name        string `yaml:"name,omitempty"`
	Placeholder string `yaml:"placeholder,omitempty"`
	Overlay     *bool  `yaml:"overlay,omitempty"`

	// Mode is used by final_mode.
	Mode string `yaml:"mode,omitempty"`

	// Entries is used by entries.
	Entries []string `yaml:"entries,omitempty"`

	// WmClass and Tags are used by entry_tags (with Name) and wm_class_tags.
	WmClass string   `yaml:"wm_class,omitempty"`
	Tags    []string `yaml:"tags,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceCount  = "trace_count"
	AssertTraceOrder  = "trace_order"
	AssertFinalFrame  = "final_frame"
	AssertFinalMode   = "final_mode"
	AssertEntries     = "entries"
	AssertEntryTags   = "entry_tags"
	AssertWmClassTags = "wm_class_tags"
	AssertSaves       = "saves"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if s.Screen != nil && (s.Screen.Width == 0 || s.Screen.Height == 0) {
		return fmt.Errorf("screen must have a non-zero width and height")
	}
	if s.LongPressMS < 0 {
		return fmt.Errorf("long_press_ms must not be negative")
	}

	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	switch step.Message {
	case MsgUploadEntry, MsgRemoveEntry, MsgUploadTransient:
		if step.Name == "" {
			return fmt.Errorf("name is required for %s", step.Message)
		}
	case MsgAddEntryTags, MsgRemoveEntryTags:
		if step.Name == "" {
			return fmt.Errorf("name is required for %s", step.Message)
		}
		if len(step.Tags) == 0 && !step.All {
			return fmt.Errorf("tags are required for %s", step.Message)
		}
	case MsgAddWmClassTags, MsgRemoveWmClassTags:
		if step.WmClass == "" {
			return fmt.Errorf("wm_class is required for %s", step.Message)
		}
		if len(step.Tags) == 0 && !step.All {
			return fmt.Errorf("tags are required for %s", step.Message)
		}
	case MsgInput:
		typ, err := ui.ParseEventType(step.Event)
		if err != nil {
			return err
		}
		if typ == ui.EventKeyDown || typ == ui.EventKeyUp {
			if _, err := ui.ParseKey(step.Key); err != nil {
				return err
			}
		}
	case MsgFocusedWindow, MsgScreenInfo, MsgContentInfo, MsgClearTransient, MsgShutdown:
	case "":
		return fmt.Errorf("message is required")
	default:
		return fmt.Errorf("unknown message %q", step.Message)
	}
	if step.All && step.Message != MsgRemoveEntryTags && step.Message != MsgRemoveWmClassTags {
		return fmt.Errorf("all is only valid for remove tag messages")
	}
	if step.Image != nil && (step.Image.Width == 0 || step.Image.Height == 0) {
		return fmt.Errorf("image must have a non-zero width and height")
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertTraceCount:
		if a.Kind == "" {
			return fmt.Errorf("kind is required for trace_count")
		}
		if a.Count < 0 {
			return fmt.Errorf("count must be non-negative for trace_count")
		}
	case AssertTraceOrder:
		if len(a.Kinds) == 0 {
			return fmt.Errorf("kinds list is required for trace_order")
		}
	case AssertFinalFrame:
		if a.Badge == "" && a.Name == "" && a.Placeholder == "" && a.Overlay == nil {
			return fmt.Errorf("final_frame needs at least one of badge, name, placeholder, overlay")
		}
	case AssertFinalMode:
		if _, err := ui.ParseMode(a.Mode); err != nil {
			return err
		}
	case AssertEntries:
	case AssertEntryTags:
		if a.Name == "" {
			return fmt.Errorf("name is required for entry_tags")
		}
	case AssertWmClassTags:
		if a.WmClass == "" {
			return fmt.Errorf("wm_class is required for wm_class_tags")
		}
	case AssertSaves:
		if a.Count < 0 {
			return fmt.Errorf("count must be non-negative for saves")
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
