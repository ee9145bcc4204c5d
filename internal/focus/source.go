// Package focus reports the host's focused window to a device.
//
// A Source answers "which window has focus right now"; a Reporter polls it
// and forwards changes.
package focus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/roach88/sheetsync/internal/ui"
)

// Source reports the currently focused window.
type Source interface {
	Focused(ctx context.Context) (ui.FocusedWindow, error)
}

// CommandSource runs a shell command that prints the focused window as a
// JSON object, for example `hyprctl -j activewindow`.
type CommandSource struct {
	Command string
	// Shell runs Command. Defaults to sh -c.
	Shell []string
}

// NewCommandSource creates a source for command.
func NewCommandSource(command string) *CommandSource {
	return &CommandSource{Command: command, Shell: []string{"sh", "-c"}}
}

// Focused runs the command and parses its output.
func (s *CommandSource) Focused(ctx context.Context) (ui.FocusedWindow, error) {
	if strings.TrimSpace(s.Command) == "" {
		return ui.FocusedWindow{}, fmt.Errorf("focus command is empty")
	}
	shell := s.Shell
	if len(shell) == 0 {
		shell = []string{"sh", "-c"}
	}
	args := append(append([]string{}, shell[1:]...), s.Command)
	cmd := exec.CommandContext(ctx, shell[0], args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return ui.FocusedWindow{}, fmt.Errorf("run focus command: %w: %s", err, msg)
		}
		return ui.FocusedWindow{}, fmt.Errorf("run focus command: %w", err)
	}
	return ParseWindow(out)
}

// Accepted key spellings, first match wins.
var (
	classKeys    = []string{"wm_class", "class"}
	instanceKeys = []string{"wm_class_instance", "initialClass"}
)

// ParseWindow decodes a focused-window JSON object. Both the GNOME
// extension's keys and Hyprland's are understood. A missing pid is
// unknown; a missing focus flag means focused. An empty object is no
// focused window.
func ParseWindow(data []byte) (ui.FocusedWindow, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return ui.FocusedWindow{}, fmt.Errorf("parse focused window: %w", err)
	}
	w := ui.NoFocusedWindow()
	if len(raw) == 0 {
		return w, nil
	}
	w.Focus = true

	str := func(keys ...string) (string, error) {
		for _, k := range keys {
			v, ok := raw[k]
			if !ok {
				continue
			}
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return "", fmt.Errorf("parse focused window: %s: %w", k, err)
			}
			return strings.Trim(strings.TrimSpace(s), `"'`), nil
		}
		return "", nil
	}

	var err error
	if w.Title, err = str("title"); err != nil {
		return ui.FocusedWindow{}, err
	}
	if w.WmClass, err = str(classKeys...); err != nil {
		return ui.FocusedWindow{}, err
	}
	if w.WmClassInstance, err = str(instanceKeys...); err != nil {
		return ui.FocusedWindow{}, err
	}
	if v, ok := raw["pid"]; ok {
		var pid int64
		if err := json.Unmarshal(v, &pid); err != nil {
			return ui.FocusedWindow{}, fmt.Errorf("parse focused window: pid: %w", err)
		}
		if pid >= 0 {
			w.PID = uint64(pid)
		}
	}
	if v, ok := raw["focus"]; ok {
		if err := json.Unmarshal(v, &w.Focus); err != nil {
			return ui.FocusedWindow{}, fmt.Errorf("parse focused window: focus: %w", err)
		}
	}
	return w, nil
}
