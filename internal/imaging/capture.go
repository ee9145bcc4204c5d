package imaging

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// FilePlaceholder in a capture command is replaced by the output path.
const FilePlaceholder = "{file}"

// Capturer runs a shell command that takes a screenshot, for example
// `grim -` or `gnome-screenshot -f {file}`. A command containing
// FilePlaceholder writes the image itself; any other command prints it
// on stdout.
type Capturer struct {
	Command string
	// Shell runs Command. Defaults to sh -c.
	Shell []string
}

// NewCapturer creates a capturer for command.
func NewCapturer(command string) *Capturer {
	return &Capturer{Command: command, Shell: []string{"sh", "-c"}}
}

// Capture runs the command and leaves the image at dst.
func (c *Capturer) Capture(ctx context.Context, dst string) error {
	if strings.TrimSpace(c.Command) == "" {
		return fmt.Errorf("capture command is empty")
	}
	shell := c.Shell
	if len(shell) == 0 {
		shell = []string{"sh", "-c"}
	}

	toFile := strings.Contains(c.Command, FilePlaceholder)
	line := strings.ReplaceAll(c.Command, FilePlaceholder, shellQuote(dst))
	args := append(append([]string{}, shell[1:]...), line)
	cmd := exec.CommandContext(ctx, shell[0], args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	var out []byte
	var err error
	if toFile {
		err = cmd.Run()
	} else {
		out, err = cmd.Output()
	}
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("run capture command: %w: %s", err, msg)
		}
		return fmt.Errorf("run capture command: %w", err)
	}

	if toFile {
		if _, err := os.Stat(dst); err != nil {
			return fmt.Errorf("capture command wrote no image: %w", err)
		}
		return nil
	}
	if len(out) == 0 {
		return fmt.Errorf("capture command printed no image")
	}
	if err := os.WriteFile(dst, out, 0o600); err != nil {
		return fmt.Errorf("write capture: %w", err)
	}
	return nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
