package display

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/roach88/sheetsync/internal/content"
	"github.com/roach88/sheetsync/internal/ui"
)

// ramp maps dark to light. Index 0 is ink.
const ramp = "@%#*+=-:. "

// Terminal renders frames as text on a terminal.
type Terminal struct {
	out io.Writer
	fd  int

	// Fallback geometry when fd is not a terminal. Zero means unavailable.
	FallbackWidth, FallbackHeight int

	styles styles
	buf    bytes.Buffer
}

type styles struct {
	badge       lipgloss.Style
	name        lipgloss.Style
	placeholder lipgloss.Style
	overlay     lipgloss.Style
}

// NewTerminal renders to out and measures the terminal behind fd.
func NewTerminal(out io.Writer, fd int) *Terminal {
	r := lipgloss.NewRenderer(out)
	return &Terminal{
		out: out,
		fd:  fd,
		styles: styles{
			badge: r.NewStyle().Bold(true).Reverse(true).Padding(0, 1),
			name:  r.NewStyle().Bold(true),
			placeholder: r.NewStyle().
				Border(lipgloss.NormalBorder()).
				Padding(1, 4),
			overlay: r.NewStyle().
				Border(lipgloss.NormalBorder()).
				Padding(0, 1),
		},
	}
}

// Geometry reports the terminal size in cells.
func (t *Terminal) Geometry() (ui.ScreenInfo, error) {
	w, h, err := t.size()
	if err != nil {
		return ui.ScreenInfo{}, err
	}
	o := ui.Portrait0
	if w > h {
		o = ui.Landscape90
	}
	return ui.ScreenInfo{Width: uint32(w), Height: uint32(h), Orientation: o}, nil
}

func (t *Terminal) size() (int, int, error) {
	if t.fd >= 0 && term.IsTerminal(t.fd) {
		w, h, err := term.GetSize(t.fd)
		if err == nil {
			return w, h, nil
		}
		if t.FallbackWidth == 0 {
			return 0, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	if t.FallbackWidth > 0 && t.FallbackHeight > 0 {
		return t.FallbackWidth, t.FallbackHeight, nil
	}
	return 0, 0, fmt.Errorf("%w: fd %d is not a terminal", ErrUnavailable, t.fd)
}

// Draw lays out f into the pending buffer.
func (t *Terminal) Draw(f ui.Frame) error {
	w, h, err := t.size()
	if err != nil {
		return err
	}
	t.buf.Reset()
	t.buf.WriteString(t.Render(f, w, h))
	return nil
}

// Flush clears the screen and writes the pending frame.
func (t *Terminal) Flush() error {
	if t.buf.Len() == 0 {
		return nil
	}
	if _, err := io.WriteString(t.out, "\x1b[H\x1b[2J"); err != nil {
		return err
	}
	_, err := t.out.Write(t.buf.Bytes())
	t.buf.Reset()
	return err
}

// Render formats f for a width x height cell area.
func (t *Terminal) Render(f ui.Frame, width, height int) string {
	header := lipgloss.JoinHorizontal(lipgloss.Top,
		t.styles.badge.Render(f.Badge()),
		" ",
		t.styles.name.Render(f.Name),
	)

	var body string
	bodyRows := height - lipgloss.Height(header) - 1
	if f.Kind == ui.FramePlaceholder {
		body = lipgloss.Place(width, max(bodyRows, 1), lipgloss.Center, lipgloss.Center,
			t.styles.placeholder.Render(f.Placeholder))
	} else {
		body = Preview(f.Image, width, max(bodyRows, 1))
	}

	out := lipgloss.JoinVertical(lipgloss.Left, header, body)
	if f.Overlay != nil {
		out = lipgloss.JoinVertical(lipgloss.Left, out,
			t.styles.overlay.Render(strings.Join(f.Overlay.Lines(), "\n")))
	}
	return out + "\n"
}

// Preview downsamples a Gray8 bitmap into at most cols x rows characters.
// Cells are twice as tall as wide, so each row covers two pixel rows per
// column of the same scale.
func Preview(b content.RawBitmap, cols, rows int) string {
	if b.Width == 0 || b.Height == 0 || cols <= 0 || rows <= 0 || uint64(len(b.Pixels)) < uint64(b.Width)*uint64(b.Height) {
		return ""
	}

	w, h := int(b.Width), int(b.Height)
	scale := max(float64(w)/float64(cols), float64(h)/float64(rows)/2, 1)
	outW := max(int(float64(w)/scale), 1)
	outH := max(int(float64(h)/scale/2), 1)

	var sb strings.Builder
	for y := 0; y < outH; y++ {
		py := min(int(float64(y)*scale*2), h-1)
		for x := 0; x < outW; x++ {
			px := min(int(float64(x)*scale), w-1)
			v := int(b.Pixels[py*w+px])
			sb.WriteByte(ramp[v*len(ramp)/256])
		}
		if y < outH-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
