package console

import (
	"io"
	"strconv"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"

	"github.com/starford/compass/internal/models"
	"github.com/starford/compass/internal/monitorservice"
)

// Options control terminal output.
type Options struct {
	// Plain disables colors and decorations.
	Plain bool
	// Width is the wrap width; 0 means 100.
	Width int
}

var (
	renderersMu sync.Mutex
	// Keyed by style and width. A fixed style avoids the terminal
	// background query of WithAutoStyle.
	renderers = map[string]*glamour.TermRenderer{}
)

func renderer(opts Options) (*glamour.TermRenderer, error) {
	width := opts.Width
	if width <= 0 {
		width = 100
	}
	style := styles.DarkStyle
	if opts.Plain {
		style = styles.NoTTYStyle
	}
	key := style + ":" + strconv.Itoa(width)

	renderersMu.Lock()
	defer renderersMu.Unlock()
	if r := renderers[key]; r != nil {
		return r, nil
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	renderers[key] = r
	return r, nil
}

func render(w io.Writer, md string, opts Options) error {
	r, err := renderer(opts)
	if err != nil {
		return err
	}
	out, err := r.Render(md)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

// RenderReport writes a report, headed by the monitor name when m is non-nil.
func RenderReport(w io.Writer, m *models.Monitor, v *monitorservice.ReportView, opts Options) error {
	md := ReportMarkdown(v)
	if m != nil {
		md = "# " + cell(m.Name) + "\n\n" + md
	}
	return render(w, md, opts)
}

// RenderMonitors writes the monitor table.
func RenderMonitors(w io.Writer, monitors []models.Monitor, opts Options) error {
	return render(w, "# Monitors\n\n"+MonitorsMarkdown(monitors), opts)
}
