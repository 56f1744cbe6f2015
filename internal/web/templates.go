// Package web serves the browser pages: the monitor dashboard, the create
// form and the report view.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/starford/compass/internal/citation"
	"github.com/starford/compass/internal/models"
)

//go:embed templates/*.html
var embedded embed.FS

// Templates holds the parsed page templates. When loaded from a directory
// they can be re-parsed at runtime.
type Templates struct {
	dir string

	mu  sync.RWMutex
	set *template.Template
}

// LoadTemplates parses the embedded templates, or the *.html files in dir
// when dir is non-empty.
func LoadTemplates(dir string) (*Templates, error) {
	t := &Templates{dir: dir}
	if err := t.Reload(); err != nil {
		return nil, err
	}
	return t, nil
}

// Dir returns the template directory, or "" for the embedded set.
func (t *Templates) Dir() string {
	return t.dir
}

// Reload re-parses the templates. On error the previous set stays active.
func (t *Templates) Reload() error {
	var fsys fs.FS
	pattern := "templates/*.html"
	if t.dir != "" {
		fsys = os.DirFS(t.dir)
		pattern = "*.html"
	} else {
		fsys = embedded
	}
	set, err := template.New("pages").Funcs(funcs).ParseFS(fsys, pattern)
	if err != nil {
		return fmt.Errorf("web: parse templates: %w", err)
	}
	t.mu.Lock()
	t.set = set
	t.mu.Unlock()
	return nil
}

// Render executes the named page into w. Output is buffered so a failing
// template never leaves a half-written page.
func (t *Templates) Render(w http.ResponseWriter, status int, name string, data any) error {
	t.mu.RLock()
	set := t.set
	t.mu.RUnlock()

	var buf bytes.Buffer
	if err := set.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("web: render %s: %w", name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

var funcs = template.FuncMap{
	"citations": func(segs []citation.Segment) (template.HTML, error) {
		s, err := citation.HTML(segs)
		// citation.HTML escapes text and drops unsafe link targets.
		return template.HTML(s), err
	},
	"join": func(items []string) string {
		return strings.Join(items, ", ")
	},
	"scheduleLabel": func(s models.Schedule) string {
		if s == "" {
			return ""
		}
		return strings.ToUpper(string(s[:1])) + string(s[1:])
	},
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Local().Format("Jan 2, 2006 15:04")
	},
}
