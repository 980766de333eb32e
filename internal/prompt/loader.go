// Package prompt loads the Guesser and Host prompt templates. Templates are
// embedded in the binary; a file with the same name in the override
// directory replaces the embedded one.
package prompt

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Template names.
const (
	GuesserSystem = "guesser_system"
	GuesserAssess = "guesser_assess"
	GuesserAsk    = "guesser_ask"
	GuesserGuess  = "guesser_guess"
	HostSystem    = "host_system"
	HostJudge     = "host_judge"
)

//go:embed templates/*.md
var embeddedTemplates embed.FS

// Loader resolves template names to their text. It is safe for concurrent use.
type Loader struct {
	dir string

	mu    sync.RWMutex
	cache map[string]string
}

// NewLoader returns a Loader that prefers <dir>/<name>.md over the embedded
// template. An empty dir uses the embedded templates only.
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir, cache: make(map[string]string)}
}

// Load returns the template text for name.
func (l *Loader) Load(name string) (string, error) {
	l.mu.RLock()
	text, ok := l.cache[name]
	l.mu.RUnlock()
	if ok {
		return text, nil
	}

	text, err := l.read(name)
	if err != nil {
		return "", err
	}

	l.mu.Lock()
	l.cache[name] = text
	l.mu.Unlock()
	return text, nil
}

func (l *Loader) read(name string) (string, error) {
	file := name + ".md"
	if l.dir != "" {
		path := filepath.Join(l.dir, file)
		data, err := os.ReadFile(path)
		if err == nil {
			return string(data), nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to read prompt override %s: %w", path, err)
		}
	}

	data, err := embeddedTemplates.ReadFile("templates/" + file)
	if err != nil {
		return "", fmt.Errorf("unknown prompt template %q", name)
	}
	return string(data), nil
}

// Render loads name and substitutes vars into it.
func (l *Loader) Render(name string, vars map[string]string) (string, error) {
	text, err := l.Load(name)
	if err != nil {
		return "", err
	}
	return collapseBlankLines(RenderPrompt(text, vars)), nil
}

// Names lists the embedded template names.
func Names() []string {
	entries, err := embeddedTemplates.ReadDir("templates")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".md"))
	}
	sort.Strings(names)
	return names
}

// collapseBlankLines squeezes runs of blank lines left by empty variables.
func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	blank := false
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			if blank {
				continue
			}
			blank = true
			out = append(out, "")
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
