// Package locale resolves user-facing message strings for the session's
// language. Message catalogs are TOML files of id = "text" pairs referenced
// by the descriptor's language entries. Lookup never fails: a missing id
// falls back to the default language's catalog and finally to the id itself,
// so a sparse translation can never abort an install.
package locale

import (
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Localizer holds the active and default catalogs for one session.
type Localizer struct {
	active   map[string]string
	fallback map[string]string
}

// New builds a Localizer from the active and default language catalogs.
// Either path may be empty; an unreadable or malformed catalog is treated
// as empty.
func New(activePath, fallbackPath string) *Localizer {
	return &Localizer{
		active:   loadCatalog(activePath),
		fallback: loadCatalog(fallbackPath),
	}
}

func loadCatalog(path string) map[string]string {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var catalog map[string]string
	if err := toml.Unmarshal(data, &catalog); err != nil {
		return nil
	}
	return catalog
}

// Resolve returns the message for id in the active language, falling back to
// the default language and then to the id itself.
func (l *Localizer) Resolve(id string) string {
	if l != nil {
		if msg, ok := l.active[id]; ok {
			return msg
		}
		if msg, ok := l.fallback[id]; ok {
			return msg
		}
	}
	return id
}
