package manifest

import (
	"fmt"
	"strings"

	"github.com/setupforge/setupforge/internal/messages"
)

// maxExpansionDepth bounds placeholder recursion. Any legitimate descriptor
// resolves in a handful of hops; the bound is a backstop for cycles routed
// through values the DFS cannot attribute to a named variable.
const maxExpansionDepth = 16

// builtinNames lists placeholders derived from [setup] fields.
var builtinNames = []string{"app", "version", "publisher", "group", "root"}

// expandPlaceholders substitutes {name} references throughout the manifest.
// Substitution sources are the built-ins plus [defines] entries; a reference
// cycle fails with ErrCyclicReference before any plan is built.
func (m *Manifest) expandPlaceholders() error {
	vars := map[string]string{
		"app":       m.Setup.Name,
		"version":   m.Setup.Version,
		"publisher": m.Setup.Publisher,
		"group":     m.Setup.DefaultGroupName,
		"root":      m.Setup.DefaultDir,
	}
	for name, value := range m.Defines {
		if _, reserved := vars[name]; reserved {
			return fmt.Errorf("%w: "+messages.ManifestReservedDefineFmt, ErrValidation, name)
		}
		vars[name] = value
	}

	exp := &expander{vars: vars, state: make(map[string]visitState, len(vars))}
	for _, name := range builtinNames {
		resolved, err := exp.resolve(name)
		if err != nil {
			return err
		}
		vars[name] = resolved
	}
	for name := range m.Defines {
		resolved, err := exp.resolve(name)
		if err != nil {
			return err
		}
		vars[name] = resolved
	}

	fields := []*string{
		&m.Setup.DefaultDir,
		&m.Setup.DefaultGroupName,
		&m.Setup.IconPath,
	}
	for i := range m.Languages {
		fields = append(fields, &m.Languages[i].MessagesPath)
	}
	for i := range m.Tasks {
		fields = append(fields, &m.Tasks[i].Description, &m.Tasks[i].Group)
	}
	for i := range m.Files {
		fields = append(fields, &m.Files[i].Source, &m.Files[i].DestDir)
	}
	for i := range m.Icons {
		fields = append(fields, &m.Icons[i].Name, &m.Icons[i].Target)
	}
	for i := range m.Run {
		fields = append(fields, &m.Run[i].Target, &m.Run[i].Description)
	}
	for i := range m.InstallDelete.Scope {
		fields = append(fields, &m.InstallDelete.Scope[i])
	}
	for _, field := range fields {
		expanded, err := exp.expand(*field, 0)
		if err != nil {
			return err
		}
		*field = expanded
	}

	// Built-ins that were expanded in place above must land back in Setup.
	m.Setup.Name = vars["app"]
	m.Setup.Publisher = vars["publisher"]
	return nil
}

type visitState int

const (
	stateUnvisited visitState = iota
	stateInProgress
	stateDone
)

type expander struct {
	vars     map[string]string
	state    map[string]visitState
	resolved map[string]string
	stack    []string
}

// resolve expands the named variable, detecting reference cycles via DFS.
func (e *expander) resolve(name string) (string, error) {
	switch e.state[name] {
	case stateDone:
		return e.resolved[name], nil
	case stateInProgress:
		cycle := append(append([]string{}, e.stack...), name)
		return "", fmt.Errorf("%w: "+messages.ManifestCyclicReferenceFmt, ErrCyclicReference, strings.Join(cycle, " -> "))
	}
	e.state[name] = stateInProgress
	e.stack = append(e.stack, name)
	expanded, err := e.expand(e.vars[name], 0)
	e.stack = e.stack[:len(e.stack)-1]
	if err != nil {
		return "", err
	}
	if e.resolved == nil {
		e.resolved = make(map[string]string, len(e.vars))
	}
	e.state[name] = stateDone
	e.resolved[name] = expanded
	return expanded, nil
}

// expand substitutes every {name} reference in value.
func (e *expander) expand(value string, depth int) (string, error) {
	if !strings.Contains(value, "{") {
		return value, nil
	}
	var b strings.Builder
	b.Grow(len(value))
	for i := 0; i < len(value); {
		open := strings.IndexByte(value[i:], '{')
		if open < 0 {
			b.WriteString(value[i:])
			break
		}
		open += i
		closeIdx := strings.IndexByte(value[open:], '}')
		if closeIdx < 0 {
			b.WriteString(value[i:])
			break
		}
		closeIdx += open
		name := value[open+1 : closeIdx]
		b.WriteString(value[i:open])
		if !isPlaceholderName(name) {
			// Not a placeholder (e.g. a literal brace pair); keep verbatim.
			b.WriteString(value[open : closeIdx+1])
			i = closeIdx + 1
			continue
		}
		if depth >= maxExpansionDepth {
			return "", fmt.Errorf("%w: "+messages.ManifestExpansionTooDeepFmt, ErrCyclicReference, maxExpansionDepth, name)
		}
		if _, ok := e.vars[name]; !ok {
			return "", fmt.Errorf("%w: "+messages.ManifestUnknownPlaceholderFmt, ErrValidation, name, value)
		}
		resolved, err := e.resolve(name)
		if err != nil {
			return "", err
		}
		// Resolved values are fully expanded; re-expansion only guards values
		// assembled outside resolve.
		expanded, err := e.expand(resolved, depth+1)
		if err != nil {
			return "", err
		}
		b.WriteString(expanded)
		i = closeIdx + 1
	}
	return b.String(), nil
}

// isPlaceholderName reports whether name is a valid placeholder identifier.
func isPlaceholderName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return true
}
