package properties

import (
	"sort"
	"sync"

	"github.com/AaronLay10/TitanMedia/internal/apperr"
)

// Editor stages property edits for one source.
//
// Staged values are never shown as current. Commit sends every staged key that
// differs from the current value in a single call; only when that call succeeds
// do the staged values become current.
type Editor struct {
	mu      sync.Mutex
	scene   string
	source  string
	schema  Schema
	current map[string]Value
	staged  map[string]Value
}

// NewEditor builds an editor from a schema and the source's current settings.
// Settings that cannot be read as their declared kind fall back to the
// descriptor default.
func NewEditor(scene, source string, schema Schema, settings map[string]any) *Editor {
	e := &Editor{
		scene:   scene,
		source:  source,
		schema:  schema,
		current: map[string]Value{},
		staged:  map[string]Value{},
	}
	for _, d := range schema {
		raw, ok := settings[d.Name]
		if !ok {
			raw = d.Default
		}
		if raw == nil {
			continue
		}
		if v, err := FromRaw(d.Kind, raw); err == nil {
			e.current[d.Name] = v
		} else if d.Default != nil {
			if v, err := FromRaw(d.Kind, d.Default); err == nil {
				e.current[d.Name] = v
			}
		}
	}
	return e
}

// Scene returns the scene of the edited source.
func (e *Editor) Scene() string { return e.scene }

// Source returns the edited source name.
func (e *Editor) Source() string { return e.source }

// Schema returns the property schema.
func (e *Editor) Schema() Schema { return e.schema }

// Current returns the committed value of a property.
func (e *Editor) Current(name string) (Value, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.current[name]
	return v, ok
}

// Values returns a copy of all committed values.
func (e *Editor) Values() map[string]Value {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]Value, len(e.current))
	for k, v := range e.current {
		out[k] = v
	}
	return out
}

// Stage records an edit after validating it against the schema.
func (e *Editor) Stage(name string, v Value) error {
	d, ok := e.schema.Lookup(name)
	if !ok {
		return apperr.New(apperr.UnknownProperty, "properties.stage", "unknown property %q", name)
	}
	if err := d.Validate(v); err != nil {
		return err
	}
	e.mu.Lock()
	e.staged[name] = v
	e.mu.Unlock()
	return nil
}

// StageRaw parses a settings-bag value and stages it.
func (e *Editor) StageRaw(name string, raw any) error {
	v, err := e.schema.Parse(name, raw)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.staged[name] = v
	e.mu.Unlock()
	return nil
}

// Pending returns the staged property names in sorted order.
func (e *Editor) Pending() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.staged))
	for k := range e.staged {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Changes returns the settings bag that a commit would send: the staged keys
// whose value differs from the current one.
func (e *Editor) Changes() map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.changesLocked()
}

func (e *Editor) changesLocked() map[string]any {
	out := map[string]any{}
	for k, v := range e.staged {
		if cur, ok := e.current[k]; ok && Equal(cur, v) {
			continue
		}
		out[k] = v.Raw()
	}
	return out
}

// Discard drops all staged edits.
func (e *Editor) Discard() {
	e.mu.Lock()
	e.staged = map[string]Value{}
	e.mu.Unlock()
}

// Commit sends the changes through apply as one unit. On success the staged
// values become current; on failure nothing changes and the staged edits stay
// available for correction. A commit with no changes does not call apply.
func (e *Editor) Commit(apply func(settings map[string]any) error) error {
	e.mu.Lock()
	changes := e.changesLocked()
	staged := make(map[string]Value, len(e.staged))
	for k, v := range e.staged {
		staged[k] = v
	}
	e.mu.Unlock()

	if len(changes) == 0 {
		e.Discard()
		return nil
	}
	if err := apply(changes); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for k, v := range staged {
		e.current[k] = v
		if cur, ok := e.staged[k]; ok && Equal(cur, v) {
			delete(e.staged, k)
		}
	}
	return nil
}
