package intent

import (
	"sync"

	"github.com/pkg/errors"
)

// Registry manages intent definitions. New intents are registered, not
// hardcoded into the classifiers, so adding one never touches routing code.
type Registry struct {
	mu   sync.RWMutex
	defs map[Intent]Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[Intent]Definition)}
}

// Register adds or replaces an intent definition.
func (r *Registry) Register(def Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.Intent] = def
}

// Get returns the definition for an intent.
func (r *Registry) Get(it Intent) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[it]
	return def, ok
}

// Definitions returns a snapshot of all registered definitions.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, 0, len(r.defs))
	for _, def := range r.defs {
		out = append(out, def)
	}
	return out
}

// SideEffecting returns every intent that requires an executor.
func (r *Registry) SideEffecting() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Definition
	for _, def := range r.defs {
		if def.SideEffect {
			out = append(out, def)
		}
	}
	return out
}

// RequiredPermission returns the permission an intent needs to execute.
// Read-only intents need PermissionRead.
func (r *Registry) RequiredPermission(it Intent) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if def, ok := r.defs[it]; ok && def.Permission != "" {
		return def.Permission
	}
	return PermissionRead
}

// Validate checks the registry for inconsistent definitions.
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for it, def := range r.defs {
		if def.SideEffect && def.Permission == "" {
			return errors.Errorf("side-effecting intent %q has no required permission", it)
		}
		if def.HasTag(TagNoContext) && def.HasTag(TagDataFetch) {
			return errors.Errorf("intent %q tagged both no_context and data_fetch", it)
		}
	}
	return nil
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the built-in intent set shared by the classifiers
// and the pipeline.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
		for _, def := range builtinDefinitions() {
			defaultRegistry.Register(def)
		}
	})
	return defaultRegistry
}

func builtinDefinitions() []Definition {
	return []Definition{
		{
			Intent:     IntentDeviceControl,
			Tags:       []Tag{TagNoContext, TagToolInvocation},
			SideEffect: true,
			Permission: PermissionDevice,
		},
		{
			Intent: IntentTimeQuery,
			Tags:   []Tag{TagNoContext, TagFactual},
		},
		{
			Intent: IntentWeatherQuery,
			Tags:   []Tag{TagDataFetch, TagFactual},
		},
		{
			Intent: IntentCalendarQuery,
			Tags:   []Tag{TagDataFetch, TagFactual},
		},
		{
			Intent:     IntentCalendarCreate,
			Tags:       []Tag{TagToolInvocation},
			SideEffect: true,
			Permission: PermissionCalendar,
		},
		{
			Intent: IntentListQuery,
			Tags:   []Tag{TagDataFetch, TagFactual},
		},
		{
			Intent:     IntentListAdd,
			Tags:       []Tag{TagToolInvocation},
			SideEffect: true,
			Permission: PermissionLists,
		},
		{
			Intent:     IntentJournalCreate,
			Tags:       []Tag{TagToolInvocation},
			SideEffect: true,
			Permission: PermissionJournal,
		},
		{
			Intent: IntentMemoryRecall,
			Tags:   []Tag{TagDataFetch, TagConversational},
		},
		{
			Intent: IntentSmalltalk,
			Tags:   []Tag{TagNoContext, TagConversational},
		},
		{
			Intent: IntentUnknown,
			Tags:   []Tag{TagConversational},
		},
	}
}
