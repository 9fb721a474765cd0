// Package intent defines the assistant's intent vocabulary and the registry
// that maps each intent to its semantic tags, context policy, and execution
// permission.
package intent

// Intent represents the type of user intent.
type Intent string

const (
	IntentDeviceControl  Intent = "device_control"
	IntentTimeQuery      Intent = "time_query"
	IntentWeatherQuery   Intent = "weather_query"
	IntentCalendarQuery  Intent = "calendar_query"
	IntentCalendarCreate Intent = "calendar_create"
	IntentListQuery      Intent = "list_query"
	IntentListAdd        Intent = "list_add"
	IntentJournalCreate  Intent = "journal_create"
	IntentMemoryRecall   Intent = "memory_recall"
	IntentSmalltalk      Intent = "smalltalk"
	IntentUnknown        Intent = "unknown"
)

// Tag is a semantic marker driving context retrieval, sampling temperature,
// and confidence estimation.
type Tag string

const (
	// TagNoContext marks intents that never need context retrieval
	// (pure device toggles, clock queries).
	TagNoContext Tag = "no_context"
	// TagDataFetch marks intents that always need context, even when a
	// tier 0 rule resolves them.
	TagDataFetch Tag = "data_fetch"
	// TagFactual caps sampling temperature at 0.3.
	TagFactual Tag = "factual"
	// TagToolInvocation clamps sampling temperature to [0, 0.5].
	TagToolInvocation Tag = "tool_invocation"
	// TagConversational floors sampling temperature at 0.6.
	TagConversational Tag = "conversational"
)

// Permission names granted through the allowlist and required by executors.
const (
	PermissionAll      = "all"
	PermissionDevice   = "device"
	PermissionCalendar = "calendar"
	PermissionLists    = "lists"
	PermissionJournal  = "journal"
	PermissionRead     = "read"
)

// Definition holds the routing-relevant configuration of a single intent.
type Definition struct {
	Intent     Intent
	Tags       []Tag
	SideEffect bool   // needs an executor and an ACT trust decision
	Permission string // permission required to execute, empty for read-only intents
}

// HasTag reports whether the definition carries the given tag.
func (d Definition) HasTag(tag Tag) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// NeedsContext reports whether resolving this intent requires context
// retrieval on its own account. Memory cues in the input can still force
// retrieval regardless of this value.
func (d Definition) NeedsContext() bool {
	if d.HasTag(TagNoContext) {
		return false
	}
	return d.HasTag(TagDataFetch)
}
