package trust

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAllowlist serves entries keyed by contactType/contactValue.
type fakeAllowlist struct {
	entries map[string]*AllowlistEntry
	err     error
}

func (f *fakeAllowlist) FindAllowlistEntry(_ context.Context, _ int32, contactType, contactValue string) (*AllowlistEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.entries[contactType+"/"+contactValue], nil
}

func newTestGate(allowlist AllowlistStore) *Gate {
	return NewGate(allowlist, nil)
}

func TestEvaluateFirstPartyChannel(t *testing.T) {
	gate := newTestGate(&fakeAllowlist{})

	d := gate.Evaluate(context.Background(), &Request{
		UserID:          1,
		SourceType:      "session",
		SourceValue:     "sess-1",
		Channel:         "web",
		Authenticated:   true,
		RequestedAction: "device",
	})

	assert.Equal(t, ModeAct, d.Mode)
	assert.True(t, d.Allowed)
	assert.True(t, d.HasPermission("device"))
	assert.True(t, d.HasPermission("calendar"), "first-party grants all permissions")
}

func TestEvaluateUnauthenticatedFirstPartyChannelIsRead(t *testing.T) {
	gate := newTestGate(&fakeAllowlist{})

	d := gate.Evaluate(context.Background(), &Request{
		UserID:          1,
		Channel:         "web",
		Authenticated:   false,
		RequestedAction: "device",
	})

	assert.Equal(t, ModeRead, d.Mode)
	assert.False(t, d.Allowed)
	assert.Empty(t, d.Permissions)
}

func TestEvaluateAllowlistedContact(t *testing.T) {
	gate := newTestGate(&fakeAllowlist{entries: map[string]*AllowlistEntry{
		"email/mom@example.com": {
			UserID:       1,
			ContactType:  "email",
			ContactValue: "mom@example.com",
			Permissions:  []string{"calendar", "lists"},
			Label:        "Mom",
		},
	}})

	d := gate.Evaluate(context.Background(), &Request{
		UserID:          1,
		SourceType:      "email",
		SourceValue:     "mom@example.com",
		Channel:         "email",
		RequestedAction: "calendar",
	})

	assert.Equal(t, ModeAct, d.Mode)
	assert.True(t, d.Allowed)
	assert.Equal(t, "Mom", d.Label)
	assert.True(t, d.HasPermission("calendar"))
	assert.False(t, d.HasPermission("device"))
}

func TestEvaluateUngrantedPermissionIsRead(t *testing.T) {
	gate := newTestGate(&fakeAllowlist{entries: map[string]*AllowlistEntry{
		"email/mom@example.com": {
			Permissions: []string{"calendar"},
			Label:       "Mom",
		},
	}})

	d := gate.Evaluate(context.Background(), &Request{
		UserID:          1,
		SourceType:      "email",
		SourceValue:     "mom@example.com",
		Channel:         "email",
		RequestedAction: "device",
	})

	assert.Equal(t, ModeRead, d.Mode)
	assert.False(t, d.Allowed)
	assert.Empty(t, d.Permissions)
	assert.NotEmpty(t, d.Reason)
}

func TestEvaluateUnknownSenderIsRead(t *testing.T) {
	gate := newTestGate(&fakeAllowlist{})

	d := gate.Evaluate(context.Background(), &Request{
		UserID:          1,
		SourceType:      "email",
		SourceValue:     "stranger@example.com",
		Channel:         "email",
		RequestedAction: "device",
	})

	assert.Equal(t, ModeRead, d.Mode)
	assert.False(t, d.Allowed)
}

func TestEvaluateAllPermissionWildcard(t *testing.T) {
	gate := newTestGate(&fakeAllowlist{entries: map[string]*AllowlistEntry{
		"telegram/12345": {
			Permissions: []string{"all"},
			Label:       "Me on Telegram",
		},
	}})

	d := gate.Evaluate(context.Background(), &Request{
		UserID:          1,
		SourceType:      "telegram",
		SourceValue:     "12345",
		Channel:         "telegram",
		RequestedAction: "journal",
	})

	assert.Equal(t, ModeAct, d.Mode)
	assert.True(t, d.HasPermission("journal"))
}

func TestEvaluateLookupErrorFailsClosed(t *testing.T) {
	gate := newTestGate(&fakeAllowlist{err: errors.New("store unavailable")})

	d := gate.Evaluate(context.Background(), &Request{
		UserID:          1,
		SourceType:      "email",
		SourceValue:     "mom@example.com",
		Channel:         "email",
		RequestedAction: "calendar",
	})

	// Never raises; degrades to READ.
	assert.Equal(t, ModeRead, d.Mode)
	assert.False(t, d.Allowed)
	assert.Empty(t, d.Permissions)
}

func TestEvaluateConditionRestrictsEntry(t *testing.T) {
	gate := newTestGate(&fakeAllowlist{entries: map[string]*AllowlistEntry{
		"email/assistant@example.com": {
			Permissions: []string{"calendar"},
			Label:       "Work assistant",
			Condition:   `channel == "email" && action == "calendar"`,
		},
		"email/short@example.com": {
			Permissions: []string{"calendar"},
			Label:       "Short only",
			Condition:   `content_length < 10`,
		},
	}})

	d := gate.Evaluate(context.Background(), &Request{
		UserID: 1, SourceType: "email", SourceValue: "assistant@example.com",
		Channel: "email", RequestedAction: "calendar",
	})
	assert.Equal(t, ModeAct, d.Mode)

	d = gate.Evaluate(context.Background(), &Request{
		UserID: 1, SourceType: "email", SourceValue: "short@example.com",
		Channel: "email", RequestedAction: "calendar",
		Content: "this message is definitely longer than ten characters",
	})
	assert.Equal(t, ModeRead, d.Mode, "unmet condition denies the entry")
}

func TestEvaluateBrokenConditionFailsClosed(t *testing.T) {
	gate := newTestGate(&fakeAllowlist{entries: map[string]*AllowlistEntry{
		"email/x@example.com": {
			Permissions: []string{"calendar"},
			Condition:   `this is not CEL`,
		},
	}})

	d := gate.Evaluate(context.Background(), &Request{
		UserID: 1, SourceType: "email", SourceValue: "x@example.com",
		Channel: "email", RequestedAction: "calendar",
	})
	assert.Equal(t, ModeRead, d.Mode)
}

func TestReadDecisionInvariant(t *testing.T) {
	gate := newTestGate(&fakeAllowlist{})

	d := gate.Evaluate(context.Background(), &Request{
		UserID: 1, SourceType: "sms", SourceValue: "+15550001111",
		Channel: "sms", RequestedAction: "device",
	})

	// mode=READ implies allowed=false and permissions=∅.
	require.Equal(t, ModeRead, d.Mode)
	assert.False(t, d.Allowed)
	assert.Empty(t, d.Permissions)
	assert.False(t, d.HasPermission("device"))
}

func TestContentSummaryTruncated(t *testing.T) {
	gate := newTestGate(&fakeAllowlist{})

	long := make([]rune, 500)
	for i := range long {
		long[i] = 'a'
	}
	d := gate.Evaluate(context.Background(), &Request{
		UserID: 1, SourceType: "email", SourceValue: "x", Channel: "email",
		Content: string(long), RequestedAction: "device",
	})

	assert.LessOrEqual(t, len([]rune(d.ContentSummary)), 123)
}
