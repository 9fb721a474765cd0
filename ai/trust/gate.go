package trust

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// AllowlistStore looks up trusted contact identities. Read-only to this
// package; nil entry means the pair is not allowlisted.
type AllowlistStore interface {
	FindAllowlistEntry(ctx context.Context, userID int32, contactType, contactValue string) (*AllowlistEntry, error)
}

// Request carries everything the gate may consider. The gate is a pure
// function of this request plus the allowlist: no cross-call memory, nothing
// cached.
type Request struct {
	UserID      int32
	SourceType  string // "session", "email", "telegram", "sms", ...
	SourceValue string // session ID, email address, platform user ID
	Channel     string // "web", "app", "voice", "telegram", "email", ...
	// Authenticated is set by the transport when the caller presented a
	// valid first-party credential. Only then does the channel count as
	// first-party.
	Authenticated   bool
	Content         string
	RequestedAction string
}

// firstPartyChannels are the assistant's own authenticated surfaces.
var firstPartyChannels = map[string]bool{
	"web":   true,
	"app":   true,
	"voice": true,
}

// Gate evaluates message provenance into an ACT or READ decision.
type Gate struct {
	allowlist AllowlistStore
	audit     *AuditWriter
	now       func() time.Time
}

// NewGate creates a trust gate. audit may be nil (evaluations are then not
// persisted, e.g. in tests).
func NewGate(allowlist AllowlistStore, audit *AuditWriter) *Gate {
	return &Gate{
		allowlist: allowlist,
		audit:     audit,
		now:       time.Now,
	}
}

// Evaluate classifies one message's provenance. It never returns an error:
// every failure path degrades to READ, and every evaluation (success or
// failure) is appended to the audit log.
func (g *Gate) Evaluate(ctx context.Context, req *Request) *Decision {
	decision := g.evaluate(ctx, req)
	if g.audit != nil {
		g.audit.Append(decision)
	}
	return decision
}

func (g *Gate) evaluate(ctx context.Context, req *Request) *Decision {
	base := &Decision{
		ID:              newDecisionID(),
		UserID:          req.UserID,
		SourceType:      req.SourceType,
		SourceValue:     req.SourceValue,
		Channel:         req.Channel,
		ContentSummary:  summarize(req.Content),
		ActionRequested: req.RequestedAction,
		Timestamp:       g.now(),
	}

	// Authenticated first-party surfaces act with full permissions.
	if req.Authenticated && firstPartyChannels[req.Channel] {
		base.Mode = ModeAct
		base.Allowed = true
		base.Permissions = []string{"all"}
		base.Label = "first-party"
		base.Reason = fmt.Sprintf("authenticated first-party channel %q", req.Channel)
		return base
	}

	if g.allowlist == nil {
		return g.deny(base, "no allowlist configured for this deployment")
	}

	entry, err := g.allowlist.FindAllowlistEntry(ctx, req.UserID, req.SourceType, req.SourceValue)
	if err != nil {
		// Fail closed: a broken lookup is indistinguishable from an
		// unknown sender.
		slog.Warn("allowlist lookup failed, failing closed",
			"user_id", req.UserID,
			"source_type", req.SourceType,
			"error", err)
		return g.deny(base, "trust could not be verified")
	}
	if entry == nil {
		return g.deny(base, fmt.Sprintf("%s %q is not on the allowlist", req.SourceType, req.SourceValue))
	}

	base.Label = entry.Label

	if !permissionGranted(entry.Permissions, req.RequestedAction) {
		return g.deny(base, fmt.Sprintf("contact %q is not granted permission %q", entry.Label, req.RequestedAction))
	}

	ok, err := evalCondition(entry.Condition, req, base.Timestamp)
	if err != nil {
		slog.Warn("allowlist condition failed, failing closed",
			"user_id", req.UserID,
			"label", entry.Label,
			"error", err)
		return g.deny(base, fmt.Sprintf("condition for contact %q could not be evaluated", entry.Label))
	}
	if !ok {
		return g.deny(base, fmt.Sprintf("condition for contact %q not met", entry.Label))
	}

	base.Mode = ModeAct
	base.Allowed = true
	base.Permissions = append([]string(nil), entry.Permissions...)
	base.Reason = fmt.Sprintf("allowlisted %s with permission %q", req.SourceType, req.RequestedAction)
	return base
}

// deny finalizes a READ decision, holding the invariant that READ carries no
// permissions.
func (g *Gate) deny(base *Decision, reason string) *Decision {
	base.Mode = ModeRead
	base.Allowed = false
	base.Permissions = nil
	base.Reason = reason
	return base
}

func permissionGranted(granted []string, requested string) bool {
	if requested == "" {
		return false
	}
	for _, p := range granted {
		if p == requested || p == "all" {
			return true
		}
	}
	return false
}

func summarize(content string) string {
	const maxLen = 120
	runes := []rune(content)
	if len(runes) <= maxLen {
		return content
	}
	return string(runes[:maxLen]) + "..."
}
