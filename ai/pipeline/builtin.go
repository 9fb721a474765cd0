package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/kestrelhq/kestrel/ai/intent"
	"github.com/kestrelhq/kestrel/ai/routing"
)

// BuiltinExecutors returns an executor registry covering every builtin
// side-effecting intent with slot-aware confirmations. Deployments replace
// individual entries with real integrations (home automation bridge,
// calendar backend) via Register.
func BuiltinExecutors() *ExecutorRegistry {
	r := NewExecutorRegistry()
	r.Register(intent.IntentDeviceControl, ExecutorFunc(executeDeviceControl))
	r.Register(intent.IntentCalendarCreate, ExecutorFunc(executeCalendarCreate))
	r.Register(intent.IntentListAdd, ExecutorFunc(executeListAdd))
	r.Register(intent.IntentJournalCreate, ExecutorFunc(executeJournalCreate))
	return r
}

func executeDeviceControl(_ context.Context, _ *Turn, res *routing.Result) (string, error) {
	device := res.Slots["device"]
	if device == "" {
		device = "the device"
	}
	if room := res.Slots["room"]; room != "" {
		device = fmt.Sprintf("the %s %s", room, strings.TrimPrefix(device, "the "))
	}
	switch res.Slots["state"] {
	case "on":
		return fmt.Sprintf("Okay, %s is on.", device), nil
	case "off":
		return fmt.Sprintf("Okay, %s is off.", device), nil
	default:
		return fmt.Sprintf("Done, adjusted %s.", device), nil
	}
}

func executeCalendarCreate(_ context.Context, _ *Turn, res *routing.Result) (string, error) {
	if title := res.Slots["title"]; title != "" {
		return fmt.Sprintf("Added %q to your calendar.", title), nil
	}
	return "Added that to your calendar.", nil
}

func executeListAdd(_ context.Context, _ *Turn, res *routing.Result) (string, error) {
	item := res.Slots["item"]
	list := res.Slots["list"]
	switch {
	case item != "" && list != "":
		return fmt.Sprintf("Added %s to the %s list.", item, list), nil
	case item != "":
		return fmt.Sprintf("Added %s to your list.", item), nil
	default:
		return "Added that to your list.", nil
	}
}

func executeJournalCreate(_ context.Context, _ *Turn, res *routing.Result) (string, error) {
	return "Noted in your journal.", nil
}
