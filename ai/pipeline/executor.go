package pipeline

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/kestrelhq/kestrel/ai/intent"
	"github.com/kestrelhq/kestrel/ai/routing"
)

// Executor performs the side effect behind a resolved intent and returns a
// user-facing confirmation.
type Executor interface {
	Execute(ctx context.Context, turn *Turn, res *routing.Result) (string, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, turn *Turn, res *routing.Result) (string, error)

func (f ExecutorFunc) Execute(ctx context.Context, turn *Turn, res *routing.Result) (string, error) {
	return f(ctx, turn, res)
}

// ExecutorRegistry maps side-effecting intents to their executors.
type ExecutorRegistry struct {
	mu        sync.RWMutex
	executors map[intent.Intent]Executor
}

// NewExecutorRegistry creates an empty executor registry.
func NewExecutorRegistry() *ExecutorRegistry {
	return &ExecutorRegistry{executors: make(map[intent.Intent]Executor)}
}

// Register binds an executor to an intent, replacing any previous binding.
func (r *ExecutorRegistry) Register(it intent.Intent, exec Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[it] = exec
}

// Get returns the executor for an intent.
func (r *ExecutorRegistry) Get(it intent.Intent) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exec, ok := r.executors[it]
	return exec, ok
}

// ValidateAgainst checks that every side-effecting intent in the registry
// has an executor. Run at startup so a missing binding fails the process
// instead of a user's request.
func (r *ExecutorRegistry) ValidateAgainst(reg *intent.Registry) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var missing []string
	for _, def := range reg.SideEffecting() {
		if _, ok := r.executors[def.Intent]; !ok {
			missing = append(missing, string(def.Intent))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return errors.Errorf("side-effecting intents without executors: %s", strings.Join(missing, ", "))
	}
	return nil
}
