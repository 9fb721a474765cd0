package trust

import (
	"time"

	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"
)

// conditionEnv builds the CEL environment for allowlist entry conditions.
// Expressions see the evaluation inputs, nothing else: no store access, no
// side effects.
func conditionEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("channel", cel.StringType),
		cel.Variable("action", cel.StringType),
		cel.Variable("source_type", cel.StringType),
		cel.Variable("content_length", cel.IntType),
		cel.Variable("hour", cel.IntType),
	)
}

// evalCondition evaluates an entry's CEL condition against the request.
// Empty conditions pass. Compile or evaluation failures return an error; the
// gate treats that as a deny (fail closed).
func evalCondition(condition string, req *Request, now time.Time) (bool, error) {
	if condition == "" {
		return true, nil
	}

	env, err := conditionEnv()
	if err != nil {
		return false, errors.Wrap(err, "failed to create CEL environment")
	}

	celAST, issues := env.Compile(condition)
	if issues != nil && issues.Err() != nil {
		return false, errors.Wrapf(issues.Err(), "invalid condition expression: %s", condition)
	}

	prg, err := env.Program(celAST)
	if err != nil {
		return false, errors.Wrap(err, "failed to build condition program")
	}

	out, _, err := prg.Eval(map[string]any{
		"channel":        req.Channel,
		"action":         req.RequestedAction,
		"source_type":    req.SourceType,
		"content_length": int64(len(req.Content)),
		"hour":           int64(now.Hour()),
	})
	if err != nil {
		return false, errors.Wrap(err, "condition evaluation failed")
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, errors.Errorf("condition %q did not evaluate to a boolean", condition)
	}
	return result, nil
}
