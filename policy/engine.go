package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/yairfalse/kartta/telemetry"
	"github.com/yairfalse/kartta/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Engine evaluates rego protection policies before stale-node cleanup.
// Policies can only keep nodes alive; they never trigger deletions.
type Engine struct {
	logger  *telemetry.Logger
	tracer  trace.Tracer
	queries map[string]rego.PreparedEvalQuery
}

// Input is the document policies evaluate against
type Input struct {
	Node      types.Node `json:"node"`
	ProjectID string     `json:"project_id"`
	UpdateTag int64      `json:"update_tag"`
	Timestamp time.Time  `json:"timestamp"`
}

// Result is the aggregated policy decision
type Result struct {
	Decision string   `json:"decision"` // "allow" or "deny"
	Reason   string   `json:"reason"`
	Policies []string `json:"policies"` // Which policies matched
}

// Denied reports whether the node must be kept
func (r Result) Denied() bool {
	return r.Decision == "deny"
}

// NewEngine creates a protection policy engine with no policies loaded
func NewEngine() *Engine {
	return &Engine{
		logger:  telemetry.NewLogger("policy-engine"),
		tracer:  otel.Tracer("policy-engine"),
		queries: make(map[string]rego.PreparedEvalQuery),
	}
}

// Count returns the number of loaded policies
func (e *Engine) Count() int {
	return len(e.queries)
}

// LoadPolicy compiles and registers a rego policy
func (e *Engine) LoadPolicy(ctx context.Context, name string, regoCode string) error {
	ctx, span := e.tracer.Start(ctx, "policy_engine.load_policy",
		trace.WithAttributes(attribute.String("policy.name", name)))
	defer span.End()

	query := rego.New(
		rego.Query("data.kartta"),
		rego.Module(name, regoCode),
	)

	prepared, err := query.PrepareForEval(ctx)
	if err != nil {
		e.logger.WithContext(ctx).Error().
			Err(err).
			Str("policy_name", name).
			Msg("failed to compile policy")
		return fmt.Errorf("failed to compile policy %s: %w", name, err)
	}

	e.queries[name] = prepared

	e.logger.WithContext(ctx).Info().
		Str("policy_name", name).
		Msg("policy loaded")

	return nil
}

// Evaluate runs all loaded policies against the input. Any policy that
// answers "deny" wins; with no policies or no matches the node is allowed.
func (e *Engine) Evaluate(ctx context.Context, input Input) (Result, error) {
	ctx, span := e.tracer.Start(ctx, "policy_engine.evaluate",
		trace.WithAttributes(
			attribute.String("node.id", input.Node.ID),
			attribute.String("node.label", string(input.Node.Label))))
	defer span.End()

	final := Result{Decision: "allow"}

	for name, query := range e.queries {
		result, err := e.evaluatePolicy(ctx, query, input)
		if err != nil {
			e.logger.WithContext(ctx).Error().
				Err(err).
				Str("policy_name", name).
				Msg("policy evaluation failed")
			continue
		}

		if result.Decision == "" {
			continue // no match
		}

		final.Policies = append(final.Policies, name)
		if result.Decision == "deny" {
			final.Decision = "deny"
			final.Reason = result.Reason
		}
	}

	if final.Denied() {
		e.logger.WithContext(ctx).Info().
			Str("node_id", input.Node.ID).
			Str("reason", final.Reason).
			Strs("matched_policies", final.Policies).
			Msg("cleanup denied by policy")
	}

	return final, nil
}

// evaluatePolicy evaluates a single policy
func (e *Engine) evaluatePolicy(ctx context.Context, query rego.PreparedEvalQuery, input Input) (Result, error) {
	results, err := query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Result{}, fmt.Errorf("evaluation failed: %w", err)
	}

	var result Result
	for _, res := range results {
		if len(res.Expressions) == 0 {
			continue
		}
		// OPA returns arbitrary JSON shaped by the policy at runtime
		expr, ok := res.Expressions[0].Value.(map[string]interface{})
		if !ok {
			continue
		}
		if decision, ok := expr["decision"].(string); ok {
			result.Decision = decision
		}
		if reason, ok := expr["reason"].(string); ok {
			result.Reason = reason
		}
	}
	return result, nil
}
