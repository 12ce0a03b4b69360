package billing

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// DefaultQuotaExpression admits a create when the quota is unlimited (-1) or
// the current count is under the limit.
const DefaultQuotaExpression = "limit < 0 || count < limit"

// QuotaChecker evaluates an entity-limit predicate compiled from a CEL
// expression over (count, limit). This is the extension point for plan
// quotas: deployments swap the expression without touching the executor.
type QuotaChecker struct {
	program cel.Program
}

// NewQuotaChecker compiles the expression. An empty expression uses
// DefaultQuotaExpression.
func NewQuotaChecker(expression string) (*QuotaChecker, error) {
	if expression == "" {
		expression = DefaultQuotaExpression
	}

	env, err := cel.NewEnv(
		cel.Variable("count", cel.IntType),
		cel.Variable("limit", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("billing: quota env: %w", err)
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("billing: quota expression: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("billing: quota expression must yield bool, got %s", ast.OutputType())
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("billing: quota program: %w", err)
	}
	return &QuotaChecker{program: program}, nil
}

// Allows reports whether a create is admitted given the current count and
// the tier's limit.
func (q *QuotaChecker) Allows(count, limit int64) (bool, error) {
	out, _, err := q.program.Eval(map[string]any{
		"count": count,
		"limit": limit,
	})
	if err != nil {
		return false, fmt.Errorf("billing: quota eval: %w", err)
	}
	allowed, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("billing: quota yielded %T, want bool", out.Value())
	}
	return allowed, nil
}
