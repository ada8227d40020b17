package certificate

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// DefaultGradeRule awards Grade A strictly above 85.
const DefaultGradeRule = "trust_score > 85"

// GradeRule is a compiled CEL predicate over trust_score. True means Grade A,
// false means Grade B; there are no other tiers.
type GradeRule struct {
	expr string
	prg  cel.Program
}

// NewGradeRule compiles expr. It must evaluate to a bool for any int trust_score.
func NewGradeRule(expr string) (*GradeRule, error) {
	env, err := cel.NewEnv(cel.Variable("trust_score", cel.IntType))
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("grade rule %q: %w", expr, iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) && !ast.OutputType().IsExactType(cel.DynType) {
		return nil, fmt.Errorf("grade rule %q: result is %s, want bool", expr, ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("grade rule %q: %w", expr, err)
	}

	r := &GradeRule{expr: expr, prg: prg}
	if _, err := r.passes(0); err != nil {
		return nil, err
	}
	return r, nil
}

// MustDefaultGradeRule returns the compiled default rule.
func MustDefaultGradeRule() *GradeRule {
	r, err := NewGradeRule(DefaultGradeRule)
	if err != nil {
		panic(err)
	}
	return r
}

// DefaultBoundaryLow and DefaultBoundaryHigh straddle the default A/B cut.
const (
	DefaultBoundaryLow  = 85
	DefaultBoundaryHigh = 86
)

// MatchesDefaultBoundary reports whether r grades 85 as B and 86 as A, as the
// default rule does.
func (r *GradeRule) MatchesDefaultBoundary() bool {
	low, err := r.Grade(DefaultBoundaryLow)
	if err != nil {
		return false
	}
	high, err := r.Grade(DefaultBoundaryHigh)
	if err != nil {
		return false
	}
	return low == GradeB && high == GradeA
}

// String returns the rule source.
func (r *GradeRule) String() string { return r.expr }

// Grade maps score to a grade label.
func (r *GradeRule) Grade(score int) (string, error) {
	ok, err := r.passes(score)
	if err != nil {
		return "", err
	}
	if ok {
		return GradeA, nil
	}
	return GradeB, nil
}

func (r *GradeRule) passes(score int) (bool, error) {
	out, _, err := r.prg.Eval(map[string]any{"trust_score": int64(score)})
	if err != nil {
		return false, fmt.Errorf("grade rule %q: %w", r.expr, err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("grade rule %q: result is %T, want bool", r.expr, out.Value())
	}
	return b, nil
}
