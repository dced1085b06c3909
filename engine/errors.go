// Package engine evaluates completion and validation rules against invoice
// documents using CEL expressions.
package engine

import (
	"errors"
	"fmt"
)

// Sentinel errors classifying rule execution failures. Every error leaving a
// single rule execution wraps exactly one of these so the processors can
// decide between failing the rule and failing the run. Configuration load
// failures are classified by the rules package (rules.ErrConfig).
var (
	// ErrCompile indicates an expression that fails CEL compilation.
	ErrCompile = errors.New("expression compile error")

	// ErrEval indicates an expression that compiled but failed at runtime.
	ErrEval = errors.New("expression evaluation error")

	// ErrPath indicates a target field path the document model cannot write.
	ErrPath = errors.New("unknown target field")

	// ErrLookup indicates a reference lookup that failed outright. Missing
	// rows fall back to defaults and do not raise this.
	ErrLookup = errors.New("lookup error")
)

func compileErr(expr string, err error) error {
	return fmt.Errorf("%w: %q: %v", ErrCompile, expr, err)
}

func evalErr(expr string, err error) error {
	return fmt.Errorf("%w: %q: %v", ErrEval, expr, err)
}

func pathErr(path string) error {
	return fmt.Errorf("%w: %q", ErrPath, path)
}
