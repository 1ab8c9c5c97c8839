package notify

import (
	"fmt"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"

	"github.com/roach88/comande/internal/model"
)

// Notice is a lifecycle event offered to the push channel.
type Notice struct {
	Kind     string
	OrderID  int
	Table    string
	Status   model.Status
	Device   string
	Message  string
	Severity Severity
}

func (n Notice) severity() Severity {
	if n.Severity == "" {
		return SeveritySuccess
	}
	return n.Severity
}

func (n Notice) env() map[string]any {
	return map[string]any{
		"kind":    n.Kind,
		"order":   n.OrderID,
		"table":   n.Table,
		"status":  string(n.Status),
		"device":  n.Device,
		"message": n.Message,
	}
}

// PushRule is a boolean expr-lang expression over a notice, for example
//
//	status == "ready" || table startsWith "Terrazza"
//
// Variables: kind, order, table, status, device, message.
type PushRule struct {
	source  string
	program *exprvm.Program
}

// CompileRule compiles source. Unknown variables and non-boolean results
// are compile errors.
func CompileRule(source string) (*PushRule, error) {
	if source == "" {
		return nil, fmt.Errorf("push rule must not be empty")
	}
	program, err := exprlang.Compile(source,
		exprlang.Env(Notice{}.env()),
		exprlang.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("compile push rule %q: %w", source, err)
	}
	return &PushRule{source: source, program: program}, nil
}

// Allow evaluates the rule for n.
func (r *PushRule) Allow(n Notice) (bool, error) {
	out, err := exprlang.Run(r.program, n.env())
	if err != nil {
		return false, fmt.Errorf("evaluate push rule %q: %w", r.source, err)
	}
	ok, _ := out.(bool)
	return ok, nil
}

// String returns the rule source.
func (r *PushRule) String() string {
	return r.source
}
