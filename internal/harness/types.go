package harness

import "github.com/stage-tech/basestar-sub001/internal/ir"

// TraceEvent records one executed flow step.
type TraceEvent struct {
	Step   int        `json:"step"`
	Op     string     `json:"op"`
	Input  string     `json:"input"`
	Output ir.IRValue `json:"output,omitempty"`
	Error  string     `json:"error,omitempty"`

	// Seq is the store change sequence after a write step, zero otherwise.
	Seq int64 `json:"seq,omitempty"`
}

// toIR converts the event to an ir value for canonical serialization.
func (e TraceEvent) toIR() ir.IRObject {
	obj := ir.IRObject{
		"step":  ir.IRInt(e.Step),
		"op":    ir.IRString(e.Op),
		"input": ir.IRString(e.Input),
	}
	if e.Output != nil && !ir.IsUndefined(e.Output) {
		obj["output"] = e.Output
	}
	if e.Error != "" {
		obj["error"] = ir.IRString(e.Error)
	}
	if e.Seq != 0 {
		obj["seq"] = ir.IRInt(e.Seq)
	}
	return obj
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains one event per flow step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an event for a flow step.
func (r *Result) AddTrace(event TraceEvent) {
	r.Trace = append(r.Trace, event)
}
