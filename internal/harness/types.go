package harness

// Step outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// TraceEvent records the outcome of one flow step.
type TraceEvent struct {
	Step      string `json:"step"`
	Seq       int64  `json:"seq"`
	Outcome   string `json:"outcome"`
	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`
	Chart     string `json:"chart,omitempty"`

	// Compiled SQL keyed by table calculation name and additional metric
	// field id.
	TableCalculations map[string]string `json:"table_calculations,omitempty"`
	AdditionalMetrics map[string]string `json:"additional_metrics,omitempty"`

	// Fingerprint of the compiled query. Used by same_fingerprint and
	// excluded from golden snapshots.
	Fingerprint string `json:"-"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains one event per flow step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
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

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step event.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}

// Event returns the trace event of the named step.
func (r *Result) Event(step string) (TraceEvent, bool) {
	return findEvent(r.Trace, step)
}
