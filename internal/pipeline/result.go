package pipeline

import (
	"fmt"
	"log"
	"sync"
	"time"

	"pressdesk/internal/invoke"
)

// State is the orchestrator position within one run. FAILED is absorbing
// and reachable from every non-terminal state.
type State string

const (
	StateParsing    State = "PARSING"
	StateExtracting State = "EXTRACTING"
	StateConcepting State = "CONCEPTING"
	StateDrafting   State = "DRAFTING"
	StateChecking   State = "CHECKING"
	StateDone       State = "DONE"
	StateFailed     State = "FAILED"
)

// Canonical output names within a Result.
const (
	KeyRawInput    = "raw_input"
	KeyExtraction  = "extraction"
	KeyConcept     = "concept"
	KeyArticle     = "article"
	KeyCheckReport = "check_report"
)

// RunLog collects timestamped status messages for live progress display.
// Lines are mirrored to the process log; an optional notify callback feeds
// streaming consumers as lines arrive.
type RunLog struct {
	mu     sync.Mutex
	lines  []string
	notify func(string)
	now    func() time.Time
}

func NewRunLog() *RunLog {
	return &RunLog{now: time.Now}
}

// SetNotify registers a callback invoked for every appended line. Must be
// set before the run starts; the callback runs after the log lock is
// released, so it may call back into the log.
func (l *RunLog) SetNotify(fn func(string)) {
	l.mu.Lock()
	l.notify = fn
	l.mu.Unlock()
}

func (l *RunLog) Infof(format string, args ...any)  { l.append("INFO", format, args...) }
func (l *RunLog) Warnf(format string, args ...any)  { l.append("WARNING", format, args...) }
func (l *RunLog) Errorf(format string, args ...any) { l.append("ERROR", format, args...) }

func (l *RunLog) append(level, format string, args ...any) {
	line := fmt.Sprintf("[%s] %s: %s", l.now().Format("15:04:05"), level, fmt.Sprintf(format, args...))
	log.Print(line)
	l.mu.Lock()
	l.lines = append(l.lines, line)
	fn := l.notify
	l.mu.Unlock()
	if fn != nil {
		fn(line)
	}
}

// Lines returns a copy of all lines appended so far.
func (l *RunLog) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.lines))
	copy(out, l.lines)
	return out
}

// Result is the ordered bag of named stage outputs for one run, populated
// incrementally as stages complete. Callers hold a live reference: outputs
// of finished stages stay visible even when a later stage fails.
type Result struct {
	mu      sync.Mutex
	outputs map[string]invoke.Output
	order   []string
	state   State

	Log *RunLog
}

func NewResult() *Result {
	return &Result{
		outputs: make(map[string]invoke.Output),
		Log:     NewRunLog(),
		state:   StateParsing,
	}
}

func (r *Result) Set(name string, out invoke.Output) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.outputs[name]; !ok {
		r.order = append(r.order, name)
	}
	r.outputs[name] = out
}

func (r *Result) Get(name string) (invoke.Output, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out, ok := r.outputs[name]
	return out, ok
}

// Names lists populated outputs in completion order.
func (r *Result) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Result) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

func (r *Result) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Typed accessors for the canonical stage outputs.

func (r *Result) RawInput() string {
	out, _ := r.Get(KeyRawInput)
	return out.Text
}

func (r *Result) Extraction() map[string]any {
	out, _ := r.Get(KeyExtraction)
	return out.Data
}

func (r *Result) Concept() map[string]any {
	out, _ := r.Get(KeyConcept)
	return out.Data
}

// Article returns the drafted article. Depending on the pipeline variant it
// is either free text or a structured mapping; Serialize covers both.
func (r *Result) Article() (invoke.Output, bool) {
	return r.Get(KeyArticle)
}

func (r *Result) CheckReport() string {
	out, _ := r.Get(KeyCheckReport)
	return out.Text
}
