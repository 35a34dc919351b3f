package engine

// Reserved bottom-frame keys for interpreter state that must survive nested
// render calls but stay private to one render pass.
const (
	cycleStateKey  = "__cycle_state"
	counterListKey = "__counters"
	layoutOverride = "__layout"
)

// Scope is the variable environment for one render pass. Reads walk the
// local frame stack top-down and fall through to the bottom frame; the
// bottom frame is owned by the top-level render invocation and shared by
// every nested scope of the same pass, so capture/increment/decrement/cycle
// writes stay visible after an isolated snippet returns.
type Scope struct {
	bottom map[string]interface{}
	frames []map[string]interface{}
}

// NewScope builds the root scope of a render pass. globals seed the bottom
// frame; one local frame is pushed so template-level assigns never leak into
// the bottom frame.
func NewScope(globals map[string]interface{}) *Scope {
	bottom := make(map[string]interface{}, len(globals)+2)
	for k, v := range globals {
		bottom[k] = v
	}
	return &Scope{
		bottom: bottom,
		frames: []map[string]interface{}{make(map[string]interface{})},
	}
}

// Isolated returns a child scope that shares this pass's bottom frame but
// exposes only the explicitly passed variables. Used by render/section.
func (s *Scope) Isolated(vars map[string]interface{}) *Scope {
	frame := make(map[string]interface{}, len(vars))
	for k, v := range vars {
		frame[k] = v
	}
	return &Scope{
		bottom: s.bottom,
		frames: []map[string]interface{}{frame},
	}
}

// Push adds a local frame and returns it; loops and blocks use this for
// per-iteration variables.
func (s *Scope) Push() map[string]interface{} {
	frame := make(map[string]interface{})
	s.frames = append(s.frames, frame)
	return frame
}

// Pop removes the top local frame. The initial frame is never popped.
func (s *Scope) Pop() {
	if len(s.frames) > 1 {
		s.frames = s.frames[:len(s.frames)-1]
	}
}

// Lookup resolves a name against the frame stack, topmost first, then the
// bottom frame. Missing names report ok=false, never an error.
func (s *Scope) Lookup(name string) (interface{}, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if v, ok := s.frames[i][name]; ok {
			return v, true
		}
	}
	v, ok := s.bottom[name]
	return v, ok
}

// Set writes to the frame where the name is already bound, falling back to
// the topmost frame, so reassigning a variable inside a loop updates the
// binding the template actually sees.
func (s *Scope) Set(name string, v interface{}) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if _, ok := s.frames[i][name]; ok {
			s.frames[i][name] = v
			return
		}
	}
	s.frames[len(s.frames)-1][name] = v
}

// SetBottom writes to the pass's bottom frame. capture targets this so its
// result is visible to every later tag in the pass, even across render
// isolation.
func (s *Scope) SetBottom(name string, v interface{}) {
	s.bottom[name] = v
}

// cycleState returns the per-pass cycle counters, creating them on first use.
func (s *Scope) cycleState() map[string]int {
	if st, ok := s.bottom[cycleStateKey].(map[string]int); ok {
		return st
	}
	st := make(map[string]int)
	s.bottom[cycleStateKey] = st
	return st
}

// counters returns the per-pass increment/decrement counters. They live in
// their own namespace so a counter never clobbers a captured variable.
func (s *Scope) counters() map[string]int {
	if c, ok := s.bottom[counterListKey].(map[string]int); ok {
		return c
	}
	c := make(map[string]int)
	s.bottom[counterListKey] = c
	return c
}
