// Package selection tracks which companies are selected for screening and
// for deep analysis, and derives cost estimates from the active selection.
package selection

import (
	"sort"
	"sync"

	"github.com/sells-group/dealflow-cli/internal/cost"
	"github.com/sells-group/dealflow-cli/internal/model"
)

// State holds the two independent selection sets and the active analysis
// mode. Selection sets are unordered orgnr sets; toggles are symmetric and
// idempotent under repeated identical application.
type State struct {
	mu        sync.Mutex
	mode      model.AnalysisMode
	screening map[string]struct{}
	deep      map[string]struct{}
}

// New returns an empty selection state in screening mode.
func New() *State {
	return &State{
		mode:      model.ModeScreening,
		screening: make(map[string]struct{}),
		deep:      make(map[string]struct{}),
	}
}

// Mode returns the active analysis mode.
func (s *State) Mode() model.AnalysisMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode switches the analysis mode. Entering deep mode clears the
// screening-candidate set, which is no longer meaningful there; the
// deep-dive set survives every mode switch and is only cleared by Reset.
func (s *State) SetMode(mode model.AnalysisMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mode == s.mode {
		return
	}
	s.mode = mode
	if mode == model.ModeDeep {
		s.screening = make(map[string]struct{})
	}
}

// ToggleScreening adds the orgnr to the screening set if absent, removes it
// if present. Returns whether the company is selected afterwards.
func (s *State) ToggleScreening(orgnr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return toggle(s.screening, orgnr)
}

// ToggleDeep adds the orgnr to the deep-dive set if absent, removes it if
// present. Returns whether the company is selected afterwards.
func (s *State) ToggleDeep(orgnr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return toggle(s.deep, orgnr)
}

func toggle(set map[string]struct{}, orgnr string) bool {
	if _, ok := set[orgnr]; ok {
		delete(set, orgnr)
		return false
	}
	set[orgnr] = struct{}{}
	return true
}

// Screening returns the screening selection, sorted for determinism.
func (s *State) Screening() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.screening)
}

// Deep returns the deep-dive selection, sorted for determinism.
func (s *State) Deep() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.deep)
}

// Counts returns the sizes of the screening and deep selections.
func (s *State) Counts() (screening, deep int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.screening), len(s.deep)
}

// EstimateCost returns the cost of submitting the current selection in the
// active mode. O(1); recomputed on every call, never cached.
func (s *State) EstimateCost(calc *cost.Calculator) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == model.ModeDeep {
		return calc.Deep(len(s.deep))
	}
	return calc.Screening(len(s.screening))
}

// Reset clears both selection sets and returns to screening mode.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = model.ModeScreening
	s.screening = make(map[string]struct{})
	s.deep = make(map[string]struct{})
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
