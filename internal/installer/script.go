// Package installer implements the Installer Script Builder (spec.md
// section 4.5, component C5): an append-only sequence of typed DSL
// primitives (spec.md section 6.2), a cumulative progress accumulator,
// and sub-script splicing. The Instruction/marker-interface shape
// mirrors the teacher's Stage{Type, Options} +
// isStageOptions()-style pattern (internal/osbuild/systemd_journald_stage.go).
package installer

// Instruction is any DSL primitive. The unexported marker method keeps
// the instruction set closed to this package, the same discipline the
// teacher uses for its osbuild Stage options types.
type Instruction interface {
	isInstruction()
}

// Script is the append-only instruction sequence for one composition. A
// Script may also serve as a temporary sub-script (spec.md 4.5: "the
// builder also supports a temporary sub-script... so permissions are
// applied only after symlinks are in place"); AppendScript splices one
// Script's instructions into another in order.
type Script struct {
	instructions []Instruction
	curProgress  float64
}

// New returns an empty script with zero cumulative progress.
func New() *Script { return &Script{} }

// Instructions returns the accumulated sequence, for archive assembly or
// testing.
func (s *Script) Instructions() []Instruction { return s.instructions }

// Progress returns the current cumulative progress value in [0, 1].
func (s *Script) Progress() float64 { return s.curProgress }

func (s *Script) append(i Instruction) {
	s.instructions = append(s.instructions, i)
}

// AppendScript merges a sub-script's instructions into s, in order. The
// sub-script's own progress accumulator is not merged: progress budgets
// are attributed to whichever script owns the ShowProgress/SetProgress
// calls (spec.md 4.5's splice use case keeps permission-phase
// instructions separate from the progress-bearing main script).
func (s *Script) AppendScript(sub *Script) {
	s.append(AppendScriptInstr{Sub: sub.instructions})
}
