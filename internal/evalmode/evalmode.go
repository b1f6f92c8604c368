// internal/evalmode/evalmode.go
// Package evalmode names the evaluation modes shared by the runner and the sweep submitter.
package evalmode

// Mode is the evaluation flavor chosen once per model.
type Mode int

const (
	// Plain scores pairs with a reward model.
	Plain Mode = iota
	// Reference scores pairs relative to a reference model (DPO).
	Reference
	// BestOfN scores N candidate completions per prompt.
	BestOfN
)

// Select applies the precedence best-of-N > reference > plain.
func Select(bestOfN, reference bool) Mode {
	switch {
	case bestOfN:
		return BestOfN
	case reference:
		return Reference
	default:
		return Plain
	}
}

func (m Mode) String() string {
	switch m {
	case Plain:
		return "plain"
	case Reference:
		return "reference"
	case BestOfN:
		return "best-of-n"
	default:
		return "unknown"
	}
}

// Script is the evaluation entry point run inside a cluster job for this mode.
func (m Mode) Script() string {
	switch m {
	case Reference:
		return "run_dpo.py"
	case BestOfN:
		return "run_bon.py"
	default:
		return "run_rm.py"
	}
}

// Group is the experiment group jobs of this mode are filed under.
func (m Mode) Group() string {
	switch m {
	case Reference:
		return "rewardbench-dpo"
	case BestOfN:
		return "rewardbench-bon"
	default:
		return "rewardbench-seq"
	}
}
