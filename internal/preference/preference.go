// Package preference splits classification-head outputs into paired preference
// logits and scores chosen/rejected pairs against each other.
//
// A preference head of rank k emits 2k logits per sequence. The first k form u
// and the remaining k form v. Two sequences a and b are compared with the
// antisymmetric form
//
//	score(a, b) = Σ_i (u_a[i]·v_b[i] − u_b[i]·v_a[i])
//
// so score(a, b) == −score(b, a) and a positive score prefers a.
package preference

import (
	"errors"
	"fmt"

	"github.com/mwiater/prefbench/internal/util"
)

// ErrHeadWidth reports a forward pass whose output width is not twice the head rank.
var ErrHeadWidth = errors.New("classification head width must be 2*rank")

// PairedLogits holds the u and v halves of one forward pass.
type PairedLogits struct {
	U []float64
	V []float64
}

// Rank returns the number of preference dimensions.
func (p PairedLogits) Rank() int { return len(p.U) }

// Head describes a preference head with a rank fixed at construction.
type Head struct {
	rank int
}

// NewHead returns a head of the given rank.
func NewHead(rank int) (Head, error) {
	if rank < 1 {
		return Head{}, fmt.Errorf("preference rank must be >= 1, got %d", rank)
	}
	return Head{rank: rank}, nil
}

// Rank returns the head's rank k.
func (h Head) Rank() int { return h.rank }

// Width returns the number of raw logits the head emits per sequence.
func (h Head) Width() int { return 2 * h.rank }

// Split divides one raw output vector into u and v.
func (h Head) Split(raw []float64) (PairedLogits, error) {
	return Split(raw, h.rank)
}

// SplitBatch splits every row produced by a single batched forward pass.
func (h Head) SplitBatch(rows [][]float64) ([]PairedLogits, error) {
	out := make([]PairedLogits, len(rows))
	for i, row := range rows {
		pair, err := h.Split(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = pair
	}
	return out, nil
}

// Split divides raw into its first rank values (u) and the remaining rank values (v).
// Both halves alias raw; callers must not mutate it afterwards.
func Split(raw []float64, rank int) (PairedLogits, error) {
	if rank < 1 {
		return PairedLogits{}, fmt.Errorf("preference rank must be >= 1, got %d", rank)
	}
	if len(raw) != 2*rank {
		return PairedLogits{}, fmt.Errorf("%w: got %d logits for rank %d", ErrHeadWidth, len(raw), rank)
	}
	return PairedLogits{U: raw[:rank:rank], V: raw[rank:]}, nil
}

// Score returns the signed preference of chosen over rejected.
func Score(chosen, rejected PairedLogits) (float64, error) {
	k := chosen.Rank()
	if k == 0 || len(chosen.V) != k || len(rejected.U) != k || len(rejected.V) != k {
		return 0, fmt.Errorf("rank mismatch: chosen u=%d v=%d, rejected u=%d v=%d",
			len(chosen.U), len(chosen.V), len(rejected.U), len(rejected.V))
	}
	var score float64
	for i := 0; i < k; i++ {
		score += chosen.U[i]*rejected.V[i] - rejected.U[i]*chosen.V[i]
	}
	return score, nil
}

// Outcome maps a margin to 1 when chosen is strictly preferred and 0 otherwise.
// A zero margin counts as not preferred.
func Outcome(margin float64) int {
	return util.BoolToInt(margin > 0)
}

// ScoreBatch scores aligned chosen/rejected pairs, returning margins and outcomes in input order.
func ScoreBatch(chosen, rejected []PairedLogits) ([]float64, []int, error) {
	if len(chosen) != len(rejected) {
		return nil, nil, fmt.Errorf("batch size mismatch: %d chosen, %d rejected", len(chosen), len(rejected))
	}
	margins := make([]float64, len(chosen))
	outcomes := make([]int, len(chosen))
	for i := range chosen {
		margin, err := Score(chosen[i], rejected[i])
		if err != nil {
			return nil, nil, fmt.Errorf("pair %d: %w", i, err)
		}
		margins[i] = margin
		outcomes[i] = Outcome(margin)
	}
	return margins, outcomes, nil
}
