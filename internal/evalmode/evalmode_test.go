// internal/evalmode/evalmode_test.go
package evalmode

import "testing"

func TestSelectPrecedence(t *testing.T) {
	tests := []struct {
		bon, ref bool
		want     Mode
	}{
		{false, false, Plain},
		{false, true, Reference},
		{true, false, BestOfN},
		{true, true, BestOfN},
	}
	for _, tt := range tests {
		if got := Select(tt.bon, tt.ref); got != tt.want {
			t.Fatalf("Select(%v, %v) = %v, want %v", tt.bon, tt.ref, got, tt.want)
		}
	}
}

func TestModeJobNames(t *testing.T) {
	tests := []struct {
		mode          Mode
		script, group string
	}{
		{Plain, "run_rm.py", "rewardbench-seq"},
		{Reference, "run_dpo.py", "rewardbench-dpo"},
		{BestOfN, "run_bon.py", "rewardbench-bon"},
	}
	for _, tt := range tests {
		if tt.mode.Script() != tt.script || tt.mode.Group() != tt.group {
			t.Fatalf("%v: got %s/%s, want %s/%s", tt.mode, tt.mode.Script(), tt.mode.Group(), tt.script, tt.group)
		}
	}
	if Mode(42).String() != "unknown" {
		t.Fatalf("unexpected name for invalid mode: %s", Mode(42))
	}
}
