package mapper

import (
	"strings"
	"testing"
)

func TestPathDeterministic(t *testing.T) {
	p1 := Path("obj-1", "")
	p2 := Path("obj-1", "")
	if p1 != p2 {
		t.Fatalf("mapper must be a pure function: %q != %q", p1, p2)
	}
}

func TestPathDistinctInputsDistinctPaths(t *testing.T) {
	p1 := Path("obj-1", "d0")
	p2 := Path("obj-2", "d0")
	if p1 == p2 {
		t.Fatalf("distinct (id,tag) pairs collided: %q", p1)
	}
}

func TestPathWithinBudget(t *testing.T) {
	long := strings.Repeat("x", 1000)
	p := Path(long, "extent-tag")
	if len(p) > MaxPathLen { // the dir fan-out prefix counts against the 255 budget
		t.Fatalf("path exceeds budget: %d bytes", len(p))
	}
}

func TestCleanReplacesDisallowedChars(t *testing.T) {
	p := Path("obj/with spaces!", "")
	if strings.ContainsAny(p[6:], " !/") {
		t.Fatalf("unclean characters leaked into path: %q", p)
	}
}

func TestTagSuffixAppended(t *testing.T) {
	p := Path("obj-1", "mytag")
	if !strings.HasSuffix(p, ".mytag") {
		t.Fatalf("expected tag suffix, got %q", p)
	}
}
