package progress

import (
	"bytes"
	"strings"
	"testing"
)

func TestLineReporter(t *testing.T) {
	var buf bytes.Buffer
	r := &LineReporter{Task: "Exporting widgets", Out: &buf}
	r.Start(2)
	r.Update(1, "Sofa.001")
	r.Update(2, "Lamp")
	r.Finish()

	want := []string{
		"Exporting widgets: 2 items",
		"[1/2] Sofa.001",
		"[2/2] Lamp",
		"Exporting widgets: done",
	}
	got := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(got) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(got), len(want), buf.String())
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNewReporterUnderCI(t *testing.T) {
	t.Setenv("CI", "true")
	if _, ok := NewReporter("x").(*LineReporter); !ok {
		t.Error("expected a LineReporter under CI")
	}
}
