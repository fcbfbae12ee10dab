package monitor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestTailFileKeepsLastLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	var b strings.Builder
	for i := 1; i <= 10; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	tail, err := tailFile(path, 3)
	if err != nil {
		t.Fatalf("tailFile: %v", err)
	}
	if string(tail) != "line 8\nline 9\nline 10\n" {
		t.Fatalf("unexpected tail %q", tail)
	}

	all, _ := tailFile(path, 50)
	if strings.Count(string(all), "\n") != 10 {
		t.Fatalf("expected the whole file, got %q", all)
	}

	if _, err := tailFile(filepath.Join(t.TempDir(), "missing.log"), 3); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}
