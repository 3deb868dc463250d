package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
)

const sampleMessages = `[
  {
    "header": {
      "discipline": 0,
      "parameterCategory": 2,
      "parameterNumber": 2,
      "surface1Type": 103,
      "surface1Value": 10,
      "nx": 2,
      "ny": 2,
      "la1": 90,
      "lo1": 0,
      "dx": 1,
      "dy": 1
    },
    "data": [1.5, 2.5, 3.5, 4.5]
  }
]`

func newTestLocal(t *testing.T) *Local {
	t.Helper()
	l, err := NewLocal(filepath.Join(t.TempDir(), "artifacts"))
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func writeSource(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "download.tmp")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLocalSaveExistsRemove(t *testing.T) {
	ctx := context.Background()
	l := newTestLocal(t)
	src := writeSource(t, sampleMessages)

	ok, err := l.Exists(ctx, "2024010106.f024")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("artifact exists before Save")
	}

	if err := l.Save(ctx, src, "2024010106.f024"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	ok, err = l.Exists(ctx, "2024010106.f024")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("artifact missing after Save")
	}

	if err := l.Remove(ctx, "2024010106.f024"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	ok, _ = l.Exists(ctx, "2024010106.f024")
	if ok {
		t.Fatal("artifact exists after Remove")
	}
}

func TestLocalRemoveAbsent(t *testing.T) {
	l := newTestLocal(t)
	if err := l.Remove(context.Background(), "2024010106.f024"); err != nil {
		t.Fatalf("Remove of absent artifact: %v", err)
	}
}

func TestLocalList(t *testing.T) {
	ctx := context.Background()
	l := newTestLocal(t)
	src := writeSource(t, sampleMessages)

	for _, name := range []string{"2024010100.f006", "2024010106.f003", "notastamp.txt"} {
		if err := l.Save(ctx, src, name); err != nil {
			t.Fatalf("Save %s: %v", name, err)
		}
	}

	stamps, err := l.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(stamps) != 2 {
		t.Fatalf("List returned %d stamps, want 2 (unparsable names skipped)", len(stamps))
	}
	names := map[string]bool{}
	for _, s := range stamps {
		names[s.FileName()] = true
	}
	if !names["2024010100.f006"] || !names["2024010106.f003"] {
		t.Errorf("List = %v", names)
	}
}

func TestLocalMessages(t *testing.T) {
	ctx := context.Background()
	l := newTestLocal(t)
	src := writeSource(t, sampleMessages)
	if err := l.Save(ctx, src, "2024010106.f006"); err != nil {
		t.Fatal(err)
	}

	msgs, err := l.Messages(ctx, "2024010106.f006")
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	h := msgs[0].Header
	if h.ParameterCategory != 2 || h.ParameterNumber != 2 {
		t.Errorf("header = %+v", h)
	}
	if len(msgs[0].Data) != 4 || msgs[0].Data[0] != 1.5 {
		t.Errorf("data = %v", msgs[0].Data)
	}
}

func TestLocalOpen(t *testing.T) {
	ctx := context.Background()
	l := newTestLocal(t)
	src := writeSource(t, "raw bytes")
	if err := l.Save(ctx, src, "2024010106.f000"); err != nil {
		t.Fatal(err)
	}

	r, err := l.Open(ctx, "2024010106.f000")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "raw bytes" {
		t.Errorf("Open read %q", got)
	}
}

func TestLocalMessagesMissing(t *testing.T) {
	l := newTestLocal(t)
	if _, err := l.Messages(context.Background(), "2024010106.f024"); err == nil {
		t.Fatal("Messages of a missing artifact succeeded, want error")
	}
}
