package staging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestStore_PutReadDelete(t *testing.T) {
	s := newTestStore(t)

	art, err := s.Put("src/app/main.py", "sha-1", "summary of main")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if art.Location == "" {
		t.Fatal("Put returned empty location")
	}
	base := filepath.Base(string(art.Location))
	if base != "src_app_main.py.json" {
		t.Errorf("staged file name = %q, want separators flattened", base)
	}
	if strings.ContainsRune(base, '/') {
		t.Errorf("staged file name contains separator: %q", base)
	}

	text, err := s.Read(art.Location)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if text != "summary of main" {
		t.Errorf("Read = %q", text)
	}

	if removed := s.Delete([]Location{art.Location}); removed != 1 {
		t.Errorf("Delete removed %d, want 1", removed)
	}
	if _, err := os.Stat(string(art.Location)); !os.IsNotExist(err) {
		t.Error("staged file still on disk after Delete")
	}
}

func TestStore_LocationFlattensBothSeparators(t *testing.T) {
	s := newTestStore(t)

	art, err := s.Put(`src\win\main.py`, "sha-1", "x")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if base := filepath.Base(string(art.Location)); base != "src_win_main.py.json" {
		t.Errorf("staged file name = %q, want backslashes flattened", base)
	}
}

func TestStore_PutReplacesPrevious(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Put("a.py", "sha-1", "old"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	art, err := s.Put("a.py", "sha-2", "new")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	text, err := s.Read(art.Location)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if text != "new" {
		t.Errorf("Read after replace = %q, want new", text)
	}
}

func TestStore_Lookup(t *testing.T) {
	s := newTestStore(t)

	if _, ok := s.Lookup("a.py", "sha-1"); ok {
		t.Fatal("Lookup hit before Put")
	}

	if _, err := s.Put("a.py", "sha-1", "cached summary"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	art, ok := s.Lookup("a.py", "sha-1")
	if !ok {
		t.Fatal("Lookup missed after Put")
	}
	if art.SummaryText != "cached summary" || art.RevisionTag != "sha-1" {
		t.Errorf("Lookup = %+v", art)
	}

	if _, ok := s.Lookup("a.py", "sha-2"); ok {
		t.Error("Lookup hit with stale revision tag")
	}
	if _, ok := s.Lookup("a.py", ""); ok {
		t.Error("Lookup hit with empty revision tag")
	}
}

func TestStore_ReadAllPreservesOrderAndSkipsBroken(t *testing.T) {
	s := newTestStore(t)

	a, err := s.Put("a.py", "s1", "first")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	b, err := s.Put("b.py", "s2", "second")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	c, err := s.Put("c.py", "s3", "third")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	// Corrupt the middle entry.
	if err := os.WriteFile(string(b.Location), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("corrupt staged file: %v", err)
	}

	got := s.ReadAll([]Location{a.Location, b.Location, c.Location})
	want := []string{"first", "third"}
	if len(got) != len(want) {
		t.Fatalf("ReadAll = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ReadAll[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestStore_DeleteReportsLeftovers(t *testing.T) {
	s := newTestStore(t)

	a, err := s.Put("a.py", "s1", "x")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	missing := Location(filepath.Join(s.Dir(), "never_staged.json"))

	if removed := s.Delete([]Location{a.Location, missing}); removed != 1 {
		t.Errorf("Delete removed %d, want 1", removed)
	}
}

func TestNewStore_RequiresDirectory(t *testing.T) {
	if _, err := NewStore("", nil); err == nil {
		t.Fatal("expected error for empty directory")
	}
}

func TestStore_PutFailsWhenDirectoryGone(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "staging")
	s, err := NewStore(dir, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}

	if _, err := s.Put("a.py", "s1", "x"); err == nil {
		t.Fatal("expected write error once directory is gone")
	}
}
