package tree

import "testing"

func TestIsBinaryPath(t *testing.T) {
	binary := []string{"logo.png", "assets/img/logo.PNG", "dist/app.exe", "vendor.tar.gz", "poetry.lock"}
	for _, p := range binary {
		if !IsBinaryPath(p) {
			t.Errorf("IsBinaryPath(%q) = false, want true", p)
		}
	}

	text := []string{"main.py", "README.md", "src/app.go", "config.yaml", "Makefile"}
	for _, p := range text {
		if IsBinaryPath(p) {
			t.Errorf("IsBinaryPath(%q) = true, want false", p)
		}
	}
}

func TestIsTextPath(t *testing.T) {
	yes := []string{"main.py", "README.md", "src/app.go", "web/Index.HTML", "settings.toml"}
	for _, p := range yes {
		if !IsTextPath(p) {
			t.Errorf("IsTextPath(%q) = false, want true", p)
		}
	}

	no := []string{"logo.png", "Makefile", "LICENSE", "bin/tool"}
	for _, p := range no {
		if IsTextPath(p) {
			t.Errorf("IsTextPath(%q) = true, want false", p)
		}
	}
}

func TestFilterText_SelectsAndOrders(t *testing.T) {
	files := map[string]FileArtifact{
		"z.py":     {Path: "z.py", Content: "print('z')"},
		"a.md":     {Path: "a.md", Content: "# a"},
		"logo.png": {Path: "logo.png", Content: "\x89PNG"},
		"empty.py": {Path: "empty.py", Content: "   \n\t"},
		"m.go":     {Path: "m.go", Content: "package m"},
	}

	got := FilterText(files)
	want := []string{"a.md", "m.go", "z.py"}
	if len(got) != len(want) {
		paths := make([]string, len(got))
		for i, f := range got {
			paths[i] = f.Path
		}
		t.Fatalf("FilterText returned %v, want %v", paths, want)
	}
	for i, p := range want {
		if got[i].Path != p {
			t.Errorf("position %d: got %s, want %s", i, got[i].Path, p)
		}
	}
}

func TestFilterText_EmptyInput(t *testing.T) {
	if got := FilterText(nil); len(got) != 0 {
		t.Errorf("FilterText(nil) returned %d artifacts", len(got))
	}
}
