package paths

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGetHome(t *testing.T) {
	customHome := "/custom/cdconv/home"
	t.Setenv(HomeEnvVar, customHome)

	home, err := GetHome()
	if err != nil {
		t.Fatalf("GetHome failed: %v", err)
	}
	if home != customHome {
		t.Errorf("Expected %s, got %s", customHome, home)
	}

	t.Setenv(HomeEnvVar, "")
	home, err = GetHome()
	if err != nil {
		t.Fatalf("GetHome failed: %v", err)
	}
	if !strings.HasSuffix(home, DefaultHome) {
		t.Errorf("Expected path to end with %s, got %s", DefaultHome, home)
	}
}

func TestEnsureHomeAndHistoryPath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	t.Setenv(HomeEnvVar, dir)

	got, err := EnsureHome()
	if err != nil {
		t.Fatalf("EnsureHome failed: %v", err)
	}
	if info, err := os.Stat(got); err != nil || !info.IsDir() {
		t.Fatalf("Expected %s to be a directory", got)
	}

	hist, err := DefaultHistoryPath()
	if err != nil {
		t.Fatalf("DefaultHistoryPath failed: %v", err)
	}
	if hist != filepath.Join(dir, HistoryFile) {
		t.Errorf("DefaultHistoryPath = %s", hist)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := ExpandHome("~/x/y"); got != filepath.Join(home, "x/y") {
		t.Errorf("ExpandHome(~/x/y) = %s", got)
	}
	if got := ExpandHome("/abs/~/y"); got != "/abs/~/y" {
		t.Errorf("ExpandHome should leave %s alone", got)
	}
}

func TestCheckReadableFile(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "release.zip")
	if err := os.WriteFile(archive, []byte("PK"), 0o644); err != nil {
		t.Fatal(err)
	}
	text := filepath.Join(dir, "config.txt")
	if err := os.WriteFile(text, []byte("1\t2\tinteger\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		path    string
		ext     string
		wantErr bool
	}{
		{"zip", archive, ".zip", false},
		{"upper case ext", archive, ".ZIP", true},
		{"wrong ext", text, ".zip", true},
		{"any ext", text, "", false},
		{"missing", filepath.Join(dir, "missing.zip"), ".zip", true},
		{"directory", dir, "", true},
		{"empty", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckReadableFile(tt.path, tt.ext)
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckReadableFile(%q, %q) error = %v, wantErr %v", tt.path, tt.ext, err, tt.wantErr)
			}
		})
	}
}
