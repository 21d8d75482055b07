package utils

import (
	"path/filepath"
	"testing"
)

func TestOutputPath(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name   string
		src    string
		outDir string
		want   string
	}{
		{"Next To Source", filepath.Join(dir, "prog.imp"), "", filepath.Join(dir, "prog.wat")},
		{"Into Out Dir", filepath.Join(dir, "src", "prog.imp"), filepath.Join(dir, "out"), filepath.Join(dir, "out", "prog.wat")},
		{"No Extension", filepath.Join(dir, "prog"), "", filepath.Join(dir, "prog.wat")},
		{"Dotted Name", filepath.Join(dir, "a.b.imp"), "", filepath.Join(dir, "a.b.wat")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := OutputPath(tt.src, tt.outDir, ".wat")
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestOutputPathIsAbsolute(t *testing.T) {
	got, err := OutputPath("prog.imp", "", ".wat")
	if err != nil {
		t.Fatal(err)
	}
	if !filepath.IsAbs(got) {
		t.Errorf("expected absolute path, got %s", got)
	}
}
