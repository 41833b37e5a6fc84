package buildinfo

import (
	"bytes"
	"testing"
)

func TestPrintBuildData(t *testing.T) {
	old := Version
	Version = "v9.9.9"
	defer func() { Version = old }()

	var buf bytes.Buffer
	PrintBuildData(&buf)

	want := "Build version: v9.9.9\nBuild date: N/A\nBuild commit: N/A\n"
	if buf.String() != want {
		t.Fatalf("got %q, want %q", buf.String(), want)
	}
}
