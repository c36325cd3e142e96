package dlog

import (
	"bytes"
	"strings"
	"testing"
)

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Log("derived", "address", "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

	out := buf.String()
	if !strings.Contains(out, "derived") || !strings.Contains(out, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266") {
		t.Fatalf("output %q", out)
	}
}
