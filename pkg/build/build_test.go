package build

import (
	"runtime"
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	s := String()
	if !strings.Contains(s, Version) {
		t.Errorf("banner %q missing version %q", s, Version)
	}
	if !strings.Contains(s, runtime.Version()) {
		t.Errorf("banner %q missing go version", s)
	}
}
