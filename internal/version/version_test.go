package version

import "testing"

func TestGet(t *testing.T) {
	if got := Get(); got != "0.1.0" {
		t.Errorf("Get() = %q, want %q", got, "0.1.0")
	}

	Override = "v9.9.9"
	defer func() { Override = "" }()
	if got := Get(); got != "v9.9.9" {
		t.Errorf("Get() with override = %q, want %q", got, "v9.9.9")
	}
}
