package browser

import "testing"

func TestCommand(t *testing.T) {
	tests := []struct {
		goos string
		name string
		args int
	}{
		{"darwin", "open", 1},
		{"linux", "xdg-open", 1},
		{"windows", "rundll32", 2},
	}
	for _, tt := range tests {
		name, args, err := command(tt.goos, "https://bank.example/3ds")
		if err != nil {
			t.Fatalf("%s: %v", tt.goos, err)
		}
		if name != tt.name || len(args) != tt.args || args[len(args)-1] != "https://bank.example/3ds" {
			t.Errorf("%s: got %s %v", tt.goos, name, args)
		}
	}

	if _, _, err := command("plan9", "https://x"); err == nil {
		t.Error("expected error for unsupported OS")
	}
}

func TestOpen_rejectsNonHTTP(t *testing.T) {
	for _, u := range []string{"file:///etc/passwd", "javascript:alert(1)", "::"} {
		if err := Open(u); err == nil {
			t.Errorf("Open(%q) should fail", u)
		}
	}
}
