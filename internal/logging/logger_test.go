package logging

import "testing"

func TestNewLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		development bool
		level       string
		debug       bool
	}{
		{name: "production default", level: "", debug: false},
		{name: "production debug", level: "debug", debug: true},
		{name: "development warn", development: true, level: "warn", debug: false},
		{name: "development debug", development: true, level: "DEBUG", debug: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger, err := New(tt.development, tt.level)
			if err != nil {
				t.Fatalf("New(%v, %q) error = %v", tt.development, tt.level, err)
			}
			defer logger.Sync() //nolint:errcheck // best-effort flush
			if got := logger.Core().Enabled(-1); got != tt.debug {
				t.Fatalf("debug enabled = %v, want %v", got, tt.debug)
			}
		})
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	if _, err := New(false, "loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
