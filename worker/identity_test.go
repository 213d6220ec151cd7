package worker

import (
	"path/filepath"
	"testing"
)

func TestLoadOrCreateInstanceIDPersistsAcrossCalls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "instance-id")

	first, err := loadOrCreateInstanceID(path)
	if err != nil {
		t.Fatalf("loadOrCreateInstanceID: %v", err)
	}
	if first.String() == "" {
		t.Fatalf("expected a non-empty instance id")
	}

	second, err := loadOrCreateInstanceID(path)
	if err != nil {
		t.Fatalf("loadOrCreateInstanceID (reload): %v", err)
	}
	if first != second {
		t.Fatalf("expected persisted instance id to be reused, got %s then %s", first, second)
	}
}

func TestLoadOrCreateInstanceIDEmptyPathIsEphemeral(t *testing.T) {
	a, err := loadOrCreateInstanceID("")
	if err != nil {
		t.Fatalf("loadOrCreateInstanceID: %v", err)
	}
	b, err := loadOrCreateInstanceID("")
	if err != nil {
		t.Fatalf("loadOrCreateInstanceID: %v", err)
	}
	if a == b {
		t.Fatalf("expected distinct ephemeral ids when no path is configured")
	}
}
