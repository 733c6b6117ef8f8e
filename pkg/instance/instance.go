package instance

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const idFileName = "casafindr-device-id"

// GetID returns the stable per-install device identifier, generating and
// persisting one next to the data directory on first call. The identifier is
// attached to upstream token sync calls and log fields.
func GetID(dataDir string) (string, error) {
	if env := os.Getenv("CASASYNC_DEVICE_ID"); env != "" {
		return env, nil
	}

	path := filepath.Join(dataDir, idFileName)
	if raw, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(raw)); id != "" {
			return id, nil
		}
	}

	id := uuid.NewString()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return "", err
	}
	return id, nil
}
