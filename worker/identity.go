package worker

import (
	"os"
	"strings"

	"github.com/google/renameio"
	"github.com/google/uuid"
)

// loadOrCreateInstanceID reads the runtime instance UUID persisted at path,
// minting and atomically persisting a fresh one on first run. Grounded on
// ingest/config's SetIngesterUUID/IngesterUUID pairing (persist-next-to-config,
// crash-safe write), here implemented directly against
// github.com/google/renameio rather than gcfg's config-file-with-a-UUID-field
// convention, since this runtime's identity is not itself part of the typed
// NetworkConfig schema. An empty path disables persistence; a fresh UUID is
// returned and never written.
func loadOrCreateInstanceID(path string) (uuid.UUID, error) {
	if path == `` {
		return uuid.NewRandom()
	}
	if b, err := os.ReadFile(path); err == nil {
		if id, perr := uuid.Parse(strings.TrimSpace(string(b))); perr == nil {
			return id, nil
		}
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return uuid.UUID{}, err
	}
	if err := renameio.WriteFile(path, []byte(id.String()+"\n"), 0640); err != nil {
		return uuid.UUID{}, err
	}
	return id, nil
}
