package skills

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Lockfile records the approved content hash of every skill. A skill whose
// on-disk hash no longer matches its entry is deactivated on load and stays
// inactive until an operator approves it again.
type Lockfile map[string]LockEntry

// ReadLockfile loads the lockfile at path. A missing file yields an empty
// lockfile; a corrupt one is an error so that integrity state is never
// silently discarded.
func ReadLockfile(path string) (Lockfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Lockfile{}, nil
		}
		return nil, errors.Wrap(err, "failed to read lockfile")
	}

	var lf Lockfile
	if err := json.Unmarshal(data, &lf); err != nil {
		return nil, errors.Wrap(err, "failed to parse lockfile")
	}
	if lf == nil {
		lf = Lockfile{}
	}
	return lf, nil
}

// WriteLockfile persists the lockfile to path, creating parent directories as
// needed.
func WriteLockfile(path string, lf Lockfile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create lockfile directory")
	}

	data, err := json.MarshalIndent(lf, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal lockfile")
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write lockfile")
	}
	return nil
}
