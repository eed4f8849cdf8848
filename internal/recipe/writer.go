package recipe

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DirWriter persists a Recipe to <RecipesRoot>/<domain>/<flow>/<version>/,
// the same five-file layout Load reads. Saving a patched Recipe writes a
// new version directory alongside the one it was derived from, so both old
// and new versions are kept. Saving a Recipe whose version directory
// already exists replaces that directory; other versions are not touched.
type DirWriter struct {
	RecipesRoot string
}

// Save implements patchflow.Store.
func (w DirWriter) Save(r Recipe) error {
	dir := filepath.Join(w.RecipesRoot, r.Domain, r.Flow, r.Version)
	tmp := dir + ".tmp"

	if err := os.RemoveAll(tmp); err != nil {
		return fmt.Errorf("failed to clear staging dir %s: %w", tmp, err)
	}
	if err := os.MkdirAll(tmp, 0o755); err != nil {
		return fmt.Errorf("failed to create staging dir %s: %w", tmp, err)
	}

	if err := writeJSON(filepath.Join(tmp, workflowFile), r.Workflow); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(tmp, actionsFile), r.Actions); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(tmp, selectorsFile), r.Selectors); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(tmp, policiesFile), r.Policies); err != nil {
		return err
	}
	if len(r.Fingerprints) > 0 {
		if err := writeJSON(filepath.Join(tmp, fingerprintsFile), r.Fingerprints); err != nil {
			return err
		}
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to clear existing version dir %s: %w", dir, err)
	}
	if err := os.Rename(tmp, dir); err != nil {
		return fmt.Errorf("failed to publish version dir %s: %w", dir, err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
