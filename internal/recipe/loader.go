package recipe

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	workflowFile    = "workflow.json"
	actionsFile     = "actions.json"
	selectorsFile   = "selectors.json"
	policiesFile    = "policies.json"
	fingerprintsFile = "fingerprints.json"
)

// Load reads a Recipe from <recipesRoot>/<domain>/<flow>/<version>/, the
// five-file layout described for recipe archives: workflow.json,
// actions.json, selectors.json, policies.json, fingerprints.json.
// fingerprints.json may be absent; a Recipe has no fingerprints in that
// case. Load validates the result before returning it.
func Load(recipesRoot, domain, flow, version string) (Recipe, error) {
	dir := filepath.Join(recipesRoot, domain, flow, version)

	r := Recipe{Domain: domain, Flow: flow, Version: version}

	if err := readJSON(filepath.Join(dir, workflowFile), &r.Workflow); err != nil {
		return Recipe{}, err
	}
	if err := readJSON(filepath.Join(dir, actionsFile), &r.Actions); err != nil {
		return Recipe{}, err
	}
	if err := readJSON(filepath.Join(dir, selectorsFile), &r.Selectors); err != nil {
		return Recipe{}, err
	}
	if err := readJSON(filepath.Join(dir, policiesFile), &r.Policies); err != nil {
		return Recipe{}, err
	}

	fpPath := filepath.Join(dir, fingerprintsFile)
	if _, err := os.Stat(fpPath); err == nil {
		if err := readJSON(fpPath, &r.Fingerprints); err != nil {
			return Recipe{}, err
		}
	} else if !os.IsNotExist(err) {
		return Recipe{}, fmt.Errorf("failed to stat %s: %w", fpPath, err)
	}

	if err := Validate(r); err != nil {
		return Recipe{}, fmt.Errorf("recipe %s/%s/%s failed validation: %w", domain, flow, version, err)
	}
	return r, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
