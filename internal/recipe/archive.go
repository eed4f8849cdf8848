package recipe

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// fileKind identifies which of a Recipe's five JSON documents an archive
// entry holds.
type fileKind int

const (
	kindUnknown fileKind = iota
	kindWorkflow
	kindActions
	kindSelectors
	kindFingerprints
	kindPolicies
)

// Export writes r as a ZIP archive containing its five JSON files inside a
// folder named <domain>-<version>.
func Export(w io.Writer, r Recipe) error {
	zw := zip.NewWriter(w)

	folder := fmt.Sprintf("%s-%s", r.Domain, r.Version)
	entries := []struct {
		name string
		v    any
	}{
		{workflowFile, r.Workflow},
		{actionsFile, r.Actions},
		{selectorsFile, r.Selectors},
		{policiesFile, r.Policies},
	}
	if len(r.Fingerprints) > 0 {
		entries = append(entries, struct {
			name string
			v    any
		}{fingerprintsFile, r.Fingerprints})
	}

	for _, e := range entries {
		data, err := json.MarshalIndent(e.v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal %s for export: %w", e.name, err)
		}
		f, err := zw.Create(folder + "/" + e.name)
		if err != nil {
			return fmt.Errorf("failed to create archive entry %s: %w", e.name, err)
		}
		if _, err := f.Write(data); err != nil {
			return fmt.Errorf("failed to write archive entry %s: %w", e.name, err)
		}
	}

	return zw.Close()
}

// Import reads a Recipe archive produced by Export (or hand-assembled by
// an authoring tool). Each entry's kind is inferred first from a filename
// substring, falling back to the shape of its parsed JSON content when the
// filename is ambiguous: a "steps" field means workflow, entries with an
// "instruction" field mean actions, entries with "primary"+"fallbacks"
// mean selectors, entries with "mustText"|"urlContains"|"mustSelectors"
// mean fingerprints, entries with "hard"+"score" mean policies, and an
// empty document defaults to policies.
func Import(r *zip.Reader, domain, flow, version string) (Recipe, error) {
	out := Recipe{Domain: domain, Flow: flow, Version: version}
	found := map[fileKind]bool{}

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return Recipe{}, fmt.Errorf("failed to open archive entry %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return Recipe{}, fmt.Errorf("failed to read archive entry %s: %w", f.Name, err)
		}

		kind := detectFileKindByName(f.Name)
		if kind == kindUnknown {
			kind = detectFileKindByContent(data)
		}

		switch kind {
		case kindWorkflow:
			if err := json.Unmarshal(data, &out.Workflow); err != nil {
				return Recipe{}, fmt.Errorf("failed to parse %s as workflow: %w", f.Name, err)
			}
		case kindActions:
			if err := json.Unmarshal(data, &out.Actions); err != nil {
				return Recipe{}, fmt.Errorf("failed to parse %s as actions: %w", f.Name, err)
			}
		case kindSelectors:
			if err := json.Unmarshal(data, &out.Selectors); err != nil {
				return Recipe{}, fmt.Errorf("failed to parse %s as selectors: %w", f.Name, err)
			}
		case kindFingerprints:
			if err := json.Unmarshal(data, &out.Fingerprints); err != nil {
				return Recipe{}, fmt.Errorf("failed to parse %s as fingerprints: %w", f.Name, err)
			}
		case kindPolicies:
			if err := json.Unmarshal(data, &out.Policies); err != nil {
				return Recipe{}, fmt.Errorf("failed to parse %s as policies: %w", f.Name, err)
			}
		default:
			continue
		}
		found[kind] = true
	}

	if err := Validate(out); err != nil {
		return Recipe{}, fmt.Errorf("imported recipe failed validation: %w", err)
	}
	return out, nil
}

func detectFileKindByName(name string) fileKind {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "workflow"):
		return kindWorkflow
	case strings.Contains(lower, "action"):
		return kindActions
	case strings.Contains(lower, "selector"):
		return kindSelectors
	case strings.Contains(lower, "fingerprint"):
		return kindFingerprints
	case strings.Contains(lower, "polic"):
		return kindPolicies
	default:
		return kindUnknown
	}
}

func detectFileKindByContent(data []byte) fileKind {
	var probe any
	if err := json.Unmarshal(data, &probe); err != nil {
		return kindUnknown
	}

	switch v := probe.(type) {
	case map[string]any:
		if _, ok := v["steps"]; ok {
			return kindWorkflow
		}
		return detectFileKindByEntries(mapValues(v))
	case []any:
		return detectFileKindByEntries(v)
	}
	return kindPolicies
}

func mapValues(m map[string]any) []any {
	out := make([]any, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

// detectFileKindByEntries inspects a sample entry (from a map or a list)
// to distinguish actions, selectors, fingerprints, and policies, all of
// which are keyed-object or list documents with no shared top-level field.
func detectFileKindByEntries(entries []any) fileKind {
	if len(entries) == 0 {
		return kindPolicies
	}
	entry, ok := entries[0].(map[string]any)
	if !ok {
		return kindPolicies
	}

	if _, ok := entry["instruction"]; ok {
		return kindActions
	}
	if _, hasPrimary := entry["primary"]; hasPrimary {
		if _, hasFallbacks := entry["fallbacks"]; hasFallbacks {
			return kindSelectors
		}
	}
	if _, ok := entry["mustText"]; ok {
		return kindFingerprints
	}
	if _, ok := entry["urlContains"]; ok {
		return kindFingerprints
	}
	if _, ok := entry["mustSelectors"]; ok {
		return kindFingerprints
	}
	if _, hasHard := entry["hard"]; hasHard {
		if _, hasScore := entry["score"]; hasScore {
			return kindPolicies
		}
	}
	return kindPolicies
}
