package healing

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/autoloom/loom/internal/recipe"
	"github.com/hashicorp/go-memdb"
)

// DefaultMinConfidence is the threshold FindMatch applies when callers pass
// zero for minConfidence.
const DefaultMinConfidence = 0.6

// Memory is the Healing Memory store for one process. It shares its state
// across all runs that were handed the same *Memory; every mutating method
// serializes through a single lock, and a successful mutation is persisted
// before the in-memory index is considered durable.
type Memory struct {
	mu   sync.Mutex
	path string
	db   *memdb.MemDB

	hits   int
	misses int
}

// New loads a Memory from path, creating an empty store if the file does
// not yet exist. Legacy records (pre-confidence shape) are migrated
// transparently.
func New(path string) (*Memory, error) {
	db, err := newDB()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize healing memory index: %w", err)
	}
	m := &Memory{path: path, db: db}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Memory) load() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read healing memory file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse healing memory file: %w", err)
	}

	for _, r := range raw {
		entry, err := decodeEntry(r)
		if err != nil {
			return fmt.Errorf("failed to decode healing memory entry: %w", err)
		}
		if err := insert(m.db, entry); err != nil {
			return fmt.Errorf("failed to index healing memory entry: %w", err)
		}
	}
	return nil
}

// decodeEntry decodes a single record, migrating the legacy
// {successCount, healedAt} shape when confidence/failCount are absent.
func decodeEntry(raw json.RawMessage) (*Entry, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}
	_, hasConfidence := probe["confidence"]
	_, hasFailCount := probe["failCount"]
	if hasConfidence || hasFailCount {
		var e Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, err
		}
		e.Key = entryKey(e.TargetKey, e.Action.Selector, e.URL)
		return &e, nil
	}

	var legacy legacyEntry
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return nil, err
	}
	return legacy.migrate(), nil
}

// saveEntries persists entries to disk atomically: write to a temp file in
// the same directory, then rename over the target path. It never touches
// m.db; callers swap m.db to the state entries came from only after this
// succeeds, so a failed persist never leaves the in-memory index ahead of
// what's on disk.
func (m *Memory) saveEntries(entries []*Entry) error {
	entries = append([]*Entry(nil), entries...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal healing memory: %w", err)
	}

	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create healing memory directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".healing_memory.json.tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set temp file permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write healing memory: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, m.path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if u.Hostname() != "" {
		return u.Hostname()
	}
	return rawURL
}

// FindMatch looks up the best-confidence healed action for targetKey at
// url. It tries entries on url's domain first, then falls back to entries
// for targetKey on any domain, both filtered to confidence >= minConfidence
// (DefaultMinConfidence if minConfidence <= 0). Ties break on successCount
// descending. Returns nil if nothing qualifies.
func (m *Memory) FindMatch(targetKey, rawURL string, minConfidence float64) *recipe.ActionRef {
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}
	domain := domainOf(rawURL)

	m.mu.Lock()
	defer m.mu.Unlock()

	candidates := filterConfidence(entriesByTargetKeyDomain(m.db, targetKey, domain), minConfidence)
	if len(candidates) == 0 {
		candidates = filterConfidence(entriesByTargetKey(m.db, targetKey), minConfidence)
	}
	if len(candidates) == 0 {
		m.misses++
		return nil
	}

	best := bestByConfidence(candidates)
	m.hits++
	action := best.Action
	return &action
}

func filterConfidence(entries []*Entry, minConfidence float64) []*Entry {
	var out []*Entry
	for _, e := range entries {
		if e.Confidence >= minConfidence {
			out = append(out, e)
		}
	}
	return out
}

func bestByConfidence(entries []*Entry) *Entry {
	best := entries[0]
	for _, e := range entries[1:] {
		if e.Confidence > best.Confidence ||
			(e.Confidence == best.Confidence && e.SuccessCount > best.SuccessCount) {
			best = e
		}
	}
	return best
}

// Record registers a successful recovery. If an entry already exists for
// (targetKey, action.Selector, url), its successCount is incremented and
// confidence recomputed; otherwise a new entry is created with
// successCount=1, failCount=0, confidence=1.0. The mutation is built and
// persisted to disk on a snapshot of the index first; m.db only advances
// to that snapshot once the write succeeds, so a failed persist leaves the
// live index exactly as it was.
func (m *Memory) Record(targetKey string, action recipe.ActionRef, rawURL string, evidence Evidence) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := entryKey(targetKey, action.Selector, rawURL)
	now := time.Now()

	existing := lookupByKey(m.db, key)
	var e *Entry
	if existing != nil {
		cp := *existing
		cp.SuccessCount++
		cp.LastSuccessAt = now
		cp.recomputeConfidence()
		e = &cp
	} else {
		e = &Entry{
			Key:           key,
			TargetKey:     targetKey,
			Domain:        domainOf(rawURL),
			URL:           rawURL,
			Action:        action,
			SuccessCount:  1,
			FailCount:     0,
			Confidence:    1.0,
			LastSuccessAt: now,
			Evidence:      evidence,
		}
	}

	snap := m.db.Snapshot()
	if err := insert(snap, e); err != nil {
		return fmt.Errorf("failed to record healing entry: %w", err)
	}
	if err := m.saveEntries(allEntries(snap)); err != nil {
		return err
	}
	m.db = snap
	return nil
}

// RecordFailure increments failCount and recomputes confidence for every
// entry matching (targetKey, url), across all matching selectors. Same
// snapshot-then-persist-then-swap discipline as Record.
func (m *Memory) RecordFailure(targetKey, rawURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	domain := domainOf(rawURL)
	var entries []*Entry
	for _, e := range entriesByTargetKeyDomain(m.db, targetKey, domain) {
		if e.URL == rawURL {
			entries = append(entries, e)
		}
	}
	if len(entries) == 0 {
		return nil
	}

	snap := m.db.Snapshot()
	now := time.Now()
	for _, existing := range entries {
		cp := *existing
		cp.FailCount++
		cp.LastFailAt = now
		cp.recomputeConfidence()
		if err := insert(snap, &cp); err != nil {
			return fmt.Errorf("failed to record healing failure: %w", err)
		}
	}
	if err := m.saveEntries(allEntries(snap)); err != nil {
		return err
	}
	m.db = snap
	return nil
}

// Prune removes entries failing either confidence or age predicates and
// returns the number removed. A zero field disables that predicate. The
// surviving set is persisted before m.db is replaced, so a failed write
// leaves the original (unpruned) index live.
func (m *Memory) Prune(opts PruneOptions) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := allEntries(m.db)
	cutoff := time.Time{}
	if opts.MaxAgeDays > 0 {
		cutoff = time.Now().AddDate(0, 0, -opts.MaxAgeDays)
	}

	db, err := newDB()
	if err != nil {
		return 0, err
	}

	removed := 0
	var kept []*Entry
	for _, e := range entries {
		if opts.MinConfidence > 0 && e.Confidence < opts.MinConfidence {
			removed++
			continue
		}
		if !cutoff.IsZero() && lastActivity(e).Before(cutoff) {
			removed++
			continue
		}
		if err := insert(db, e); err != nil {
			return 0, err
		}
		kept = append(kept, e)
	}

	if err := m.saveEntries(kept); err != nil {
		return 0, err
	}
	m.db = db
	return removed, nil
}

func lastActivity(e *Entry) time.Time {
	if e.LastFailAt.After(e.LastSuccessAt) {
		return e.LastFailAt
	}
	return e.LastSuccessAt
}

// GetStats reports the current record count, average confidence, per-
// process findMatch hit rate, and domain distribution.
func (m *Memory) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := allEntries(m.db)
	stats := Stats{
		TotalRecords:       len(entries),
		DomainDistribution: map[string]int{},
	}

	var confidenceSum float64
	for _, e := range entries {
		confidenceSum += e.Confidence
		stats.DomainDistribution[e.Domain]++
	}
	if len(entries) > 0 {
		stats.AvgConfidence = confidenceSum / float64(len(entries))
	}

	total := m.hits + m.misses
	if total > 0 {
		stats.HitRate = float64(m.hits) / float64(total)
	}
	return stats
}
