// Package healing implements the Healing Memory: a durable keyed store of
// previously recovered actions, scoped by (targetKey, url), with a
// per-entry confidence score derived from post-recovery success/failure.
package healing

import (
	"time"

	"github.com/autoloom/loom/internal/recipe"
)

// Evidence records how an Entry's action was discovered, for audit and
// debugging of healed recipes.
type Evidence struct {
	OriginalSelector string    `json:"originalSelector,omitempty"`
	HealedSelector   string    `json:"healedSelector,omitempty"`
	DomContext       string    `json:"domContext,omitempty"`
	PageTitle        string    `json:"pageTitle,omitempty"`
	PageURL          string    `json:"pageUrl,omitempty"`
	Method           string    `json:"method,omitempty"`
	Timestamp        time.Time `json:"timestamp,omitempty"`
}

// Entry is a single healed-action record. Uniqueness key is
// (TargetKey, Action.Selector, URL); Key derives from those three fields
// and is recomputed on load, never persisted.
type Entry struct {
	Key           string           `json:"-"`
	TargetKey     string           `json:"targetKey"`
	Domain        string           `json:"domain"`
	URL           string           `json:"url"`
	Action        recipe.ActionRef `json:"action"`
	SuccessCount  int              `json:"successCount"`
	FailCount     int              `json:"failCount"`
	Confidence    float64          `json:"confidence"`
	LastSuccessAt time.Time        `json:"lastSuccessAt,omitempty"`
	LastFailAt    time.Time        `json:"lastFailAt,omitempty"`
	Evidence      Evidence         `json:"evidence,omitempty"`
}

func entryKey(targetKey, selector, url string) string {
	return targetKey + "\x00" + selector + "\x00" + url
}

func (e *Entry) recomputeConfidence() {
	total := e.SuccessCount + e.FailCount
	if total == 0 {
		e.Confidence = 0
		return
	}
	e.Confidence = float64(e.SuccessCount) / float64(total)
}

// legacyEntry is the pre-confidence record shape migrated transparently on
// load: {targetKey, url, action, successCount, healedAt}.
type legacyEntry struct {
	TargetKey    string           `json:"targetKey"`
	Domain       string           `json:"domain"`
	URL          string           `json:"url"`
	Action       recipe.ActionRef `json:"action"`
	SuccessCount int              `json:"successCount"`
	HealedAt     time.Time        `json:"healedAt"`
}

func (l legacyEntry) migrate() *Entry {
	successCount := l.SuccessCount
	if successCount == 0 {
		successCount = 1
	}
	e := &Entry{
		TargetKey:     l.TargetKey,
		Domain:        l.Domain,
		URL:           l.URL,
		Action:        l.Action,
		SuccessCount:  successCount,
		FailCount:     0,
		Confidence:    1.0,
		LastSuccessAt: l.HealedAt,
		Evidence: Evidence{
			Method:    "migration",
			Timestamp: l.HealedAt,
		},
	}
	e.Key = entryKey(e.TargetKey, e.Action.Selector, e.URL)
	return e
}

// Stats summarizes a Memory's current contents and its process-lifetime
// findMatch hit rate.
type Stats struct {
	TotalRecords       int            `json:"totalRecords"`
	AvgConfidence      float64        `json:"avgConfidence"`
	HitRate            float64        `json:"hitRate"`
	DomainDistribution map[string]int `json:"domainDistribution"`
}

// PruneOptions bounds what prune removes. Zero MinConfidence or MaxAgeDays
// disables that predicate.
type PruneOptions struct {
	MinConfidence float64
	MaxAgeDays    int
}
