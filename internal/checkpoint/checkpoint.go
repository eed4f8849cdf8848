// Package checkpoint bridges a run's human GO/NOT-GO decisions: the
// preflight GO/NOT-GO gate, per-step onFail=checkpoint prompts, and the
// checkpoint recovery action all go through a Handler.
package checkpoint

import "context"

// Decision is a Handler's verdict on a requested approval.
type Decision string

const (
	GO    Decision = "GO"
	NotGo Decision = "NOT_GO"
)

// Handler requests a human (or automated) approval decision. Screenshot
// may be nil when none was captured (e.g. the Budget Guard denied it).
type Handler interface {
	RequestApproval(ctx context.Context, message string, screenshot []byte) (Decision, error)
}

// AutoApprove is the mandatory auto-approving Handler: it returns GO
// unconditionally, for headless runs and CI.
type AutoApprove struct{}

func (AutoApprove) RequestApproval(ctx context.Context, message string, screenshot []byte) (Decision, error) {
	return GO, nil
}

var _ Handler = AutoApprove{}
