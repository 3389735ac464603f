package model

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/repolens/repolens/pkg/domain/types"
)

// TierCoverage reports, for one tier, how many entities exist, how many are
// still fresh and how many are due. Exposed so the API layer can explain a
// "nothing due" outcome.
type TierCoverage struct {
	Tier  types.Tier `json:"tier"`
	Total int        `json:"total"`
	Fresh int        `json:"fresh"`
	Due   int        `json:"due"`
}

// ScanStartResult is the outcome of a scan request. Either a batch was
// started (BatchID set) or nothing was due, a distinct non-error outcome
// with per-tier coverage and actionable guidance.
type ScanStartResult struct {
	BatchID    types.BatchID  `json:"batch_id,omitempty"`
	Resumed    bool           `json:"resumed,omitempty"`
	NothingDue bool           `json:"nothing_due,omitempty"`
	Suggestion string         `json:"suggestion,omitempty"`
	Coverage   []TierCoverage `json:"coverage,omitempty"`
}

type StartScanInput struct {
	Mode types.ScanMode
}

func (x *StartScanInput) Validate() error {
	if !x.Mode.Valid() {
		return goerr.Wrap(types.ErrValidationFailed, "invalid scan mode",
			goerr.V("mode", x.Mode),
		)
	}
	return nil
}
