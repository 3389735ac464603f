package model

import (
	"fmt"
	"time"

	"github.com/repolens/repolens/pkg/domain/types"
)

// AnalysisReport is the parsed payload of a successful analysis call
type AnalysisReport struct {
	Summary     string   `json:"summary"`
	RiskScore   float64  `json:"risk_score"`
	Topics      []string `json:"topics,omitempty"`
	CreditsUsed float64  `json:"credits_used"`
}

// MalformedPayload records the shape of an unparsable success response.
// The excerpt is bounded; the full payload is never retained.
type MalformedPayload struct {
	Size    int
	Excerpt string
}

// AnalysisResult is a tagged result: exactly one of Report or Malformed is
// set. A malformed payload is data, not a parse exception, and the caller
// treats it as a structured failure for the attempt.
type AnalysisResult struct {
	Report    *AnalysisReport
	Malformed *MalformedPayload
}

func (x *AnalysisResult) OK() bool {
	return x != nil && x.Report != nil
}

// RateLimitSignal is the upstream "slow down" signal. It is not a failure:
// the orchestrator feeds it back into the service's rate limiter and
// re-enqueues the entity without charging a retry attempt.
type RateLimitSignal struct {
	Service    types.ServiceName
	RetryAfter time.Duration
}

func (x *RateLimitSignal) Error() string {
	return fmt.Sprintf("rate limited by %s, retry after %s", x.Service, x.RetryAfter)
}

// ScanResult is the per-entity record written back to the entity store
type ScanResult struct {
	EntityID    types.EntityID
	BatchID     types.BatchID
	ScanType    types.ScanType
	Success     bool
	Error       string
	Report      *AnalysisReport
	CreditsUsed float64
	ScannedAt   time.Time
}
