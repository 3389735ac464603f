package types

import (
	"log/slog"

	"github.com/google/uuid"
)

type (
	EntityID    string
	BatchID     string
	RequestID   string
	ServiceName string
	SourceToken string
	AnalysisKey string
)

// NewBatchID issues a new unique batch ID
func NewBatchID() BatchID {
	return BatchID(uuid.NewString())
}

// NewRequestID issues a new unique request ID
func NewRequestID() RequestID {
	return RequestID(uuid.NewString())
}

const (
	ServiceSource   ServiceName = "source"
	ServiceAnalysis ServiceName = "analysis"
)

// Tier is a priority bucket of an entity. Tier 1 is the highest priority
// and tier 3 is the catch-all.
type Tier int

const (
	Tier1 Tier = 1
	Tier2 Tier = 2
	Tier3 Tier = 3
)

func (x Tier) Valid() bool {
	return x == Tier1 || x == Tier2 || x == Tier3
}

// AllTiers lists tiers in precedence order, tier 1 first.
func AllTiers() []Tier {
	return []Tier{Tier1, Tier2, Tier3}
}

type BatchStatus string

const (
	BatchStatusPending   BatchStatus = "pending"
	BatchStatusRunning   BatchStatus = "running"
	BatchStatusDegraded  BatchStatus = "degraded"
	BatchStatusCritical  BatchStatus = "critical"
	BatchStatusStopped   BatchStatus = "stopped"
	BatchStatusCompleted BatchStatus = "completed"
)

// Terminal returns true if no further entity processing happens in this status
func (x BatchStatus) Terminal() bool {
	return x == BatchStatusStopped || x == BatchStatusCompleted
}

type ScanType string

const (
	ScanTypeBasic ScanType = "basic"
	ScanTypeDeep  ScanType = "deep"
)

type ScanMode string

const (
	ScanModeNormal ScanMode = "normal"
	ScanModeForce  ScanMode = "force"
)

func (x ScanMode) Valid() bool {
	return x == ScanModeNormal || x == ScanModeForce
}

func (x SourceToken) LogValue() slog.Value {
	return slog.StringValue("***********")
}

func (x SourceToken) String() string {
	return "***********"
}

func (x AnalysisKey) LogValue() slog.Value {
	return slog.StringValue("***********")
}

func (x AnalysisKey) String() string {
	return "***********"
}
