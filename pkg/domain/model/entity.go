package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/repolens/repolens/pkg/domain/types"
)

// Entity represents a tracked repository
type Entity struct {
	ID        types.EntityID
	Owner     string
	Name      string
	Stars     int
	Forks     int
	Watchers  int
	Archived  bool
	Fork      bool
	PushedAt  time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (x *Entity) Validate() error {
	if x.ID == "" {
		return goerr.Wrap(types.ErrValidationFailed, "entity ID is empty")
	}
	if x.Owner == "" || x.Name == "" {
		return goerr.Wrap(types.ErrValidationFailed, "entity owner/name is empty",
			goerr.V("id", x.ID),
		)
	}
	return nil
}

// TierAssignment is the derived tier record of one entity. Each entity has
// at most one assignment, and once classified the tier is always one of
// {1, 2, 3}.
type TierAssignment struct {
	EntityID        types.EntityID
	Tier            types.Tier
	Stars           int
	GrowthVelocity  float64 // stars per day since the previous assignment
	EngagementScore float64 // 0..1
	ScanPriority    float64
	LastDeepScanAt  *time.Time
	LastBasicScanAt *time.Time
	UpdatedAt       time.Time
}

func (x *TierAssignment) Validate() error {
	if x.EntityID == "" {
		return goerr.Wrap(types.ErrValidationFailed, "entity ID is empty")
	}
	if !x.Tier.Valid() {
		return goerr.Wrap(types.ErrValidationFailed, "invalid tier",
			goerr.V("entityID", x.EntityID),
			goerr.V("tier", x.Tier),
		)
	}
	return nil
}

// LastScanAt returns the last scan timestamp of the given scan type, or nil
// if the entity has never been scanned with it.
func (x *TierAssignment) LastScanAt(scanType types.ScanType) *time.Time {
	if scanType == types.ScanTypeDeep {
		return x.LastDeepScanAt
	}
	return x.LastBasicScanAt
}
