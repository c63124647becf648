package stabledebt

import "github.com/0xAtharva/stabledebt/types"

// Re-export common types for convenience so users don't have to import types package.

// Entity is re-exported from types package.
type Entity = types.Entity

// Re-export fixed-point helpers
var (
	RayMul             = types.RayMul
	RayDiv             = types.RayDiv
	WadToRay           = types.WadToRay
	RayToWad           = types.RayToWad
	CompoundedInterest = types.CompoundedInterest
	CompoundBalance    = types.CompoundBalance
)

// Re-export Entity constructor
var NewEntity = types.NewEntity
