package stabledebt

import "github.com/0xAtharva/stabledebt/id"

// ID is the primary identifier type for journaled records.
type ID = id.ID

// Prefix identifies the record type encoded in a TypeID.
type Prefix = id.Prefix
