package tradefin

import "github.com/xraph/tradefin/id"

// ID is the identifier type shared by every tradefin record.
type ID = id.ID

// EntityID identifies a ledger participant.
type EntityID = id.EntityID

// NewEntityID returns a fresh participant ID.
var NewEntityID = id.NewEntityID
