package tradefin

import "github.com/xraph/tradefin/types"

// Re-export common types so callers rarely need the types package.

// Money is re-exported from types package.
type Money = types.Money

// Entity is re-exported from types package.
type Entity = types.Entity

// Re-export Money constructors
var (
	Cents      = types.Cents
	Zero       = types.Zero
	Sum        = types.Sum
	ParseMoney = types.Parse
)
