package audithook

// Action constants for audit events.
const (
	// Debt actions
	ActionDebtMinted     = "debt.minted"
	ActionDebtBurned     = "debt.burned"
	ActionPositionClosed = "position.closed"

	// Cross-chain actions
	ActionCrossChainSync = "crosschain.sync"
)

// Resource constants for audit events.
const (
	ResourceDebt     = "debt"
	ResourcePosition = "position"
	ResourceSupply   = "supply"
)

// Category constants for audit events.
const (
	CategoryAccounting = "accounting"
	CategoryBridge     = "bridge"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
