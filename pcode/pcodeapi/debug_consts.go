// Package pcodeapi collects the debug-trace switches used across the pcode
// package, grounded on wazevoapi's "disabled by default, flip to iterate on
// debugging" idiom (internal/engine/wazevo/wazevoapi/debug_consts.go).
package pcodeapi

// These consts must be disabled by default. Enable them only when debugging
// a specific lift.
const (
	// TraceLowering logs every p-code op as OpLowerer dispatches it.
	TraceLowering = false
	// TraceClaims logs ClaimContext activity: each claim_eq recorded and
	// each successful lookup of a claimed offset.
	TraceClaims = false
	// PrintLoweredIR dumps the Function via ir.Function.String after each
	// p-code op Lift lowers.
	PrintLoweredIR = false
)
