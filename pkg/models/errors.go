package models

import "errors"

// Sentinel errors for boundary checks (§7). Callers use errors.Is against
// these rather than string matching.
var (
	// ErrInvalidInput covers malformed tape/program lengths, odd or
	// sub-minimum population sizes, role ratios that don't sum to 1.0,
	// negative refractory periods, and out-of-range cache parameters.
	ErrInvalidInput = errors.New("invalid input")

	// ErrPolicyRejected names a rejected policy/rule expression. The
	// policy package does not wrap it: compile rejections are reported as
	// *policy.PolicyError and evaluation failures as plain wrapped errors.
	ErrPolicyRejected = errors.New("policy rejected")

	// ErrNoKings marks an empty king population passed to an operation
	// that requires at least one target (pick_target_king, §4.6).
	ErrNoKings = errors.New("no kings available")
)
