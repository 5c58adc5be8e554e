// Package replication implements the byte-exact replication detector
// (§4.2): classifying a (A,B) -> (A',B') transition as exact self-copy by
// one side, the other, or neither.
//
// Grounded on the teacher's exact-match branch style in
// internal/heuristics/change_detection.go (straight-line equality checks,
// no thresholds or similarity scoring).
package replication

import "github.com/rawblock/bff-engine/pkg/models"

// Classify reports the replication kind of one pairwise trial. Both
// conditions can only match simultaneously when a==b; A_exact is checked
// first and takes precedence on that tie, per §4.2 and §9's preserved
// "Open question" on detector ambiguity.
func Classify(a, b, aPrime, bPrime models.Program) models.ReplicationEvent {
	if aPrime == a && bPrime == a {
		return models.ReplicationEvent{Kind: models.ReplicationAExact}
	}
	if aPrime == b && bPrime == b {
		return models.ReplicationEvent{Kind: models.ReplicationBExact}
	}
	return models.ReplicationEvent{Kind: models.ReplicationNone}
}
