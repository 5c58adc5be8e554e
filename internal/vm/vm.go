// Package vm implements the Layer A substrate: a deterministic 10-opcode,
// two-head, 128-byte self-modifying virtual machine.
//
// Grounded on the teacher's register-opcode dispatch idiom
// (other_examples/sentra-language-sentra's vmregister bytecode table) and
// on internal/heuristics/ssmp.go's bounded, pure state-machine style.
package vm

import "github.com/rawblock/bff-engine/pkg/models"

// Opcode byte values. All other byte values are no-ops that advance pc by
// one (§4.1); there is deliberately no "default" bucket of named opcodes
// beyond these ten.
const (
	OpHead0Inc  byte = '>' // 0x3E
	OpHead0Dec  byte = '<' // 0x3C
	OpHead1Inc  byte = '}' // 0x7D
	OpHead1Dec  byte = '{' // 0x7B
	OpInc       byte = '+' // 0x2B
	OpDec       byte = '-' // 0x2D
	OpCopyTo1   byte = '.' // 0x2E
	OpCopyTo0   byte = ',' // 0x2C
	OpJumpFwd   byte = '[' // 0x5B
	OpJumpBack  byte = ']' // 0x5D
)

// DefaultStepLimit is the conventional finite-execution guard used
// throughout the substrate's own tests and the assay harness (§6).
const DefaultStepLimit = 8192

// Run executes tape under the 10-opcode ISA until it halts, starting at
// pc=0 with the given head positions. It is a pure function of its
// inputs: tape is passed by value, so Run mutates its own copy and returns
// it as RunResult.Tape; the caller's array is not modified. No I/O, no
// randomness (§4.1 "Contract").
func Run(tape models.Tape, stepLimit, initHead0, initHead1 int) models.RunResult {
	pc := 0
	head0 := initHead0
	head1 := initHead1
	steps := 0

	for {
		if pc < 0 || pc >= models.TapeSize {
			return models.RunResult{Tape: tape, Steps: steps, Halt: models.HaltPcOob}
		}
		if steps >= stepLimit {
			return models.RunResult{Tape: tape, Steps: steps, Halt: models.HaltStepLimit}
		}

		op := tape[pc]
		steps++

		switch op {
		case OpHead0Inc:
			head0++
			if head0 < 0 || head0 >= models.TapeSize {
				return models.RunResult{Tape: tape, Steps: steps, Halt: models.HaltOobHead0}
			}
			pc++
		case OpHead0Dec:
			head0--
			if head0 < 0 || head0 >= models.TapeSize {
				return models.RunResult{Tape: tape, Steps: steps, Halt: models.HaltOobHead0}
			}
			pc++
		case OpHead1Inc:
			head1++
			if head1 < 0 || head1 >= models.TapeSize {
				return models.RunResult{Tape: tape, Steps: steps, Halt: models.HaltOobHead1}
			}
			pc++
		case OpHead1Dec:
			head1--
			if head1 < 0 || head1 >= models.TapeSize {
				return models.RunResult{Tape: tape, Steps: steps, Halt: models.HaltOobHead1}
			}
			pc++
		case OpInc:
			tape[head0] = tape[head0] + 1
			pc++
		case OpDec:
			tape[head0] = tape[head0] - 1
			pc++
		case OpCopyTo1:
			tape[head1] = tape[head0]
			pc++
		case OpCopyTo0:
			tape[head0] = tape[head1]
			pc++
		case OpJumpFwd:
			if tape[head0] == 0 {
				target, ok := matchForward(tape, pc)
				if !ok {
					return models.RunResult{Tape: tape, Steps: steps, Halt: models.HaltUnmatchedBracket, OriginPC: pc}
				}
				pc = target + 1
			} else {
				pc++
			}
		case OpJumpBack:
			if tape[head0] != 0 {
				target, ok := matchBackward(tape, pc)
				if !ok {
					return models.RunResult{Tape: tape, Steps: steps, Halt: models.HaltUnmatchedBracket, OriginPC: pc}
				}
				pc = target + 1
			} else {
				pc++
			}
		default:
			pc++
		}
	}
}

// matchForward scans forward from a '[' at index pc for its matching ']',
// tracking nesting depth so inner bracket pairs don't terminate the scan
// early.
func matchForward(tape models.Tape, pc int) (int, bool) {
	depth := 0
	for i := pc; i < models.TapeSize; i++ {
		switch tape[i] {
		case OpJumpFwd:
			depth++
		case OpJumpBack:
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// matchBackward scans backward from a ']' at index pc for its matching
// '[', symmetric to matchForward.
func matchBackward(tape models.Tape, pc int) (int, bool) {
	depth := 0
	for i := pc; i >= 0; i-- {
		switch tape[i] {
		case OpJumpBack:
			depth++
		case OpJumpFwd:
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
