// Package analytics computes aggregate statistics over a soup population:
// Shannon entropy, zlib compression ratio, opcode histogram, top-K
// programs, and Hamming distance (§4.5).
//
// Grounded on internal/heuristics/entropy_analysis.go's Boltzmann-entropy
// style (log2-based information measures over a population of objects)
// and internal/metrics/clustering.go's numeric-aggregate-over-a-slice
// idiom.
package analytics

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"math"
	"sort"

	"github.com/rawblock/bff-engine/internal/vm"
	"github.com/rawblock/bff-engine/pkg/models"
)

// Concat flattens a population into one byte sequence S of length 64*N,
// the unit §4.5's entropy/compression/histogram computations operate on.
func Concat(population []models.Program) []byte {
	buf := make([]byte, 0, len(population)*models.ProgramSize)
	for _, p := range population {
		buf = append(buf, p[:]...)
	}
	return buf
}

// ShannonEntropy returns the Shannon entropy in bits of s's byte
// histogram. 0 for empty input.
func ShannonEntropy(s []byte) float64 {
	if len(s) == 0 {
		return 0
	}
	var hist [256]int
	for _, b := range s {
		hist[b]++
	}
	total := float64(len(s))
	entropy := 0.0
	for _, count := range hist {
		if count == 0 {
			continue
		}
		p := float64(count) / total
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// CompressionRatio returns the zlib-level-9 compressed length of s divided
// by len(s). Exactly 1.0 for empty input.
func CompressionRatio(s []byte) float64 {
	if len(s) == 0 {
		return 1.0
	}

	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		// BestCompression is always a valid level; this path is
		// unreachable in practice.
		return 1.0
	}
	_, _ = w.Write(s)
	_ = w.Close()

	return float64(buf.Len()) / float64(len(s))
}

// opcodeBytes is the fixed ISA byte set §4.1/§4.5 require the histogram
// to be computed over.
var opcodeBytes = [10]byte{
	vm.OpHead0Inc, vm.OpHead0Dec, vm.OpHead1Inc, vm.OpHead1Dec,
	vm.OpInc, vm.OpDec, vm.OpCopyTo1, vm.OpCopyTo0, vm.OpJumpFwd, vm.OpJumpBack,
}

// OpcodeHistogram counts, across every byte of every program, how many
// times each of the 10 opcode bytes appears.
func OpcodeHistogram(population []models.Program) map[byte]int {
	hist := make(map[byte]int, len(opcodeBytes))
	for _, op := range opcodeBytes {
		hist[op] = 0
	}
	for _, prog := range population {
		for _, b := range prog {
			if _, isOpcode := hist[b]; isOpcode {
				hist[b]++
			}
		}
	}
	return hist
}

// ProgramCount pairs a program with its occurrence count and the index of
// its first occurrence, the tie-break key for TopK.
type ProgramCount struct {
	Program    models.Program
	Count      int
	FirstIndex int
}

// TopK returns the k most frequent exact 64-byte programs, ties broken by
// first-occurrence order (§4.5).
func TopK(population []models.Program, k int) []ProgramCount {
	type entry struct {
		count      int
		firstIndex int
	}
	seen := make(map[models.Program]*entry)
	for i, prog := range population {
		if e, ok := seen[prog]; ok {
			e.count++
		} else {
			seen[prog] = &entry{count: 1, firstIndex: i}
		}
	}

	counts := make([]ProgramCount, 0, len(seen))
	for prog, e := range seen {
		counts = append(counts, ProgramCount{Program: prog, Count: e.count, FirstIndex: e.firstIndex})
	}

	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].FirstIndex < counts[j].FirstIndex
	})

	if k > len(counts) {
		k = len(counts)
	}
	return counts[:k]
}

// HammingDistance counts differing bytes between two equal-length byte
// sequences. Undefined (an error) for unequal lengths, per §4.5.
func HammingDistance(a, b []byte) (int, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("analytics: hamming distance requires equal-length sequences, got %d and %d: %w", len(a), len(b), models.ErrInvalidInput)
	}
	dist := 0
	for i := range a {
		if a[i] != b[i] {
			dist++
		}
	}
	return dist, nil
}
