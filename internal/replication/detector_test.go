package replication

import (
	"testing"

	"github.com/rawblock/bff-engine/pkg/models"
)

func program(b byte) models.Program {
	var p models.Program
	for i := range p {
		p[i] = b
	}
	return p
}

func TestClassify(t *testing.T) {
	a := program(0xAA)
	b := program(0xBB)

	tests := []struct {
		name           string
		a, b, ap, bp   models.Program
		want           models.ReplicationKind
	}{
		{"A replicates over B", a, b, a, a, models.ReplicationAExact},
		{"B replicates over A", a, b, b, b, models.ReplicationBExact},
		{"no replication", a, b, a, b, models.ReplicationNone},
		{"garbage output", a, b, program(0x01), program(0x02), models.ReplicationNone},
		{"tie A==B prefers A_exact", a, a, a, a, models.ReplicationAExact},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.a, tt.b, tt.ap, tt.bp)
			if got.Kind != tt.want {
				t.Errorf("Classify() = %v, want %v", got.Kind, tt.want)
			}
		})
	}
}
