package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTable_Cost(t *testing.T) {
	tbl := NewTable()
	tbl.Set(ModelPrice{Provider: "p", Model: "m", InputCentsPer1K: 10, OutputCentsPer1K: 30})

	tests := []struct {
		name     string
		in, out  int
		expected int64
	}{
		{name: "exact thousands", in: 1000, out: 1000, expected: 40},
		{name: "rounds up per direction", in: 100, out: 1, expected: 2}, // 1 cent in, 0.03 -> 1 cent out
		{name: "zero tokens", in: 0, out: 0, expected: 0},
		{name: "large counts", in: 10_000, out: 2_000, expected: 160},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tbl.Cost("p", "m", tt.in, tt.out))
		})
	}
}

func TestTable_UnknownModelCostsZero(t *testing.T) {
	tbl := NewTable()
	assert.Zero(t, tbl.Cost("nobody", "no-model", 5000, 5000))
}

func TestTable_Update(t *testing.T) {
	tbl := NewTable()
	tbl.Update([]ModelPrice{
		{Provider: "p", Model: "m", InputCentsPer1K: 100, OutputCentsPer1K: 100},
	})
	p, ok := tbl.Get("p", "m")
	assert.True(t, ok)
	assert.EqualValues(t, 100, p.InputCentsPer1K)
	assert.EqualValues(t, 200, tbl.Cost("p", "m", 1000, 1000))
}
