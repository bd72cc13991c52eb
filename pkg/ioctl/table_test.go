package ioctl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTable(t *testing.T) {
	table, err := NewTable(40000,
		Op{Name: "version", Function: 0x800},
		Op{Name: "read", Function: 0x821},
		Op{Name: "port", Function: 0x831, Access: Read},
	)
	require.NoError(t, err)

	code, ok := table.Code("read")
	require.True(t, ok)
	assert.Equal(t, Code(0x9C402084), code)

	_, ok = table.Code("missing")
	assert.False(t, ok)

	op, ok := table.Lookup(code)
	require.True(t, ok)
	assert.Equal(t, "read", op.Name)

	assert.Equal(t, uint32(40000), table.DeviceType())
}

func TestNewTableRejectsCollisions(t *testing.T) {
	tests := []struct {
		name string
		ops  []Op
	}{
		{
			name: "same tuple",
			ops: []Op{
				{Name: "a", Function: 0x800},
				{Name: "b", Function: 0x800},
			},
		},
		{
			name: "duplicate name",
			ops: []Op{
				{Name: "a", Function: 0x800},
				{Name: "a", Function: 0x801},
			},
		},
		{
			name: "empty name",
			ops: []Op{
				{Function: 0x800},
			},
		},
		{
			name: "function overflow",
			ops: []Op{
				{Name: "a", Function: 0x1800},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTable(40000, tt.ops...)
			assert.Error(t, err)
		})
	}
}

func TestDistinctTuplesDoNotCollide(t *testing.T) {
	// Same function, differing method or access, must yield distinct codes.
	_, err := NewTable(40000,
		Op{Name: "a", Function: 0x800, Method: Buffered, Access: Any},
		Op{Name: "b", Function: 0x800, Method: Neither, Access: Any},
		Op{Name: "c", Function: 0x800, Method: Buffered, Access: Write},
	)
	assert.NoError(t, err)
}

func TestMustTablePanics(t *testing.T) {
	assert.Panics(t, func() {
		MustTable(40000, Op{Name: "a", Function: 0x800}, Op{Name: "b", Function: 0x800})
	})
}

func TestOpsSorted(t *testing.T) {
	table := MustTable(1,
		Op{Name: "c", Function: 3},
		Op{Name: "a", Function: 1},
		Op{Name: "b", Function: 2},
	)
	ops := table.Ops()
	require.Len(t, ops, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{ops[0].Name, ops[1].Name, ops[2].Name})
}
