package compute

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// a table shaped like a typical discrete GPU
var discreteTable = MemoryTable{
	{Flags: MemoryDeviceLocal, HeapIndex: 0},
	{Flags: MemoryHostVisible | MemoryHostCoherent, HeapIndex: 1},
	{Flags: MemoryHostVisible | MemoryHostCoherent | MemoryHostCached, HeapIndex: 1},
	{Flags: MemoryDeviceLocal | MemoryHostVisible | MemoryHostCoherent, HeapIndex: 2},
}

func TestFindMemoryType(t *testing.T) {
	tests := []struct {
		name     string
		table    MemoryTable
		typeBits uint32
		want     MemoryFlags
		index    uint32
		wantErr  bool
	}{
		{
			name:     "device local picks lowest index",
			table:    discreteTable,
			typeBits: 0b1111,
			want:     MemoryDeviceLocal,
			index:    0,
		},
		{
			name:     "requirement mask excludes lower index",
			table:    discreteTable,
			typeBits: 0b1000,
			want:     MemoryDeviceLocal,
			index:    3,
		},
		{
			name:     "upload staging",
			table:    discreteTable,
			typeBits: 0b1111,
			want:     uploadStagingProps,
			index:    1,
		},
		{
			name:     "download staging needs cached",
			table:    discreteTable,
			typeBits: 0b1111,
			want:     downloadStagingProps,
			index:    2,
		},
		{
			name:     "no flags matches first allowed type",
			table:    discreteTable,
			typeBits: 0b0100,
			want:     0,
			index:    2,
		},
		{
			name:     "flags unsatisfiable",
			table:    discreteTable,
			typeBits: 0b0011,
			want:     downloadStagingProps,
			wantErr:  true,
		},
		{
			name:     "empty mask",
			table:    discreteTable,
			typeBits: 0,
			want:     MemoryDeviceLocal,
			wantErr:  true,
		},
		{
			name:     "empty table",
			table:    nil,
			typeBits: ^uint32(0),
			want:     0,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			index, err := FindMemoryType(tt.table, tt.typeBits, tt.want)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrNoCompatibleMemoryType))
				assert.True(t, IsKind(err, KindMemoryType))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.index, index)
			assert.NotZero(t, tt.typeBits&(1<<index), "chosen index must be allowed by the mask")
			assert.True(t, tt.table[index].Flags.Has(tt.want), "chosen flags must include the wanted flags")
		})
	}
}

func TestFindMemoryTypeIsDeterministic(t *testing.T) {
	for i := 0; i < 10; i++ {
		index, err := FindMemoryType(discreteTable, 0b1110, MemoryHostVisible)
		require.NoError(t, err)
		assert.Equal(t, uint32(1), index)
	}
}

func TestMemoryFlagsString(t *testing.T) {
	assert.Equal(t, "none", MemoryFlags(0).String())
	assert.Equal(t, "DEVICE_LOCAL", MemoryDeviceLocal.String())
	assert.Equal(t, "HOST_VISIBLE|HOST_COHERENT|HOST_CACHED", downloadStagingProps.String())
	assert.Equal(t, "DEVICE_LOCAL|0x100", (MemoryDeviceLocal | 0x100).String())
}

func TestMemoryFlagsHas(t *testing.T) {
	f := MemoryHostVisible | MemoryHostCoherent
	assert.True(t, f.Has(MemoryHostVisible))
	assert.True(t, f.Has(uploadStagingProps))
	assert.False(t, f.Has(downloadStagingProps))
	assert.True(t, f.Has(0))
}
