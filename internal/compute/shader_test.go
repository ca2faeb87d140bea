package compute

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spirvBytes(words ...uint32) []byte {
	out := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}
	return out
}

func TestParseSPIRV(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    []uint32
		wantErr bool
	}{
		{name: "valid header", data: spirvBytes(spirvMagic, 0x00010500, 0, 8, 0), want: []uint32{spirvMagic, 0x00010500, 0, 8, 0}},
		{name: "empty", data: nil, wantErr: true},
		{name: "unaligned length", data: append(spirvBytes(spirvMagic), 0x01), wantErr: true},
		{name: "bad magic", data: spirvBytes(0xdeadbeef, 1), wantErr: true},
		{name: "big endian magic", data: []byte{0x07, 0x23, 0x02, 0x03}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSPIRV(tt.data)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrShaderLoad))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadShader(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.spv")
	require.NoError(t, os.WriteFile(good, spirvBytes(spirvMagic, 0x00010000, 0, 1, 0), 0o644))
	words, err := LoadShader(good)
	require.NoError(t, err)
	assert.Len(t, words, 5)

	bad := filepath.Join(dir, "bad.spv")
	require.NoError(t, os.WriteFile(bad, []byte("#version 450\n"), 0o644))
	_, err = LoadShader(bad)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShaderLoad))

	_, err = LoadShader(filepath.Join(dir, "missing.spv"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShaderLoad))
	assert.True(t, IsKind(err, KindResourceCreation))
}
