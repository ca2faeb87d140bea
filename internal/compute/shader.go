package compute

import (
	"encoding/binary"
	"fmt"
	"os"
)

// spirvMagic is the first word of every SPIR-V module.
const spirvMagic = 0x07230203

// LoadShader reads a compiled SPIR-V artifact from path.
func LoadShader(path string) ([]uint32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newError(KindResourceCreation, "load shader", fmt.Errorf("%w: %v", ErrShaderLoad, err))
	}
	return ParseSPIRV(data)
}

// ParseSPIRV converts a little-endian SPIR-V byte stream into words. The
// length must be a nonzero multiple of four and the first word must be the
// SPIR-V magic number.
func ParseSPIRV(data []byte) ([]uint32, error) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, newError(KindResourceCreation, "parse shader",
			fmt.Errorf("%w: length %d is not a nonzero multiple of 4", ErrShaderLoad, len(data)))
	}
	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	if words[0] != spirvMagic {
		return nil, newError(KindResourceCreation, "parse shader",
			fmt.Errorf("%w: bad magic 0x%08x", ErrShaderLoad, words[0]))
	}
	return words, nil
}
