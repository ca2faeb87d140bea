//go:build embedspv

package shaders

import _ "embed"

//go:embed matmul.comp.spv
var embedded []byte

// Embedded returns the SPIR-V compiled into the binary. The embedspv tag
// needs matmul.comp.spv to exist at build time: run go generate ./shaders
// first or the embed directive fails to compile.
func Embedded() []byte { return embedded }
