//go:build !embedspv

package shaders

// Embedded returns nil; build with -tags embedspv to compile the SPIR-V in.
func Embedded() []byte { return nil }
