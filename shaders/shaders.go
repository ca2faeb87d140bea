// Package shaders holds the compute shader for the matrix multiply and
// locates its compiled SPIR-V.
package shaders

//go:generate glslc -O --target-env=vulkan1.2 -fshader-stage=comp matmul.comp -o matmul.comp.spv

import (
	"os"
	"path/filepath"
	"runtime"
)

// FileName is the compiled artifact produced by go generate.
const FileName = "matmul.comp.spv"

// EnvPath overrides the artifact location in DefaultPath.
const EnvPath = "VKMATMUL_SHADER"

// Dir returns the directory holding this package's sources.
func Dir() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "shaders"
	}
	return filepath.Dir(file)
}

// DefaultPath returns $VKMATMUL_SHADER if set, otherwise the compiled
// artifact next to the shader source.
func DefaultPath() string {
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	return filepath.Join(Dir(), FileName)
}

// Available reports whether a compiled shader can be found, either
// embedded or at DefaultPath.
func Available() bool {
	if len(Embedded()) > 0 {
		return true
	}
	_, err := os.Stat(DefaultPath())
	return err == nil
}
