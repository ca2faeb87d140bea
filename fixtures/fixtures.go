package fixtures

import (
	_ "embed"
)

// ConfigTemplate is written by `vkmatmul init`.
//
//go:embed config/config.yaml.template
var ConfigTemplate []byte
