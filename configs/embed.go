package configs

import _ "embed"

// DefaultConfig is the shipped config.yaml written on first start.
//
//go:embed config.yaml
var DefaultConfig []byte
