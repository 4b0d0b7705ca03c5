package main

import _ "embed"

// embeddedConfig holds the YAML configuration embedded at build time.
// Deployments overwrite embed_config.yaml with site settings before
// compiling; an external file or the environment still overrides it.
//
//go:embed embed_config.yaml
var embeddedConfig []byte
