// Package config defines the aggmesh-server configuration.
//
//   - spec.go: ServerConfig struct definition
//   - default.go: default values
//   - verify.go: validation (addresses, retry bounds, secrets)
//
// Configuration is loaded via internal/infra/confloader from file,
// environment and CLI flags.
package config
