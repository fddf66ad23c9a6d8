// Package configx loads process configuration from layered key/value sources
// and binds it into typed settings structs.
//
// # Overview
//
// Sources produce flat snapshots of UPPER_SNAKE keys. The environment, dotenv
// files and YAML files (nested keys flattened) are supported, plus a fixed map
// for tests. Snapshots merge in order with later sources winning; an empty
// value never overrides a non-empty one.
//
// Binding is driven by struct tags:
//
//   - env:"KEY" names the key, default:"v" supplies a fallback
//   - envPrefix:"P_" on a nested struct or pointer-to-struct prepends P_
//   - a pointer-to-struct section stays nil unless one of its keys is present
//
// The nil-section rule is what lets AppSettings.Resources say which backends
// to construct: set MYSQL_DSN and the MySQL section appears; leave every
// MYSQL_* key unset and it does not.
//
// Durations accept Go syntax ("1m30s") or bare seconds ("0.5"). String slices
// are comma separated.
//
// # Validation
//
// Load runs go-playground/validator after binding. Failures carry the
// INVALID_ARGUMENT code from core/errors.
//
// # Hot Reload
//
// NewManager keeps sources watched and rebinds targets registered with
// WithUpdateCallback after a debounce.
//
// # Usage
//
//	var cfg configx.AppSettings
//	if err := configx.Load(ctx, &cfg, configx.WithFiles(".env", "orchid.yaml")); err != nil {
//		return err
//	}
package configx
