// Package config loads and validates HomeLink Core configuration.
//
// Configuration is layered: hardcoded defaults, then a YAML file, then
// HOMELINK_* environment variable overrides. Validation runs after all
// layers are applied so a misconfigured hub fails fast at boot.
package config
