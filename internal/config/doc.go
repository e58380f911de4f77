// Package config loads, normalizes, and validates fanboxed configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// FANBOX_SESSID. Archive naming templates are rendered against a sample post
// during validation so a malformed template is reported before any download
// starts.
//
// Always obtain settings through this package so downstream code receives
// expanded paths, canonical log formats, and clear validation errors.
package config
