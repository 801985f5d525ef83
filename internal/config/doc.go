// Package config loads, normalizes, and validates reelforge configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks for
// collaborator credentials such as REELFORGE_SYNTHESIS_API_KEY. Always obtain
// settings through this package so downstream code receives absolute paths,
// canonical log formats, and clear validation errors.
package config
