// Package config loads and validates the global configuration stored at
// <repo>/config.yaml.
//
// Load applies defaults for unset fields and runs struct validation, so
// callers always see a normalized Config. Save keeps the written file
// byte-stable across runs by marshalling through yamlutil. The Enabled
// helper is how the engine and commands decide which providers run on
// this device.
package config
