// Package presets loads and validates the transcode profile catalogue from
// the operator-managed presets JSON file.
package presets
