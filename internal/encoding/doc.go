// Package encoding turns a (media item, preset, capability snapshot) triple
// into an ordered ffmpeg invocation, supervises the resulting process, and
// gates original-file disposition behind output verification.
package encoding
