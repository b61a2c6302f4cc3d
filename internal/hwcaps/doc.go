// Package hwcaps probes which hardware encode backends actually work on this
// host by running short test encodes, and caches the result as an immutable
// snapshot. Probe failures are recorded as non-working capabilities, never
// surfaced as errors.
package hwcaps
