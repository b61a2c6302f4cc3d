// Package daemon wires the stores, the hardware detector, and the scheduler
// into one long-lived process, guarded by a lock file so only a single
// instance runs per machine.
package daemon
