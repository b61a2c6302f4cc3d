// Package api defines transport-friendly views of jobs, media, hardware
// capabilities, and events, shared by the IPC layer and the CLI.
package api
