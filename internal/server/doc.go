// Package server wires and runs the relay's HTTP transport.
//
// It owns lifecycle orchestration: startup, signal handling, the periodic
// room sweep, and graceful shutdown.
package server
