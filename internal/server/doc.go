// Package server is the network side of the room chat service.
//
// It upgrades HTTP requests to WebSockets, runs per-connection read and write
// pumps, and owns the hub: a single event loop that keeps the room
// membership index and feeds every inbound event to the chat coordinator.
// The package also serves the health check, file uploads and the uploaded
// files themselves.
package server
