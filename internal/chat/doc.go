// Package chat implements the room and presence coordinator for the chat
// service.
//
// A Coordinator owns the registry of connections to users and the set of
// active room names. It never touches sockets itself: every outbound event
// goes through a Transport, which also owns room membership. A Router binds
// inbound event names to coordinator operations and wraps each binding with
// Contain so a failing handler is logged instead of taking the process down.
//
// The Coordinator is not safe for concurrent use. Callers must drive it from
// a single goroutine; the server package does this from the hub's event loop.
package chat
