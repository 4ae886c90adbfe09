// Package port connects a bus.Port to the physical bus: a local serial adapter, a network bridge
// speaking WebSocket, or a raw TCP adapter such as ser2net.
//
// All ports pass bytes through unchanged. The bus echoes every byte sent, so a port must not
// filter its own output.
package port
