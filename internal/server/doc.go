// Package server implements the HTTP listener that receives pushed audio,
// the monitoring and playback-control endpoints, and the socket.io gateway
// that forwards runtime events to presentation clients.
package server
