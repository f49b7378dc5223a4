// Package ws streams registry change events to WebSocket clients.
//
// Each connection gets a bounded queue; a slow client loses events rather
// than stalling reloads, and the next delivered event reports how many
// were dropped.
package ws
