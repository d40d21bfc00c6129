// Package ws implements the echo chat server side of the WebSocket protocol.
//
// The package implements:
//   - Hub: the set of connected clients and broadcast fan-out
//   - Handler: upgrades requests and runs each client's read and write pumps
//   - Service: wires a Hub and Handler to a history store
//
// Protocol: every frame is text. The literal frame "history" is answered,
// to the requesting client only, with a JSON array holding the newest
// stored messages oldest first. Any other text is stored and broadcast to
// every client with its characters reversed. Binary frames are ignored.
package ws
