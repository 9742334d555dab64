// Package event defines the socket event record emitted by the capture
// program and the line grammars used to read it.
//
// Two grammars are understood:
//
//	ts:<ns> sock:<id> pid:<pid> type:<kind> srtt:<us> <src>:<port> -> <dst>:<port>
//	ts:<ns> pid:<pid> type:<kind>
//
// The first is the full capture log consumed by the batch analyzer. The
// second is the reduced form consumed by the live matcher. Lines that do not
// match are dropped without error.
package event
