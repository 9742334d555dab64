// Package cycle matches a time-ordered event sequence into ping-pong cycles.
//
// A cycle is four phases observed on one socket: the initiator's send entry
// and exit (initiator -> responder), then the receive entry and exit of the
// reply (responder -> initiator). Matching is an explicit state machine:
//
//	SeekingStart -> AwaitSendExit -> AwaitRecvEntry -> AwaitRecvExit -> Sealed
//
// Step is the pure transition function. Extractor drives it over a sequence
// in tolerant or strict mode, and Strategy adds the one-shot directional
// fallback used when the configured initiator produced no cycles.
package cycle
