// Package wire defines the binary packet protocol spoken between raft peers.
//
// Every message consists of a fixed-size header (message type, stream flags,
// payload length) followed by a payload whose layout depends on the message
// type. Payloads larger than one packet's capacity are chunked across
// multiple packets: the first chunk carries FlagStreamStart, the last
// FlagStreamEnd, and follow-on packets of the same logical message use the
// Continue message type. The transport never reorders packets on a
// connection, so receivers reconstruct chunked payloads deterministically.
//
// All encoders write into caller-supplied buffers and never grow them; a
// payload that does not fit is reported as an error so the caller can chunk
// or reject.
package wire
