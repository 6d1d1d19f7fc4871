// Package rtpserial implements serial number arithmetic (RFC 1982) for
// the 16-bit RTP sequence number space and the 32-bit RTP timestamp space.
//
// Naive unsigned subtraction breaks near wraparound; every comparison and
// difference in this module and its callers must go through here instead.
package rtpserial

// LessSeq reports whether sequence number a precedes b in serial order.
func LessSeq(a, b uint16) bool {
	return int16(a-b) < 0
}

// LessEqualSeq reports whether a precedes or equals b in serial order.
func LessEqualSeq(a, b uint16) bool {
	return a == b || LessSeq(a, b)
}

// DiffSeq returns the signed serial distance b-a, i.e. how many steps
// forward from a reach b (negative if b precedes a).
func DiffSeq(a, b uint16) int32 {
	return int32(int16(b - a))
}

// DiffTimestamp returns the unsigned forward distance from a to b,
// i.e. (b-a) mod 2^32, which is what RFC 1982 calls for when the two
// timestamps are known to be close together (no ambiguous half-circle
// case can arise for a bounded history window).
func DiffTimestamp(a, b uint32) uint32 {
	return b - a
}
