// Package rtprtxerrors declares the error kinds a retransmission core can
// return. Every other rejection described by the error-handling design
// (unknown SSRC on request, conflicting request, unassociable RTX packet)
// is a silent no-op observable only through counters and logs, not an
// error value — see spec section 7.
package rtprtxerrors

import "fmt"

// ErrMalformedPacket is returned when an RTX payload is shorter than the
// 2-byte OSN and so cannot be treated as a valid RTX packet.
type ErrMalformedPacket struct {
	Reason string
}

func (e ErrMalformedPacket) Error() string {
	return fmt.Sprintf("malformed packet: %s", e.Reason)
}

// ErrConfigInvalid is returned by configuration parsing at the
// validation boundary, before the value is ever stored.
type ErrConfigInvalid struct {
	Field  string
	Reason string
}

func (e ErrConfigInvalid) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ErrSSRCExhausted is returned when the random SSRC rejection sampler
// could not find a free value within its attempt bound.
type ErrSSRCExhausted struct {
	Attempts int
}

func (e ErrSSRCExhausted) Error() string {
	return fmt.Sprintf("exhausted %d attempts choosing a free SSRC", e.Attempts)
}
