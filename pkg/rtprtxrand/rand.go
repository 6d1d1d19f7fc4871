// Package rtprtxrand provides bounded random allocation helpers used by
// the sender core: choosing an RTX SSRC that collides with nothing
// already in use, and seeding a fresh RTX sequence-number space.
package rtprtxrand

import (
	"github.com/pion/randutil"

	"github.com/bluenviron/rtprtx/pkg/rtprtxerrors"
)

// maxAttempts bounds the SSRC rejection sampler. The candidate space
// (2^32) dwarfs any realistic number of SSRCs in flight, so this is
// reached only in pathological configurations or test doubles.
const maxAttempts = 32

var generator = randutil.NewMathRandomGenerator()

// Uint32 draws a random 32-bit value, used both for SSRC candidates and
// for seeding a 16-bit sequence number (via truncation by the caller).
func Uint32() uint32 {
	return generator.Uint32()
}

// ChooseSSRC draws SSRC values via Uint32 until taken returns false for one
// of them, or gives up after maxAttempts and returns
// rtprtxerrors.ErrSSRCExhausted.
func ChooseSSRC(taken func(ssrc uint32) bool) (uint32, error) {
	for i := 0; i < maxAttempts; i++ {
		candidate := Uint32()
		if !taken(candidate) {
			return candidate, nil
		}
	}
	return 0, rtprtxerrors.ErrSSRCExhausted{Attempts: maxAttempts}
}
