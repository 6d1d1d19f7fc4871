// Package rtpsurgery performs the bit-exact RTP header/payload surgery
// shared by the sender and receiver retransmission cores: building an
// RFC 4588 RTX packet from a master packet, and reconstructing a master
// packet from an RTX packet. Both operations preserve the fixed header
// and extension regions of the RTP buffer view except for the fields the
// RFC requires to change; BuildRTX drops padding, while
// ReconstructOriginal carries any padding on the RTX packet through.
package rtpsurgery

import (
	"encoding/binary"

	"github.com/pion/rtp"

	"github.com/bluenviron/rtprtx/pkg/rtprtxerrors"
)

// osnLen is the size in bytes of the Original Sequence Number prefix
// RFC 4588 prepends to the RTX payload.
const osnLen = 2

// BuildRTX constructs an RFC 4588 RTX packet from an original packet.
// The fixed header and extension are copied verbatim; the new payload is
// the 2-byte big-endian OSN (the original's sequence number) followed by
// the original payload. The result never carries padding: the sender
// always strips it and lets downstream elements re-pad, per RFC 4588.
func BuildRTX(original *rtp.Packet, rtxSSRC uint32, rtxSeq uint16, rtxPT uint8) *rtp.Packet {
	payload := make([]byte, osnLen+len(original.Payload))
	binary.BigEndian.PutUint16(payload, original.SequenceNumber)
	copy(payload[osnLen:], original.Payload)

	header := original.Header
	header.Padding = false
	header.SSRC = rtxSSRC
	header.SequenceNumber = rtxSeq
	header.PayloadType = rtxPT

	return &rtp.Packet{
		Header:      header,
		Payload:     payload,
		PaddingSize: 0,
	}
}

// ReconstructOriginal rebuilds the master packet from an RTX packet, given
// the master SSRC and original payload type already resolved by the
// caller from the OSN/association tables. The OSN is re-read from the
// payload here (rather than trusted from the caller) so every call site
// validates the same minimum-length invariant.
//
// Padding present on the incoming RTX packet is tolerated and copied
// through unchanged (the sender never emits it, but RFC 4588 does not
// forbid it, and a conformant receiver must not choke on it).
func ReconstructOriginal(rtxPkt *rtp.Packet, masterSSRC uint32, originPT uint8) (*rtp.Packet, error) {
	osn, payload, err := SplitOSN(rtxPkt.Payload)
	if err != nil {
		return nil, err
	}

	header := rtxPkt.Header
	header.SSRC = masterSSRC
	header.SequenceNumber = osn
	header.PayloadType = originPT

	return &rtp.Packet{
		Header:      header,
		Payload:     payload,
		PaddingSize: rtxPkt.PaddingSize,
	}, nil
}

// SplitOSN reads the big-endian OSN from the first two bytes of an RTX
// payload and returns it along with the remaining original payload. It
// is the single point where the "RTX payload shorter than 2 bytes" edge
// case (spec section 7, "Malformed packet") is detected.
func SplitOSN(rtxPayload []byte) (uint16, []byte, error) {
	if len(rtxPayload) < osnLen {
		return 0, nil, rtprtxerrors.ErrMalformedPacket{
			Reason: "RTX payload shorter than the 2-byte OSN prefix",
		}
	}
	osn := binary.BigEndian.Uint16(rtxPayload)
	return osn, rtxPayload[osnLen:], nil
}
