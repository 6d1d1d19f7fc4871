package rtprtxsend

import (
	"testing"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/require"

	"github.com/bluenviron/rtprtx/pkg/rtprtxconfig"
	"github.com/bluenviron/rtprtx/pkg/rtpsurgery"
)

func newTestSender(t *testing.T) (*Sender, *[]*rtp.Packet) {
	t.Helper()

	ptMap, err := rtprtxconfig.ParsePayloadTypeMap(map[string]uint{"96": 97})
	require.NoError(t, err)

	s := NewSender(rtprtxconfig.SenderConfig{PayloadTypeMap: ptMap})
	s.Initialize()

	var written []*rtp.Packet
	s.WriteRTX = func(pkt *rtp.Packet) {
		written = append(written, pkt)
	}

	return s, &written
}

func masterPacket(seq uint16, ssrc uint32) *rtp.Packet {
	return &rtp.Packet{
		Header: rtp.Header{
			PayloadType:    96,
			SequenceNumber: seq,
			Timestamp:      1000 + uint32(seq),
			SSRC:           ssrc,
		},
		Payload: []byte{byte(seq)},
	}
}

func TestOnRetransmissionRequestEmitsOnNextMasterPacket(t *testing.T) {
	s, written := newTestSender(t)

	s.OnMasterPacket(masterPacket(10, 0xAAAA))
	s.OnMasterPacket(masterPacket(11, 0xAAAA))

	s.OnRetransmissionRequest(10, 0xAAAA)
	require.Equal(t, uint64(1), s.Counters().NumRTXRequests.Load())

	s.OnMasterPacket(masterPacket(12, 0xAAAA))

	require.Len(t, *written, 1)

	osn, payload, err := rtpsurgery.SplitOSN((*written)[0].Payload)
	require.NoError(t, err)
	require.Equal(t, uint16(10), osn)
	require.Equal(t, []byte{10}, payload)
	require.Equal(t, uint64(1), s.Counters().NumRTXPackets.Load())
}

func TestOnRetransmissionRequestUnknownSSRCIsIgnored(t *testing.T) {
	s, written := newTestSender(t)

	s.OnMasterPacket(masterPacket(10, 0xAAAA))
	s.OnRetransmissionRequest(10, 0xBBBB)
	s.Flush()

	require.Empty(t, *written)
	require.Equal(t, uint64(0), s.Counters().NumRTXRequests.Load())
}

func TestOnRetransmissionRequestUnknownSeqnumIsIgnored(t *testing.T) {
	s, written := newTestSender(t)

	s.OnMasterPacket(masterPacket(10, 0xAAAA))
	s.OnRetransmissionRequest(999, 0xAAAA)
	s.Flush()

	require.Empty(t, *written)
	require.Equal(t, uint64(1), s.Counters().NumRTXRequests.Load())
}

func TestHistoryEvictsByCount(t *testing.T) {
	s, written := newTestSender(t)
	s.MaxSizePackets = 2

	s.OnMasterPacket(masterPacket(1, 0xAAAA))
	s.OnMasterPacket(masterPacket(2, 0xAAAA))
	s.OnMasterPacket(masterPacket(3, 0xAAAA))

	s.OnRetransmissionRequest(1, 0xAAAA)
	s.Flush()

	require.Empty(t, *written)
}

func TestUnmappedPayloadTypeIsNotStored(t *testing.T) {
	s, written := newTestSender(t)

	pkt := masterPacket(1, 0xAAAA)
	pkt.PayloadType = 50
	s.OnMasterPacket(pkt)

	s.OnRetransmissionRequest(1, 0xAAAA)
	s.Flush()

	require.Empty(t, *written)
}

func TestOnCollisionOfRTXSSRCReassigns(t *testing.T) {
	s, _ := newTestSender(t)

	s.OnMasterPacket(masterPacket(1, 0xAAAA))

	s.mutex.Lock()
	original := s.ssrcData[0xAAAA].rtxSSRC
	s.mutex.Unlock()

	forwarded := s.OnCollision(original)
	require.False(t, forwarded)

	s.mutex.Lock()
	updated := s.ssrcData[0xAAAA].rtxSSRC
	mapped, ok := s.rtxSSRCs[updated]
	s.mutex.Unlock()

	require.NotEqual(t, original, updated)
	require.True(t, ok)
	require.Equal(t, uint32(0xAAAA), mapped)
}

func TestOnCollisionOfMasterSSRCDropsState(t *testing.T) {
	s, _ := newTestSender(t)

	s.OnMasterPacket(masterPacket(1, 0xAAAA))
	forwarded := s.OnCollision(0xAAAA)
	require.True(t, forwarded)

	s.mutex.Lock()
	_, ok := s.ssrcData[0xAAAA]
	s.mutex.Unlock()

	require.False(t, ok)
}

func TestResetDrainsState(t *testing.T) {
	s, written := newTestSender(t)

	s.OnMasterPacket(masterPacket(1, 0xAAAA))
	s.OnRetransmissionRequest(1, 0xAAAA)

	s.Reset()
	s.Flush()

	require.Empty(t, *written)

	s.mutex.Lock()
	require.Empty(t, s.ssrcData)
	require.Empty(t, s.rtxSSRCs)
	s.mutex.Unlock()
}

func TestChosenRTXSSRCAvoidsCollidingWithAnotherMasterSSRC(t *testing.T) {
	s, _ := newTestSender(t)

	s.OnMasterPacket(masterPacket(1, 0xAAAA))

	ssrcMap, err := rtprtxconfig.NewSSRCMap(map[uint32]uint32{0xBBBB: 0xAAAA})
	require.NoError(t, err)
	s.SSRCMap = ssrcMap

	s.OnMasterPacket(masterPacket(1, 0xBBBB))

	s.mutex.Lock()
	rtxSSRC := s.ssrcData[0xBBBB].rtxSSRC
	s.mutex.Unlock()

	require.NotEqual(t, uint32(0xAAAA), rtxSSRC)
}

func TestRTXPayloadTypeBelowDynamicRangeFallsBackToOriginalPlusOne(t *testing.T) {
	ptMap, err := rtprtxconfig.ParsePayloadTypeMap(map[string]uint{"96": 50})
	require.NoError(t, err)

	s := NewSender(rtprtxconfig.SenderConfig{PayloadTypeMap: ptMap})
	s.Initialize()

	var written []*rtp.Packet
	s.WriteRTX = func(pkt *rtp.Packet) {
		written = append(written, pkt)
	}

	s.OnMasterPacket(masterPacket(1, 0xAAAA))
	s.OnRetransmissionRequest(1, 0xAAAA)
	s.Flush()

	require.Len(t, written, 1)
	require.Equal(t, uint8(97), written[0].PayloadType)
}

func TestPayloadTypeMapSwapIsDeferred(t *testing.T) {
	s, written := newTestSender(t)

	newMap, err := rtprtxconfig.ParsePayloadTypeMap(map[string]uint{"96": 98})
	require.NoError(t, err)
	s.SetPayloadTypeMap(newMap)

	s.OnMasterPacket(masterPacket(1, 0xAAAA))
	s.OnRetransmissionRequest(1, 0xAAAA)
	s.OnMasterPacket(masterPacket(2, 0xAAAA))

	require.Len(t, *written, 1)
	require.Equal(t, uint8(98), (*written)[0].PayloadType)
}
