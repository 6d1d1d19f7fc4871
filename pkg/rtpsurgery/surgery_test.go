package rtpsurgery

import (
	"testing"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/require"
)

func TestBuildRTX(t *testing.T) {
	original := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			Marker:         true,
			PayloadType:    96,
			SequenceNumber: 11,
			Timestamp:      9000,
			SSRC:           0xAAAA,
		},
		Payload: []byte("hello"),
	}

	rtx := BuildRTX(original, 0xBEEF, 5, 97)

	require.Equal(t, uint32(0xBEEF), rtx.SSRC)
	require.Equal(t, uint16(5), rtx.SequenceNumber)
	require.Equal(t, uint8(97), rtx.PayloadType)
	require.False(t, rtx.Padding)
	require.Equal(t, uint8(0), rtx.PaddingSize)
	require.Equal(t, uint32(9000), rtx.Timestamp)
	require.True(t, rtx.Marker)

	osn, payload, err := SplitOSN(rtx.Payload)
	require.NoError(t, err)
	require.Equal(t, uint16(11), osn)
	require.Equal(t, []byte("hello"), payload)
}

func TestBuildRTXPreservesExtension(t *testing.T) {
	original := &rtp.Packet{
		Header: rtp.Header{
			Extension:        true,
			ExtensionProfile: 0xBEDE,
			Extensions: []rtp.Extension{
				{ID: 1, Payload: []byte{0x42}},
			},
			SSRC:           0xAAAA,
			SequenceNumber: 10,
		},
		Payload: []byte("x"),
	}

	rtx := BuildRTX(original, 0xBEEF, 0, 97)

	require.True(t, rtx.Extension)
	require.Equal(t, uint16(0xBEDE), rtx.ExtensionProfile)
	require.Equal(t, original.Extensions, rtx.Extensions)
}

func TestReconstructOriginalRoundTrip(t *testing.T) {
	original := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    96,
			SequenceNumber: 11,
			Timestamp:      9000,
			SSRC:           0xAAAA,
			Extension:      true,
			Extensions: []rtp.Extension{
				{ID: 2, Payload: []byte{0x01, 0x02}},
			},
		},
		Payload: []byte("world"),
	}

	rtx := BuildRTX(original, 0xBEEF, 7, 97)

	reconstructed, err := ReconstructOriginal(rtx, original.SSRC, original.PayloadType)
	require.NoError(t, err)

	require.Equal(t, original.SSRC, reconstructed.SSRC)
	require.Equal(t, original.SequenceNumber, reconstructed.SequenceNumber)
	require.Equal(t, original.PayloadType, reconstructed.PayloadType)
	require.Equal(t, original.Payload, reconstructed.Payload)
	require.Equal(t, original.Extensions, reconstructed.Extensions)
}

func TestReconstructOriginalKeepsPadding(t *testing.T) {
	rtx := &rtp.Packet{
		Header: rtp.Header{
			Padding: true,
			SSRC:    0xBEEF,
		},
		Payload:     append([]byte{0, 50}, []byte("x")...),
		PaddingSize: 4,
	}

	reconstructed, err := ReconstructOriginal(rtx, 0xAAAA, 96)
	require.NoError(t, err)
	require.Equal(t, uint8(4), reconstructed.PaddingSize)
	require.True(t, reconstructed.Padding)
}

func TestSplitOSNMalformed(t *testing.T) {
	_, _, err := SplitOSN([]byte{0x01})
	require.Error(t, err)
}
