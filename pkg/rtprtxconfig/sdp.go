package rtprtxconfig

import (
	"strconv"
	"strings"

	psdp "github.com/pion/sdp/v3"

	"github.com/bluenviron/rtprtx/pkg/rtprtxerrors"
)

// PayloadTypeMapFromMediaDescription discovers the original-PT -> RTX-PT
// mapping for a single media section by pairing each
// "a=rtpmap:<pt> rtx/<clock-rate>" attribute with the
// "a=fmtp:<pt> apt=<original-pt>" attribute that names the same RTX
// payload type, per RFC 4588 section 8.6. The returned map is in sender
// orientation (key = original PT, value = RTX PT); receivers should call
// Invert on the result.
func PayloadTypeMapFromMediaDescription(md *psdp.MediaDescription) (*PayloadTypeMap, error) {
	rtxPTs := map[uint8]struct{}{}

	for _, attr := range md.Attributes {
		if attr.Key != "rtpmap" {
			continue
		}

		pt, encoding, ok := splitRtpmap(attr.Value)
		if !ok {
			continue
		}

		if strings.EqualFold(encoding, "rtx") || strings.HasPrefix(strings.ToLower(encoding), "rtx/") {
			rtxPTs[pt] = struct{}{}
		}
	}

	m := map[uint8]uint8{}

	for _, attr := range md.Attributes {
		if attr.Key != "fmtp" {
			continue
		}

		pt, params, ok := splitFmtp(attr.Value)
		if !ok {
			continue
		}

		if _, isRTX := rtxPTs[pt]; !isRTX {
			continue
		}

		apt, ok := params["apt"]
		if !ok {
			continue
		}

		original, err := strconv.ParseUint(apt, 10, 8)
		if err != nil {
			return nil, rtprtxerrors.ErrConfigInvalid{
				Field:  "fmtp apt",
				Reason: "not a valid payload type: " + apt,
			}
		}

		m[uint8(original)] = pt
	}

	return NewPayloadTypeMap(m)
}

// splitRtpmap parses "<pt> <encoding>/<clock-rate>[/<params>]" into the
// payload type and the encoding name.
func splitRtpmap(value string) (pt uint8, encoding string, ok bool) {
	fields := strings.SplitN(value, " ", 2)
	if len(fields) != 2 {
		return 0, "", false
	}

	raw, err := strconv.ParseUint(fields[0], 10, 8)
	if err != nil {
		return 0, "", false
	}

	encoding = strings.SplitN(fields[1], "/", 2)[0]
	return uint8(raw), encoding, true
}

// splitFmtp parses "<pt> key=value;key=value..." into the payload type
// and a key/value map, mirroring the format accepted throughout the
// teacher's fmtp parsers.
func splitFmtp(value string) (pt uint8, params map[string]string, ok bool) {
	fields := strings.SplitN(value, " ", 2)
	if len(fields) != 2 {
		return 0, nil, false
	}

	raw, err := strconv.ParseUint(fields[0], 10, 8)
	if err != nil {
		return 0, nil, false
	}

	params = map[string]string{}
	for _, kv := range strings.Split(fields[1], ";") {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}

		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			continue
		}

		params[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}

	return uint8(raw), params, true
}
