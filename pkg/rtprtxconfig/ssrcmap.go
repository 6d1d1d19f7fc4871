package rtprtxconfig

import (
	"strconv"

	"github.com/bluenviron/rtprtx/pkg/rtprtxerrors"
)

// SSRCMap is a validated master-SSRC -> preferred-RTX-SSRC mapping. A
// preferred value is a hint only: the sender core still runs the
// collision check of the random allocator before committing to it.
type SSRCMap struct {
	m map[uint32]uint32
}

// NewSSRCMap wraps a copy of an already-typed map. Every uint32 pair is
// accepted, so the returned error is always nil.
func NewSSRCMap(m map[uint32]uint32) (*SSRCMap, error) {
	cp := make(map[uint32]uint32, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return &SSRCMap{m: cp}, nil
}

// ParseSSRCMap builds an SSRCMap from the textual decimal-key structure
// described in spec section 6 ("ssrc-map": mapping from textual decimal
// master SSRC to preferred RTX SSRC u32).
func ParseSSRCMap(raw map[string]uint32) (*SSRCMap, error) {
	m := make(map[uint32]uint32, len(raw))
	for k, v := range raw {
		master, err := strconv.ParseUint(k, 10, 32)
		if err != nil {
			return nil, rtprtxerrors.ErrConfigInvalid{
				Field:  "ssrc-map",
				Reason: "key is not a valid SSRC: " + k,
			}
		}
		m[uint32(master)] = v
	}
	return NewSSRCMap(m)
}

// Preferred returns the preferred RTX SSRC for a master SSRC, if configured.
func (s *SSRCMap) Preferred(masterSSRC uint32) (uint32, bool) {
	if s == nil {
		return 0, false
	}
	v, ok := s.m[masterSSRC]
	return v, ok
}

// Empty reports whether the map carries no entries.
func (s *SSRCMap) Empty() bool {
	return s == nil || len(s.m) == 0
}
