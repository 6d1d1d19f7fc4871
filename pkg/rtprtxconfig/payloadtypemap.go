// Package rtprtxconfig parses and validates the typed configuration
// shared by the sender and receiver cores, replacing the original
// dynamically-typed property bag with canonical Go maps built once at
// set time. Values are immutable once constructed; cores are
// responsible for the "pending vs live" swap discipline of spec
// section 5 using the value as an opaque snapshot.
package rtprtxconfig

import (
	"strconv"

	"github.com/bluenviron/rtprtx/pkg/rtprtxerrors"
)

// PayloadTypeMap is a validated original-PT -> RTX-PT mapping (sender
// orientation) or its inverse (receiver orientation, built via Invert).
type PayloadTypeMap struct {
	m map[uint8]uint8
}

// NewPayloadTypeMap validates and wraps an already-typed map, as used
// when a caller builds the map programmatically instead of from strings.
func NewPayloadTypeMap(m map[uint8]uint8) (*PayloadTypeMap, error) {
	for from, to := range m {
		if from > 127 || to > 127 {
			return nil, rtprtxerrors.ErrConfigInvalid{
				Field:  "payload-type-map",
				Reason: "payload type out of 7-bit range",
			}
		}
		if from == to {
			return nil, rtprtxerrors.ErrConfigInvalid{
				Field:  "payload-type-map",
				Reason: "original and RTX payload types must differ",
			}
		}
	}
	cp := make(map[uint8]uint8, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return &PayloadTypeMap{m: cp}, nil
}

// ParsePayloadTypeMap builds a PayloadTypeMap from the textual
// decimal-key-to-uint structure described in spec section 6
// ("payload-type-map": mapping from textual decimal PT key to unsigned
// PT value).
func ParsePayloadTypeMap(raw map[string]uint) (*PayloadTypeMap, error) {
	m := make(map[uint8]uint8, len(raw))
	for k, v := range raw {
		from, err := strconv.ParseUint(k, 10, 8)
		if err != nil {
			return nil, rtprtxerrors.ErrConfigInvalid{
				Field:  "payload-type-map",
				Reason: "key is not a valid payload type: " + k,
			}
		}
		if v > 127 {
			return nil, rtprtxerrors.ErrConfigInvalid{
				Field:  "payload-type-map",
				Reason: "value out of 7-bit range",
			}
		}
		m[uint8(from)] = uint8(v)
	}
	return NewPayloadTypeMap(m)
}

// Lookup returns the mapped payload type and whether it was present.
func (p *PayloadTypeMap) Lookup(pt uint8) (uint8, bool) {
	if p == nil {
		return 0, false
	}
	v, ok := p.m[pt]
	return v, ok
}

// Invert returns a new PayloadTypeMap with keys and values swapped, used
// to turn a sender-oriented (original->rtx) map into a receiver-oriented
// (rtx->original) one, per spec section 6: "the storage is keyed by
// value for O(1) lookup by the on-wire RTX PT".
func (p *PayloadTypeMap) Invert() *PayloadTypeMap {
	inv := make(map[uint8]uint8, len(p.m))
	for k, v := range p.m {
		inv[v] = k
	}
	return &PayloadTypeMap{m: inv}
}

// Empty reports whether the map carries no entries, used by callers
// that want to distinguish an unset map from a zero-value one.
func (p *PayloadTypeMap) Empty() bool {
	return p == nil || len(p.m) == 0
}
