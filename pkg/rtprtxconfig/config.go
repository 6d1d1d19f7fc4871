package rtprtxconfig

// defaultMaxSizePackets is the sender history queue cap applied when a
// caller leaves MaxSizePackets at its zero value, per spec section 6
// ("max-size-packets ... default 100").
const defaultMaxSizePackets = 100

// SenderConfig holds the sender core's tunables, common payload-type map,
// and preferred-SSRC hints. The zero value means "use the default history
// eviction policy" (max-size-packets 100, max-size-time unlimited); callers
// that want an explicitly unbounded queue must set MaxSizePacketsUnlimited.
type SenderConfig struct {
	PayloadTypeMap           *PayloadTypeMap
	SSRCMap                  *SSRCMap
	MaxSizeTimeMs            uint32
	MaxSizePackets           uint32
	MaxSizePacketsUnlimited  bool
}

// WithDefaults returns a copy with MaxSizePackets filled in when the
// caller left it unset and did not explicitly ask for no cap.
func (c SenderConfig) WithDefaults() SenderConfig {
	if c.MaxSizePackets == 0 && !c.MaxSizePacketsUnlimited {
		c.MaxSizePackets = defaultMaxSizePackets
	}
	return c
}

// ReceiverConfig holds the receiver core's common payload-type map. The
// map is stored in receiver orientation (keyed by on-wire RTX PT); callers
// building it from a sender-oriented map should call Invert first.
type ReceiverConfig struct {
	PayloadTypeMap *PayloadTypeMap
}
