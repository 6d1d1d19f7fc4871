// Package rtprtxreceive implements the receiver side of RFC 4588 SSRC-
// multiplexed retransmission: it recognizes RTX packets by payload type,
// associates each RTX SSRC with the master SSRC that requested it, and
// reconstructs the original packet from the OSN-prefixed RTX payload.
package rtprtxreceive

import (
	"sync"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"github.com/pion/rtp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bluenviron/rtprtx/pkg/rtprtxconfig"
	"github.com/bluenviron/rtprtx/pkg/rtprtxmetrics"
	"github.com/bluenviron/rtprtx/pkg/rtpsurgery"
)

// Receiver is the retransmission receiver core. Every exported method is
// safe for concurrent use; a single mutex guards all mutable state.
type Receiver struct {
	log zerolog.Logger

	id      string
	metrics *rtprtxmetrics.Counters
	life    *fsm.FSM

	mutex sync.Mutex

	// liveMap/pendingMap are receiver-oriented: key = on-wire RTX PT,
	// value = original PT.
	liveMap    *rtprtxconfig.PayloadTypeMap
	pendingMap *rtprtxconfig.PayloadTypeMap
	mapChanged bool

	// seqnumToMaster is the outstanding-request table, keyed by the
	// original sequence number alone (not per master SSRC): RFC 4588
	// forbids two outstanding requests for the same sequence number
	// across different original streams before association resolves,
	// so a single global key space enforces that directly.
	seqnumToMaster map[uint16]uint32

	// assoc holds the resolved RTX-SSRC<->master-SSRC association in
	// both directions under the same map: looking a key up tells you its
	// counterpart regardless of which side it is.
	assoc map[uint32]uint32
}

// NewReceiver builds a Receiver from static configuration.
func NewReceiver(cfg rtprtxconfig.ReceiverConfig) *Receiver {
	r := &Receiver{
		log:            log.Logger,
		id:             uuid.NewString(),
		metrics:        &rtprtxmetrics.Counters{},
		life:           newLifecycle(),
		seqnumToMaster: make(map[uint16]uint32),
		assoc:          make(map[uint32]uint32),
	}

	if cfg.PayloadTypeMap != nil {
		r.pendingMap = cfg.PayloadTypeMap
		r.mapChanged = true
	}

	return r
}

// Initialize transitions the core from new to running.
func (r *Receiver) Initialize() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.life.Can(eventInitialize) {
		_ = r.life.Event(nil, eventInitialize)
	}
}

// ID returns the core's correlation identifier.
func (r *Receiver) ID() string {
	return r.id
}

// SetLogger redirects the core's log output.
func (r *Receiver) SetLogger(logger zerolog.Logger) {
	r.log = logger.With().Str("component", "rtprtxreceive").Str("core_id", r.id).Logger()
}

// Counters exposes the live counter set for registration with a
// rtprtxmetrics.Collector.
func (r *Receiver) Counters() *rtprtxmetrics.Counters {
	return r.metrics
}

// SetPayloadTypeMap stages a new RTX-PT -> original-PT map, taking effect
// at the next OnPacket call.
func (r *Receiver) SetPayloadTypeMap(m *rtprtxconfig.PayloadTypeMap) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.pendingMap = m
	r.mapChanged = true
}

func (r *Receiver) refreshMapLocked() {
	if r.mapChanged {
		r.liveMap = r.pendingMap
		r.mapChanged = false
	}
}

// OnRetransmissionRequest records that seqnum of master stream ssrc has
// been requested, so that the next RTX packet carrying that OSN can be
// associated with ssrc. A conflicting outstanding request for the same
// seqnum from a different master SSRC is rejected: the prior entry is
// erased so the slot can be reused, per RFC 4588's prohibition on two
// outstanding requests for the same sequence number in different streams.
// The returned bool reports whether the event should be forwarded further
// upstream (true) or was consumed here (false): an already-associated or
// duplicate request forwards, but a conflicting request is consumed, per
// scenario 5's "the second event is consumed (not forwarded)".
func (r *Receiver) OnRetransmissionRequest(seqnum uint16, ssrc uint32) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.metrics.NumRTXRequests.Add(1)

	if associated, ok := r.assoc[ssrc]; ok && associated != ssrc {
		return true
	}

	if existing, ok := r.seqnumToMaster[seqnum]; ok {
		if existing == ssrc {
			return true
		}
		delete(r.seqnumToMaster, seqnum)
		return false
	}

	r.seqnumToMaster[seqnum] = ssrc
	return true
}

// OnPacket classifies an ingress packet. If it is not an RTX packet (its
// payload type is not in the current payload-type map), it is returned
// unchanged. If it is an RTX packet that can be associated with a master
// stream (either already associated, or via a matching outstanding
// request), the reconstructed original packet is returned. If it is an
// RTX packet that cannot be associated, or is malformed, ok is false and
// the packet must be dropped.
func (r *Receiver) OnPacket(pkt *rtp.Packet) (*rtp.Packet, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.refreshMapLocked()

	originPT, isRTX := r.liveMap.Lookup(pkt.PayloadType)
	if !isRTX {
		return pkt, true
	}

	osn, _, err := rtpsurgery.SplitOSN(pkt.Payload)
	if err != nil {
		r.log.Debug().Err(err).Uint32("ssrc", pkt.SSRC).Msg("dropping malformed RTX packet")
		return nil, false
	}

	masterSSRC, associated := r.resolveAssociationLocked(pkt.SSRC, osn)

	r.metrics.NumRTXPackets.Add(1)

	if !associated {
		return nil, false
	}

	r.metrics.NumRTXAssocPackets.Add(1)

	reconstructed, err := rtpsurgery.ReconstructOriginal(pkt, masterSSRC, originPT)
	if err != nil {
		r.log.Debug().Err(err).Uint32("ssrc", pkt.SSRC).Msg("dropping malformed RTX packet")
		return nil, false
	}

	return reconstructed, true
}

// resolveAssociationLocked returns the master SSRC for an RTX packet's
// SSRC, resolving and recording a new association from the outstanding
// request table if one is not already known.
func (r *Receiver) resolveAssociationLocked(rtxSSRC uint32, osn uint16) (uint32, bool) {
	if masterSSRC, ok := r.assoc[rtxSSRC]; ok {
		return masterSSRC, true
	}

	masterSSRC, ok := r.seqnumToMaster[osn]
	if !ok {
		return 0, false
	}

	delete(r.seqnumToMaster, osn)
	r.assoc[rtxSSRC] = masterSSRC
	r.assoc[masterSSRC] = rtxSSRC

	return masterSSRC, true
}

// Reset drains the request and association tables, matching the
// PAUSED->READY boundary behavior.
func (r *Receiver) Reset() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.life.Can(eventReset) {
		_ = r.life.Event(nil, eventReset)
	}

	r.seqnumToMaster = make(map[uint16]uint32)
	r.assoc = make(map[uint32]uint32)
}

// Close transitions the core to its terminal closed state.
func (r *Receiver) Close() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.life.Can(eventClose) {
		_ = r.life.Event(nil, eventClose)
	}
}
