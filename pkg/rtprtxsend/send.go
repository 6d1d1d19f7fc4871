// Package rtprtxsend implements the sender side of RFC 4588 SSRC-
// multiplexed retransmission: it keeps a short history of recently sent
// packets per master SSRC and, on request, reconstitutes them as RTX
// packets carrying an independent SSRC and sequence-number space.
package rtprtxsend

import (
	"sync"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"github.com/pion/rtp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bluenviron/rtprtx/pkg/rtprtxconfig"
	"github.com/bluenviron/rtprtx/pkg/rtprtxmetrics"
	"github.com/bluenviron/rtprtx/pkg/rtprtxrand"
	"github.com/bluenviron/rtprtx/pkg/rtpsurgery"
)

// Sender is the retransmission sender core. Every exported method is
// safe for concurrent use; a single mutex guards all mutable state, and
// the construction of outgoing RTX packets happens outside the lock once
// the packets to retransmit have been decided.
type Sender struct {
	// SSRCMap gives a preferred RTX SSRC per master SSRC; the sender
	// still verifies it does not collide before committing to it.
	SSRCMap *rtprtxconfig.SSRCMap

	// MaxSizePackets caps the per-SSRC history length (0 = unlimited).
	MaxSizePackets uint32

	// MaxSizeTimeMs caps the per-SSRC history span in milliseconds,
	// measured against each packet's RTP timestamp (0 = unlimited).
	MaxSizeTimeMs uint32

	// WriteRTX is called once per RTX packet, outside the internal lock,
	// in the order the packets were detached from the pending queue.
	WriteRTX func(*rtp.Packet)

	log zerolog.Logger

	id      string
	metrics *rtprtxmetrics.Counters
	life    *fsm.FSM

	mutex sync.Mutex

	liveMap    *rtprtxconfig.PayloadTypeMap
	pendingMap *rtprtxconfig.PayloadTypeMap
	mapChanged bool

	ssrcData map[uint32]*ssrcData
	rtxSSRCs map[uint32]uint32 // rtx SSRC -> master SSRC

	pending []*rtp.Packet // detach-then-emit queue, in request order
}

// NewSender builds a Sender from static configuration. cfg.PayloadTypeMap,
// if set, is staged as the pending map and swapped in at the first
// OnMasterPacket call, matching the deferred pending/live map swap of the
// element this core is modeled on.
func NewSender(cfg rtprtxconfig.SenderConfig) *Sender {
	cfg = cfg.WithDefaults()

	s := &Sender{
		SSRCMap:        cfg.SSRCMap,
		MaxSizePackets: cfg.MaxSizePackets,
		MaxSizeTimeMs:  cfg.MaxSizeTimeMs,
		log:            log.Logger,
		id:             uuid.NewString(),
		metrics:        &rtprtxmetrics.Counters{},
		life:           newLifecycle(),
		ssrcData:       make(map[uint32]*ssrcData),
		rtxSSRCs:       make(map[uint32]uint32),
	}

	if cfg.PayloadTypeMap != nil {
		s.pendingMap = cfg.PayloadTypeMap
		s.mapChanged = true
	}

	return s
}

// Initialize transitions the core from new to running. It is idempotent
// for repeated calls after the first.
func (s *Sender) Initialize() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.life.Can(eventInitialize) {
		_ = s.life.Event(nil, eventInitialize)
	}
}

// ID returns the core's correlation identifier, used to label its
// metrics and log lines.
func (s *Sender) ID() string {
	return s.id
}

// SetLogger redirects the core's log output.
func (s *Sender) SetLogger(logger zerolog.Logger) {
	s.log = logger.With().Str("component", "rtprtxsend").Str("core_id", s.id).Logger()
}

// Counters exposes the live counter set for registration with a
// rtprtxmetrics.Collector.
func (s *Sender) Counters() *rtprtxmetrics.Counters {
	return s.metrics
}

// SetPayloadTypeMap stages a new original-PT -> RTX-PT map. It takes
// effect at the next OnMasterPacket call, not immediately, so a torn read
// is never observed mid-packet.
func (s *Sender) SetPayloadTypeMap(m *rtprtxconfig.PayloadTypeMap) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.pendingMap = m
	s.mapChanged = true
}

func (s *Sender) refreshMapLocked() {
	if s.mapChanged {
		s.liveMap = s.pendingMap
		s.mapChanged = false
	}
}

// OnCaps records the clock rate to use for the max-size-time eviction of
// a given master SSRC's history, mirroring the downstream capability
// event described in the external interfaces.
func (s *Sender) OnCaps(ssrc uint32, clockRate int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.getOrCreateSSRCDataLocked(ssrc).clockRate = clockRate
}

func (s *Sender) getOrCreateSSRCDataLocked(ssrc uint32) *ssrcData {
	data, ok := s.ssrcData[ssrc]
	if ok {
		return data
	}

	rtxSSRC := s.chooseRTXSSRCLocked(ssrc)
	data = &ssrcData{
		rtxSSRC:    rtxSSRC,
		nextSeqNum: uint16(rtprtxrand.Uint32()),
	}
	s.ssrcData[ssrc] = data
	s.rtxSSRCs[rtxSSRC] = ssrc
	return data
}

func (s *Sender) chooseRTXSSRCLocked(masterSSRC uint32) uint32 {
	taken := func(candidate uint32) bool {
		if _, inUse := s.rtxSSRCs[candidate]; inUse {
			return true
		}
		_, inUse := s.ssrcData[candidate]
		return inUse
	}

	if s.SSRCMap != nil {
		if preferred, ok := s.SSRCMap.Preferred(masterSSRC); ok && !taken(preferred) {
			return preferred
		}
	}

	ssrc, err := rtprtxrand.ChooseSSRC(taken)
	if err != nil {
		s.log.Warn().Err(err).Uint32("master_ssrc", masterSSRC).Msg("could not allocate a collision-free RTX SSRC")
		return rtprtxrand.Uint32()
	}
	return ssrc
}

// OnMasterPacket records pkt in its SSRC's history (if its payload type is
// covered by the current payload-type map), evicts stale history entries,
// and detaches any RTX packets that were queued by a prior
// OnRetransmissionRequest call. The detached packets are converted to RTX
// form and passed to WriteRTX after the lock is released; pkt itself is
// the caller's responsibility to forward downstream afterward, so that
// pending retransmits for earlier packets are always emitted first.
func (s *Sender) OnMasterPacket(pkt *rtp.Packet) {
	var detached []*rtp.Packet

	s.mutex.Lock()

	s.refreshMapLocked()

	if _, ok := s.liveMap.Lookup(pkt.PayloadType); ok {
		data := s.getOrCreateSSRCDataLocked(pkt.SSRC)
		data.hist.insert(pkt)
		data.hist.evictByCount(s.MaxSizePackets)
		data.hist.evictByTime(s.MaxSizeTimeMs, data.clockRate)
	}

	if len(s.pending) > 0 {
		detached = s.pending
		s.pending = nil
		s.metrics.NumRTXPackets.Add(uint64(len(detached)))
	}

	s.mutex.Unlock()

	s.emit(detached)
}

// emit converts each detached original packet to its RTX form and hands
// it to WriteRTX, without holding the lock.
func (s *Sender) emit(originals []*rtp.Packet) {
	if s.WriteRTX == nil {
		return
	}

	for _, original := range originals {
		s.mutex.Lock()
		s.refreshMapLocked()
		rtxPT, ok := s.liveMap.Lookup(original.PayloadType)
		if !ok || rtxPT < 96 {
			rtxPT = original.PayloadType + 1
		}
		data := s.getOrCreateSSRCDataLocked(original.SSRC)
		rtxSSRC := data.rtxSSRC
		rtxSeq := data.nextSeqNum
		data.nextSeqNum++
		s.mutex.Unlock()

		s.WriteRTX(rtpsurgery.BuildRTX(original, rtxSSRC, rtxSeq, rtxPT))
	}
}

// OnRetransmissionRequest handles an upstream RetransmissionRequest event:
// if ssrc is a master SSRC this core is tracking and seqnum is still in
// its history, the corresponding packet is queued for retransmission on
// the next OnMasterPacket (or Flush) call.
func (s *Sender) OnRetransmissionRequest(seqnum uint16, ssrc uint32) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	data, ok := s.ssrcData[ssrc]
	if !ok {
		return
	}

	s.metrics.NumRTXRequests.Add(1)

	pkt, found := data.hist.lookup(seqnum)
	if !found {
		return
	}

	s.pending = append(s.pending, pkt)
}

// Flush detaches and emits any packets queued by OnRetransmissionRequest
// without waiting for the next master packet. Callers that pump master
// packets at a low rate (or not at all, e.g. during a pause) should call
// this periodically so requests do not starve.
func (s *Sender) Flush() {
	s.mutex.Lock()
	var detached []*rtp.Packet
	if len(s.pending) > 0 {
		detached = s.pending
		s.pending = nil
		s.metrics.NumRTXPackets.Add(uint64(len(detached)))
	}
	s.mutex.Unlock()

	s.emit(detached)
}

// OnCollision handles an upstream Collision event. If ssrc is one of this
// core's RTX SSRCs, a fresh one is chosen for the affected master stream
// and the event is consumed (false): it is purely internal bookkeeping
// and must not be forwarded further upstream. If ssrc is instead one of
// the master SSRCs this core tracks, all state for it is dropped and the
// event is forwarded (true): the caller is expected to start using a new
// SSRC for that stream upstream, at which point OnMasterPacket will
// allocate a fresh RTX SSRC for it automatically.
func (s *Sender) OnCollision(ssrc uint32) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if masterSSRC, ok := s.rtxSSRCs[ssrc]; ok {
		data := s.ssrcData[masterSSRC]
		delete(s.rtxSSRCs, ssrc)
		newRTX := s.chooseRTXSSRCLocked(masterSSRC)
		data.rtxSSRC = newRTX
		s.rtxSSRCs[newRTX] = masterSSRC
		return false
	}

	if data, ok := s.ssrcData[ssrc]; ok {
		delete(s.rtxSSRCs, data.rtxSSRC)
		delete(s.ssrcData, ssrc)
	}
	return true
}

// Reset drains all per-SSRC state and the pending queue, matching the
// PAUSED->READY boundary behavior: in-flight emissions already detached
// are unaffected, but no stale history or pending entries survive.
func (s *Sender) Reset() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.life.Can(eventReset) {
		_ = s.life.Event(nil, eventReset)
	}

	s.ssrcData = make(map[uint32]*ssrcData)
	s.rtxSSRCs = make(map[uint32]uint32)
	s.pending = nil
}

// Close transitions the core to its terminal closed state.
func (s *Sender) Close() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.life.Can(eventClose) {
		_ = s.life.Event(nil, eventClose)
	}
}
