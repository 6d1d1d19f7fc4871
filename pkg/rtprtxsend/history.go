package rtprtxsend

import (
	"sort"

	"github.com/pion/rtp"

	"github.com/bluenviron/rtprtx/pkg/rtpserial"
)

// historyItem is one entry of a single SSRC's retransmission history: the
// original packet plus the fields needed to order and evict it without
// re-parsing the RTP header on every lookup.
type historyItem struct {
	seqnum    uint16
	timestamp uint32
	packet    *rtp.Packet
}

// history is a sequence-number-ordered queue of recent packets for one
// master SSRC, mirroring the GSequence used by the element this core is
// modeled on: insertion keeps it sorted so a retransmission request can be
// served with a binary search, and eviction always removes from the front
// (the oldest packet).
type history struct {
	items []historyItem
}

// insert appends pkt to the history. Packets normally arrive in
// increasing sequence-number order, so this is append-mostly; an
// out-of-order arrival is inserted at its sorted position so lookup can
// keep using binary search.
func (h *history) insert(pkt *rtp.Packet) {
	item := historyItem{seqnum: pkt.SequenceNumber, timestamp: pkt.Timestamp, packet: pkt}

	n := len(h.items)
	if n == 0 || !rtpserial.LessSeq(pkt.SequenceNumber, h.items[n-1].seqnum) {
		h.items = append(h.items, item)
		return
	}

	idx := sort.Search(n, func(i int) bool {
		return !rtpserial.LessSeq(h.items[i].seqnum, pkt.SequenceNumber)
	})
	h.items = append(h.items, historyItem{})
	copy(h.items[idx+1:], h.items[idx:])
	h.items[idx] = item
}

// lookup returns the stored packet for seqnum, if still in history.
func (h *history) lookup(seqnum uint16) (*rtp.Packet, bool) {
	idx := sort.Search(len(h.items), func(i int) bool {
		return !rtpserial.LessSeq(h.items[i].seqnum, seqnum)
	})
	if idx < len(h.items) && h.items[idx].seqnum == seqnum {
		return h.items[idx].packet, true
	}
	return nil, false
}

// evictByCount drops the oldest entries until the history holds at most
// maxPackets. maxPackets == 0 means unlimited.
func (h *history) evictByCount(maxPackets uint32) {
	if maxPackets == 0 {
		return
	}
	for uint32(len(h.items)) > maxPackets {
		h.items = h.items[1:]
	}
}

// evictByTime drops the oldest entries until the span between the oldest
// and newest timestamp, expressed in milliseconds at clockRate, is at
// most maxTimeMs. maxTimeMs == 0 means unlimited. clockRate <= 0 disables
// the check (the span cannot be converted to milliseconds without it).
func (h *history) evictByTime(maxTimeMs uint32, clockRate int) {
	if maxTimeMs == 0 || clockRate <= 0 {
		return
	}
	for len(h.items) > 1 {
		span := rtpserial.DiffTimestamp(h.items[0].timestamp, h.items[len(h.items)-1].timestamp)
		spanMs := uint64(span) * 1000 / uint64(clockRate)
		if spanMs <= uint64(maxTimeMs) {
			break
		}
		h.items = h.items[1:]
	}
}

// len reports the number of entries currently held.
func (h *history) len() int {
	return len(h.items)
}
