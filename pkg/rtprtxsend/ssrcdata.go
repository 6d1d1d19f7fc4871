package rtprtxsend

// ssrcData is the per-master-SSRC state the sender core keeps: the RTX
// SSRC currently assigned to it, the independent RTX sequence-number
// namespace, and its packet history.
type ssrcData struct {
	rtxSSRC    uint32
	nextSeqNum uint16
	clockRate  int
	hist       history
}
