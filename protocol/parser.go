package protocol

// Packet is one fully-decoded (header, payload) pair produced by StreamParser.
type Packet struct {
	Header  PacketHeader
	Payload []byte
}

// StreamParser reassembles framed packets out of an arbitrarily-chunked
// byte stream. Feed tolerates splits anywhere: mid-header, mid-payload, or
// several packets landing in one call.
type StreamParser struct {
	buffer []byte
}

// Feed appends newly-received bytes to the internal buffer.
func (p *StreamParser) Feed(data []byte) {
	p.buffer = append(p.buffer, data...)
}

// HasPacket reports whether a complete packet is currently buffered.
func (p *StreamParser) HasPacket() bool {
	if len(p.buffer) < HeaderSize {
		return false
	}
	h, err := DecodeHeader(p.buffer)
	if err != nil {
		return false
	}
	return uint32(len(p.buffer)) >= HeaderSize+h.PayloadSize
}

// NextPacket consumes exactly one packet's worth of bytes from the front of
// the buffer and returns it. Callers must check HasPacket first, or be
// prepared for a nil, non-nil-error result when no full packet is buffered.
func (p *StreamParser) NextPacket() (Packet, error) {
	h, err := DecodeHeader(p.buffer)
	if err != nil {
		return Packet{}, err
	}
	total := HeaderSize + int(h.PayloadSize)
	if len(p.buffer) < total {
		return Packet{}, ErrIncomplete
	}

	payload := make([]byte, h.PayloadSize)
	copy(payload, p.buffer[HeaderSize:total])
	p.buffer = p.buffer[total:]

	return Packet{Header: h, Payload: payload}, nil
}

// Reset discards all buffered bytes.
func (p *StreamParser) Reset() {
	p.buffer = nil
}

// BufferedSize returns the number of bytes currently held.
func (p *StreamParser) BufferedSize() int {
	return len(p.buffer)
}

// ErrIncomplete is returned by NextPacket when the buffer holds less than
// one full packet; callers should Feed more data and check HasPacket again.
var ErrIncomplete = incompleteErr{}

type incompleteErr struct{}

func (incompleteErr) Error() string { return "protocol: incomplete packet" }
