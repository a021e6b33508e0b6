package mqtt

// pendingMsg stores a serialized MQTT message for replay after reconnection.
type pendingMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// backlog is a fixed-capacity FIFO of messages published while disconnected.
// When full, the oldest message is overwritten. Not safe for concurrent use.
type backlog struct {
	buf      []pendingMsg
	capacity int
	head     int // next write position
	count    int
	overflow bool // true if any message was dropped since last drain
}

func newBacklog(capacity int) *backlog {
	return &backlog{
		buf:      make([]pendingMsg, capacity),
		capacity: capacity,
	}
}

// push appends msg. It reports true the first time a message is overwritten
// since the last drain, so the caller can log once per outage.
func (b *backlog) push(msg pendingMsg) (firstOverflow bool) {
	if b.count == b.capacity {
		firstOverflow = !b.overflow
		b.overflow = true
		// head already points at the oldest entry
		b.buf[b.head] = msg
		b.head = (b.head + 1) % b.capacity
		return firstOverflow
	}
	b.buf[b.head] = msg
	b.head = (b.head + 1) % b.capacity
	b.count++
	return false
}

// drain returns all buffered messages oldest first and empties the backlog.
func (b *backlog) drain() []pendingMsg {
	if b.count == 0 {
		return nil
	}

	out := make([]pendingMsg, b.count)
	start := (b.head - b.count + b.capacity) % b.capacity
	for i := range out {
		out[i] = b.buf[(start+i)%b.capacity]
	}

	b.count = 0
	b.head = 0
	b.overflow = false
	return out
}

func (b *backlog) len() int {
	return b.count
}
