package stream

// Sentinel is the payload the backend sends to end a stream normally.
const Sentinel = "[DONE]"

// EventKind distinguishes the end-of-stream marker from data.
type EventKind int

const (
	// KindData carries a raw fragment exactly as delivered.
	KindData EventKind = iota
	// KindSentinel signals normal end of stream and carries no payload.
	KindSentinel
)

func (k EventKind) String() string {
	switch k {
	case KindSentinel:
		return "sentinel"
	default:
		return "data"
	}
}

// Event is a single push message.
type Event struct {
	Kind EventKind
	Data string
}

// IsSentinel reports whether the event ends the stream.
func (e Event) IsSentinel() bool { return e.Kind == KindSentinel }

// Classify turns a raw payload into an Event. Only an exact match of the
// sentinel ends the stream; the payload is never trimmed or decoded.
func Classify(payload string) Event {
	if payload == Sentinel {
		return Event{Kind: KindSentinel}
	}
	return Event{Kind: KindData, Data: payload}
}
