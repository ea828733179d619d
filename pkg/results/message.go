package results

// Message identifies a queued message well enough to derive a result
// fingerprint from it. The broker internals that produce Message values
// are out of scope; colony only needs a stable ID that survives retries
// of the same message.
type Message struct {
	ID    string
	Actor string
	Queue string
}

// BuildMessageKey derives the fingerprint a result backend stores under.
// It is stable across retries of the same message because it depends
// only on the message ID, never on attempt count or timestamp.
func BuildMessageKey(msg Message) []byte {
	return []byte(msg.ID)
}
