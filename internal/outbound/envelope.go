// Package outbound delivers domain events to the message broker. Immediate
// delivery is best-effort; the retry queue plus drain worker guarantee
// eventual delivery with at-least-once semantics, relying on consumer-side
// dedup by entity id.
package outbound

import "encoding/json"

// Envelope is the wire form of one domain event: the serialized event plus the
// id of the entity it belongs to. Kind doubles as the broker topic
// (e.g. "order.created").
type Envelope struct {
	EntityID string          `json:"entityId"`
	Kind     string          `json:"kind"`
	Payload  json.RawMessage `json:"payload"`
}
