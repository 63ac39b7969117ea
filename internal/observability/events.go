package observability

type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Payload   interface{} `json:"payload"`
}

// SocketLifecycle describes one connect/disconnect/error transition of
// a user socket, published to the events exchange.
type SocketLifecycle struct {
	Event      string `json:"event"`
	ConnID     string `json:"conn_id"`
	UserID     int    `json:"user_id"`
	IP         string `json:"ip"`
	DeviceID   string `json:"device_id"`
	DurationMS int64  `json:"duration_ms"`
	Reason     string `json:"reason"`
}

// SocketEnvelope wraps a lifecycle transition for publishing.
func SocketEnvelope(event SocketLifecycle) EventEnvelope {
	return EventEnvelope{
		EventType: "ws_events",
		EventName: event.Event,
		Payload:   event,
	}
}

func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}
