package mocks

// RetainedMessage is an mqtt.Message as delivered for a retained record topic.
type RetainedMessage struct {
	topic   string
	payload []byte
}

// NewRetainedMessage returns a retained message. A nil payload is the broker's way of
// reporting a cleared topic.
func NewRetainedMessage(topic string, payload []byte) *RetainedMessage {
	return &RetainedMessage{topic: topic, payload: payload}
}

func (m *RetainedMessage) Topic() string     { return m.topic }
func (m *RetainedMessage) Payload() []byte   { return m.payload }
func (m *RetainedMessage) Retained() bool    { return true }
func (m *RetainedMessage) Qos() byte         { return 1 }
func (m *RetainedMessage) Duplicate() bool   { return false }
func (m *RetainedMessage) MessageID() uint16 { return 0 }
func (m *RetainedMessage) Ack()              {}
