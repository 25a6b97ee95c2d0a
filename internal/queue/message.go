package queue

import "encoding/json"

// Message is the dispatch payload carried from the submission path to the
// processing path. It includes everything the processor needs so it can start
// without re-reading the record.
type Message struct {
	JobID         string `json:"jobId"`
	ExtractedText string `json:"extractedText"`
	Jurisdiction  string `json:"jurisdiction"`
	DocumentClass string `json:"documentClass"`
	OwnerID       string `json:"ownerId"`
	RequestID     string `json:"requestId,omitempty"`
	EnqueuedAt    string `json:"enqueuedAt,omitempty"`
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
