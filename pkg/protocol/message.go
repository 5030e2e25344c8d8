// Package protocol defines the WebSocket message types exchanged between
// the driver daemon and remote hosts.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Host → Driver requests
	TypeGetProperty MessageType = "get_property" // Read a property
	TypeSetProperty MessageType = "set_property" // Write a property
	TypeStartIO     MessageType = "start_io"     // Start IO on a device
	TypeStopIO      MessageType = "stop_io"      // Stop IO on a device
	TypeTimeStamp   MessageType = "timestamp"    // Read the zero timestamp

	// Driver → Host replies and pushes
	TypeResult            MessageType = "result"             // Request succeeded
	TypeError             MessageType = "error"              // Request failed
	TypePropertiesChanged MessageType = "properties_changed" // Notification

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	ID        string          `json:"id,omitempty"` // Correlates a reply with its request
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data any) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// WithID sets the correlation id and returns m.
func (m *Message) WithID(id string) *Message {
	m.ID = id
	return m
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v any) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

// =============================================================================
// Host → Driver Message Types
// =============================================================================

// Address names one property. Selector and Scope are four-char codes or,
// for scopes, "global", "input" and "output".
type Address struct {
	Selector string `json:"selector"`
	Scope    string `json:"scope,omitempty"`
	Element  uint32 `json:"element,omitempty"`
}

// PropertyRequest reads or writes a property. Qualifier and Data are
// base64 in JSON.
type PropertyRequest struct {
	ObjectID  uint32  `json:"object_id"`
	Client    int32   `json:"client,omitempty"`
	Address   Address `json:"address"`
	Qualifier []byte  `json:"qualifier,omitempty"`
	Data      []byte  `json:"data,omitempty"`
}

// IORequest starts, stops or timestamps IO on a device.
type IORequest struct {
	DeviceID uint32 `json:"device_id"`
	Client   int32  `json:"client,omitempty"`
}

// =============================================================================
// Driver → Host Message Types
// =============================================================================

// ResultData is the reply to a successful request. Data holds the raw
// property bytes for get_property.
type ResultData struct {
	Data []byte `json:"data,omitempty"`
	Size int    `json:"size,omitempty"`
}

// TimeStampData is the reply to a timestamp request.
type TimeStampData struct {
	SampleTime float64 `json:"sample_time"`
	HostTime   uint64  `json:"host_time"`
	Seed       uint64  `json:"seed"`
}

// ErrorData is the reply to a failed request.
type ErrorData struct {
	Status  string `json:"status"` // Four-char status code
	Message string `json:"message"`
}

// PropertiesChangedData carries a PropertiesChanged notification.
type PropertiesChangedData struct {
	ObjectID  uint32    `json:"object_id"`
	Addresses []Address `json:"addresses"`
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
