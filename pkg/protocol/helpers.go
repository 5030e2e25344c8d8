package protocol

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewGetPropertyMessage creates a property read request
func NewGetPropertyMessage(objectID uint32, addr Address, qualifier []byte) (*Message, error) {
	return NewMessage(TypeGetProperty, PropertyRequest{
		ObjectID:  objectID,
		Address:   addr,
		Qualifier: qualifier,
	})
}

// NewSetPropertyMessage creates a property write request
func NewSetPropertyMessage(objectID uint32, addr Address, data []byte) (*Message, error) {
	return NewMessage(TypeSetProperty, PropertyRequest{
		ObjectID: objectID,
		Address:  addr,
		Data:     data,
	})
}

// NewIOMessage creates a start_io, stop_io or timestamp request
func NewIOMessage(msgType MessageType, deviceID uint32, client int32) (*Message, error) {
	return NewMessage(msgType, IORequest{DeviceID: deviceID, Client: client})
}

// NewResultMessage creates a success reply
func NewResultMessage(id string, data []byte) (*Message, error) {
	msg, err := NewMessage(TypeResult, ResultData{Data: data, Size: len(data)})
	if err != nil {
		return nil, err
	}
	return msg.WithID(id), nil
}

// NewTimeStampMessage creates a timestamp reply
func NewTimeStampMessage(id string, sampleTime float64, hostTime, seed uint64) (*Message, error) {
	msg, err := NewMessage(TypeResult, TimeStampData{SampleTime: sampleTime, HostTime: hostTime, Seed: seed})
	if err != nil {
		return nil, err
	}
	return msg.WithID(id), nil
}

// NewErrorMessage creates a failure reply
func NewErrorMessage(id, status, message string) (*Message, error) {
	msg, err := NewMessage(TypeError, ErrorData{Status: status, Message: message})
	if err != nil {
		return nil, err
	}
	return msg.WithID(id), nil
}

// NewPropertiesChangedMessage creates a notification push
func NewPropertiesChangedMessage(objectID uint32, addrs []Address) (*Message, error) {
	return NewMessage(TypePropertiesChanged, PropertiesChangedData{
		ObjectID:  objectID,
		Addresses: addrs,
	})
}

// NewPingMessage creates a ping message
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{
		ID:        id,
		Timestamp: 0, // Will be set by NewMessage
	})
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetPropertyRequest extracts a property request from a message
func (m *Message) GetPropertyRequest() (*PropertyRequest, error) {
	var data PropertyRequest
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetIORequest extracts an IO request from a message
func (m *Message) GetIORequest() (*IORequest, error) {
	var data IORequest
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetResultData extracts a result from a message
func (m *Message) GetResultData() (*ResultData, error) {
	var data ResultData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetTimeStampData extracts a timestamp result from a message
func (m *Message) GetTimeStampData() (*TimeStampData, error) {
	var data TimeStampData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetErrorData extracts an error from a message
func (m *Message) GetErrorData() (*ErrorData, error) {
	var data ErrorData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPropertiesChangedData extracts a notification from a message
func (m *Message) GetPropertiesChangedData() (*PropertiesChangedData, error) {
	var data PropertiesChangedData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPongData extracts pong data from a message
func (m *Message) GetPongData() (*PongData, error) {
	var data PongData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
