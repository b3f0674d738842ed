// Package domain contains entity without logic, just meta-data
package domain

import (
	"encoding/json"
	"errors"
)

var ErrEmptyRoomID = errors.New("room id empty")

// Envelope is the inbound client message. Payload is opaque to the relay;
// offer/answer/candidate semantics live entirely in the clients.
type Envelope struct {
	RoomID  string          `json:"roomId"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Relayed is the outbound form delivered to every other room member.
type Relayed struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	From    string          `json:"from"`
}
