package domain

type (
	// RoomID names a signaling room. Externally supplied, case-sensitive.
	RoomID string
	// ConnID identifies one persistent client connection. Assigned by the
	// transport when the connection is accepted, stable for its lifetime.
	ConnID string
)
