package types

import "encoding/json"

// Op name constants for the server -> client tagged union.
const (
	OpConnection  = "connection"
	OpMarketChange = "mcm"
	OpOrderChange  = "ocm"
	OpStatus       = "status"
)

// ConnectionMessage is the first message the server sends once the TCP
// connection is established, carrying the connection id needed for
// support diagnostics.
type ConnectionMessage struct {
	Op           string `json:"op"`
	ID           *int   `json:"id,omitempty"`
	ConnectionID string `json:"connectionId,omitempty"`
}

// MarketChangeMessage carries market-data updates. Fields omitted by the
// server mean "unchanged since the last message", not "cleared" — a nil
// Mc means this message is a heartbeat or metadata-only frame.
type MarketChangeMessage struct {
	Op          string         `json:"op"`
	ID          *int           `json:"id,omitempty"`
	Ct          *ChangeType    `json:"ct,omitempty"`
	Clk         *string        `json:"clk,omitempty"`
	HeartbeatMs *int64         `json:"heartbeatMs,omitempty"`
	Pt          *int64         `json:"pt,omitempty"`
	InitialClk  *string        `json:"initialClk,omitempty"`
	Mc          []MarketChange `json:"mc,omitempty"`
	ConflateMs  *int64         `json:"conflateMs,omitempty"`
	SegmentType *SegmentType   `json:"segmentType,omitempty"`
	Status      *int           `json:"status,omitempty"`
}

// OrderChangeMessage carries order-data updates for the authenticated
// account.
type OrderChangeMessage struct {
	Op          string              `json:"op"`
	ID          *int                `json:"id,omitempty"`
	Ct          *ChangeType         `json:"ct,omitempty"`
	Clk         *string             `json:"clk,omitempty"`
	HeartbeatMs *int64              `json:"heartbeatMs,omitempty"`
	Pt          *int64              `json:"pt,omitempty"`
	Oc          []OrderMarketChange `json:"oc,omitempty"`
	InitialClk  *string             `json:"initialClk,omitempty"`
	ConflateMs  *int64              `json:"conflateMs,omitempty"`
	SegmentType *SegmentType        `json:"segmentType,omitempty"`
	Status      *int                `json:"status,omitempty"`
}

// StatusMessage reports the outcome of the last request, and on a
// response to authentication, the number of connections the account has
// available.
type StatusMessage struct {
	Op                  string     `json:"op"`
	ID                  *int       `json:"id,omitempty"`
	ConnectionsAvailable *int      `json:"connectionsAvailable,omitempty"`
	ErrorMessage        *string    `json:"errorMessage,omitempty"`
	ErrorCode           *ErrorCode `json:"errorCode,omitempty"`
	ConnectionID        *string    `json:"connectionId,omitempty"`
	ConnectionClosed    *bool      `json:"connectionClosed,omitempty"`
	StatusCode          *StatusCode `json:"statusCode,omitempty"`
}

// responseEnvelope is decoded first to read the "op" discriminator
// before committing to a concrete type, mirroring the usual envelope-peek
// pattern for loosely-typed server push messages.
type responseEnvelope struct {
	Op string `json:"op"`
}

// DecodeResponse dispatches one already-framed JSON object to its
// concrete response type based on its "op" field.
func DecodeResponse(data []byte) (any, error) {
	var env responseEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	switch env.Op {
	case OpConnection:
		var m ConnectionMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case OpMarketChange:
		var m MarketChangeMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case OpOrderChange:
		var m OrderChangeMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case OpStatus:
		var m StatusMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, &unrecognizedOpError{op: env.Op}
	}
}
