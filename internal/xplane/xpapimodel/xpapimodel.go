// Package xpapimodel holds the wire shapes of the X-Plane 12 Web API: the
// REST dataref index lookup and the websocket subscription protocol.
package xpapimodel

type APIResponseDatarefs struct {
	Data []DatarefInfo `json:"data"`
}

type DatarefInfo struct {
	ID         int    `json:"id"`
	IsWritable bool   `json:"is_writable"`
	Name       string `json:"name"`
	ValueType  string `json:"value_type"`
}

// Dataref is the in-memory record for one subscribed dataref: the name we
// asked for, the index the API assigned, the latest raw value, and how to
// decode it.
type Dataref struct {
	Name            string
	APIInfo         DatarefInfo
	Value           any
	DecodedDataType string
}

type DatarefSubscriptionRequest struct {
	RequestID int64         `json:"req_id"`
	Type      string        `json:"type"`
	Params    ParamDatarefs `json:"params"`
}

type ParamDatarefs struct {
	Datarefs []SubDataref `json:"datarefs"`
}

type SubDataref struct {
	ID int `json:"id"`
}

type SubscriptionResponse struct {
	RequestID int64          `json:"req_id"`
	Type      string         `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
	Success   bool           `json:"success,omitempty"`
}
