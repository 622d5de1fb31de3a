// Package packet defines the stored request/response record and its JSON
// export format. The cloud service stores packet sets in this format as a
// nested string, so both the uploader and the importer go through here.
package packet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Packet is one saved request/response record.
type Packet struct {
	Name         string  `json:"name"`
	HexString    string  `json:"hexString"`
	FromIP       string  `json:"fromIP,omitempty"`
	ToIP         string  `json:"toIP"`
	Port         int     `json:"port"`
	FromPort     int     `json:"fromPort,omitempty"`
	Protocol     string  `json:"tcpOrUdp"`
	SendResponse int     `json:"sendResponse,omitempty"`
	Repeat       float64 `json:"repeat,omitempty"`
	RequestPath  string  `json:"requestPath,omitempty"`
	Timestamp    string  `json:"timestamp,omitempty"`
}

// ImportJSON decodes a JSON array of packets. Each element is read on its
// own and field types are taken leniently, so one odd entry does not cost the
// rest. Entries without a name are dropped since packets are keyed by name.
// Malformed input yields no packets.
func ImportJSON(data []byte) []Packet {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil
	}

	packets := make([]Packet, 0, len(elems))
	for _, elem := range elems {
		var w wirePacket
		if err := json.Unmarshal(elem, &w); err != nil {
			continue
		}
		p := w.packet()
		if strings.TrimSpace(p.Name) == "" {
			continue
		}
		packets = append(packets, p)
	}
	return packets
}

// wirePacket is a Packet as other clients write it: numbers sometimes arrive
// as strings and names as numbers.
type wirePacket struct {
	Name         flexString `json:"name"`
	HexString    flexString `json:"hexString"`
	FromIP       flexString `json:"fromIP"`
	ToIP         flexString `json:"toIP"`
	Port         flexNumber `json:"port"`
	FromPort     flexNumber `json:"fromPort"`
	Protocol     flexString `json:"tcpOrUdp"`
	SendResponse flexNumber `json:"sendResponse"`
	Repeat       flexNumber `json:"repeat"`
	RequestPath  flexString `json:"requestPath"`
	Timestamp    flexString `json:"timestamp"`
}

func (w wirePacket) packet() Packet {
	return Packet{
		Name:         string(w.Name),
		HexString:    string(w.HexString),
		FromIP:       string(w.FromIP),
		ToIP:         string(w.ToIP),
		Port:         int(w.Port),
		FromPort:     int(w.FromPort),
		Protocol:     string(w.Protocol),
		SendResponse: int(w.SendResponse),
		Repeat:       float64(w.Repeat),
		RequestPath:  string(w.RequestPath),
		Timestamp:    string(w.Timestamp),
	}
}

// flexString accepts a string, number or bool. Anything else reads as empty.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var v any
	if err := json.Unmarshal(b, &v); err == nil {
		switch v.(type) {
		case float64, bool:
			*f = flexString(bytes.TrimSpace(b))
		}
	}
	return nil
}

// flexNumber accepts a number or a numeric string. Anything else reads as zero.
type flexNumber float64

func (f *flexNumber) UnmarshalJSON(b []byte) error {
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexNumber(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if n, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			*f = flexNumber(n)
		}
	}
	return nil
}

// ExportJSON encodes packets in the format ImportJSON reads.
func ExportJSON(packets []Packet) ([]byte, error) {
	if packets == nil {
		packets = []Packet{}
	}
	data, err := json.Marshal(packets)
	if err != nil {
		return nil, fmt.Errorf("failed to encode packets: %w", err)
	}
	return data, nil
}
