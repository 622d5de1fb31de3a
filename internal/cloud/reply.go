package cloud

import (
	"encoding/json"
	"strings"

	"pktcloud/internal/packet"
)

// ReplyKind tags the three shapes a cloud response body can take.
type ReplyKind int

const (
	// ReplySuccess is a plain-text body starting with "success".
	ReplySuccess ReplyKind = iota
	// ReplyServerError is a plain-text body starting with "error".
	ReplyServerError
	// ReplyDataset is anything else, read as a JSON array of packet sets.
	ReplyDataset
)

func (k ReplyKind) String() string {
	switch k {
	case ReplySuccess:
		return "success"
	case ReplyServerError:
		return "error"
	default:
		return "dataset"
	}
}

// PacketSet is a described collection of packets stored in the cloud.
type PacketSet struct {
	Description string
	Packets     []packet.Packet
}

// Reply is an interpreted response body.
type Reply struct {
	Kind ReplyKind
	Text string      // trimmed body, for ReplySuccess and ReplyServerError
	Sets []PacketSet // for ReplyDataset; empty when nothing usable came back
}

type setJSON struct {
	Description string `json:"description"`
	PacketJSON  string `json:"packetjson"`
}

// Interpret classifies a response body. Unparseable JSON, missing fields and
// empty arrays all come back as a ReplyDataset with no sets.
func Interpret(body string) Reply {
	text := strings.TrimSpace(body)
	lower := strings.ToLower(text)

	switch {
	case strings.HasPrefix(lower, "success"):
		return Reply{Kind: ReplySuccess, Text: text}
	case strings.HasPrefix(lower, "error"):
		return Reply{Kind: ReplyServerError, Text: text}
	}

	reply := Reply{Kind: ReplyDataset}

	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return reply
	}

	for _, elem := range raw {
		var s setJSON
		// Non-object elements read as an empty set and are dropped below.
		_ = json.Unmarshal(elem, &s)
		if s.PacketJSON == "" {
			continue
		}
		packets := packet.ImportJSON([]byte(s.PacketJSON))
		if len(packets) == 0 {
			continue
		}
		reply.Sets = append(reply.Sets, PacketSet{Description: s.Description, Packets: packets})
	}
	return reply
}
