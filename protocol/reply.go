package protocol

import "fmt"

// ReplyKind classifies the single byte the device answers a block with
type ReplyKind int

const (
	ReplyNone    ReplyKind = iota // Nothing arrived within the reply window
	ReplyAck                      // 'G': checksum matched
	ReplyNack                     // 'B': checksum mismatch, resend
	ReplyUnknown                  // Any other byte
)

// Reply is a decoded block reply
type Reply struct {
	Kind ReplyKind
	Byte byte
}

// DecodeReply decodes the bytes read in the reply window. Only the first
// byte is significant.
func DecodeReply(data []byte) Reply {
	if len(data) == 0 {
		return Reply{Kind: ReplyNone}
	}
	switch data[0] {
	case ReplyGood:
		return Reply{Kind: ReplyAck, Byte: data[0]}
	case ReplyBad:
		return Reply{Kind: ReplyNack, Byte: data[0]}
	default:
		return Reply{Kind: ReplyUnknown, Byte: data[0]}
	}
}

func (r Reply) String() string {
	switch r.Kind {
	case ReplyNone:
		return "none"
	case ReplyAck:
		return "ack"
	case ReplyNack:
		return "nack"
	default:
		return fmt.Sprintf("unknown(%q)", r.Byte)
	}
}
