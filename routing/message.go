// Package routing decodes the bencoded messages carried over an onion
// path: a single dictionary whose first key selects one of a fixed set
// of variants, the remaining keys going to that variant's own decoder.
package routing

import (
	"github.com/tzf-key/loki-network/bencode"
	"github.com/tzf-key/loki-network/xnode"
)

// Tag is the one-byte discriminator carried under dictionary key "A".
type Tag byte

const (
	TagDataDiscard     Tag = 'D'
	TagPathLatency     Tag = 'L'
	TagDHT             Tag = 'M'
	TagPathConfirm     Tag = 'P'
	TagPathTransfer    Tag = 'T'
	TagProtocolFrame   Tag = 'H'
	TagTransferTraffic Tag = 'I'
	TagGrantExit       Tag = 'G'
	TagRejectExit      Tag = 'J'
	TagObtainExit      Tag = 'O'
	TagUpdateExit      Tag = 'U'
	TagCloseExit       Tag = 'C'
)

// Router is the handler's view of the node processing a message: enough
// surface to answer a GrantExit/ObtainExit/DHT message without the
// routing package importing the concrete router type.
type Router interface {
	Now() int64
}

// MessageHandler receives a fully decoded Message as its concrete
// variant, through the one method for that variant.
type MessageHandler interface {
	HandleDataDiscardMessage(*DataDiscardMessage, Router) bool
	HandlePathLatencyMessage(*PathLatencyMessage, Router) bool
	HandleDHTMessage(*DHTMessage, Router) bool
	HandlePathConfirmMessage(*PathConfirmMessage, Router) bool
	HandlePathTransferMessage(*PathTransferMessage, Router) bool
	HandleProtocolFrameMessage(*ProtocolFrameMessage, Router) bool
	HandleTransferTrafficMessage(*TransferTrafficMessage, Router) bool
	HandleGrantExitMessage(*GrantExitMessage, Router) bool
	HandleRejectExitMessage(*RejectExitMessage, Router) bool
	HandleObtainExitMessage(*ObtainExitMessage, Router) bool
	HandleUpdateExitMessage(*UpdateExitMessage, Router) bool
	HandleCloseExitMessage(*CloseExitMessage, Router) bool
}

// Message is one inbound routing-message variant. DecodeKey is called
// once per dictionary key after the leading "A" tag key; HandleMessage
// dispatches to the matching MessageHandler method; Clear resets the
// variant to its zero value so the parser's holder can reuse it.
type Message interface {
	DecodeKey(key []byte, buf *bencode.Buffer) bool
	HandleMessage(h MessageHandler, r Router) bool
	Clear()
	SetFrom(xnode.PathID)
}

type baseMessage struct {
	Version int64
	From    xnode.PathID
}

func (m *baseMessage) SetFrom(id xnode.PathID) { m.From = id }

func (m *baseMessage) decodeVersion(key []byte, buf *bencode.Buffer) (bool, bool) {
	if len(key) != 1 || key[0] != 'v' {
		return false, false
	}
	v, ok := buf.ReadInt()
	if !ok {
		return false, true
	}
	m.Version = v
	return true, true
}

// DataDiscardMessage carries no payload; receiving one is itself the
// signal (used to pad a path or probe liveness).
type DataDiscardMessage struct {
	baseMessage
}

func (m *DataDiscardMessage) DecodeKey(key []byte, buf *bencode.Buffer) bool {
	if handled, ok := m.decodeVersion(key, buf); handled {
		return ok
	}
	return bencode.Skip(buf)
}

func (m *DataDiscardMessage) HandleMessage(h MessageHandler, r Router) bool {
	return h.HandleDataDiscardMessage(m, r)
}

func (m *DataDiscardMessage) Clear() { *m = DataDiscardMessage{} }

// PathLatencyMessage carries a nonce the far end echoes back to measure
// round-trip time over a path.
type PathLatencyMessage struct {
	baseMessage
	TXID  uint64
	Nonce []byte
}

func (m *PathLatencyMessage) DecodeKey(key []byte, buf *bencode.Buffer) bool {
	if handled, ok := m.decodeVersion(key, buf); handled {
		return ok
	}
	if len(key) != 1 {
		return bencode.Skip(buf)
	}
	switch key[0] {
	case 'T':
		n, ok := buf.ReadInt()
		if !ok {
			return false
		}
		m.TXID = uint64(n)
		return true
	case 'L':
		nonce, ok := buf.ReadString()
		if !ok {
			return false
		}
		m.Nonce = append([]byte(nil), nonce...)
		return true
	default:
		return bencode.Skip(buf)
	}
}

func (m *PathLatencyMessage) HandleMessage(h MessageHandler, r Router) bool {
	return h.HandlePathLatencyMessage(m, r)
}

func (m *PathLatencyMessage) Clear() { *m = PathLatencyMessage{} }

// DHTMessage wraps a list of opaque DHT sub-messages, relayed without
// this package needing to understand their content.
type DHTMessage struct {
	baseMessage
	Entries [][]byte
}

func (m *DHTMessage) DecodeKey(key []byte, buf *bencode.Buffer) bool {
	if handled, ok := m.decodeVersion(key, buf); handled {
		return ok
	}
	if len(key) == 1 && key[0] == 'E' {
		return buf.ReadList(func(b *bencode.Buffer) bool {
			entry, ok := b.ReadString()
			if !ok {
				return false
			}
			m.Entries = append(m.Entries, append([]byte(nil), entry...))
			return true
		})
	}
	return bencode.Skip(buf)
}

func (m *DHTMessage) HandleMessage(h MessageHandler, r Router) bool {
	return h.HandleDHTMessage(m, r)
}

func (m *DHTMessage) Clear() { *m = DHTMessage{} }

// PathConfirmMessage acknowledges that a path build succeeded, sent
// hop-by-hop back to the path's originator.
type PathConfirmMessage struct {
	baseMessage
	PathLifetime int64
}

func (m *PathConfirmMessage) DecodeKey(key []byte, buf *bencode.Buffer) bool {
	if handled, ok := m.decodeVersion(key, buf); handled {
		return ok
	}
	if len(key) == 1 && key[0] == 'L' {
		n, ok := buf.ReadInt()
		if !ok {
			return false
		}
		m.PathLifetime = n
		return true
	}
	return bencode.Skip(buf)
}

func (m *PathConfirmMessage) HandleMessage(h MessageHandler, r Router) bool {
	return h.HandlePathConfirmMessage(m, r)
}

func (m *PathConfirmMessage) Clear() { *m = PathConfirmMessage{} }

// PathTransferMessage carries an onion-encrypted frame to be relayed
// one more hop toward its destination path.
type PathTransferMessage struct {
	baseMessage
	PathID  xnode.PathID
	Payload []byte
}

func (m *PathTransferMessage) DecodeKey(key []byte, buf *bencode.Buffer) bool {
	if handled, ok := m.decodeVersion(key, buf); handled {
		return ok
	}
	if len(key) != 1 {
		return bencode.Skip(buf)
	}
	switch key[0] {
	case 'P':
		id, ok := buf.ReadString()
		if !ok || len(id) != len(m.PathID) {
			return false
		}
		copy(m.PathID[:], id)
		return true
	case 'T':
		payload, ok := buf.ReadString()
		if !ok {
			return false
		}
		m.Payload = append([]byte(nil), payload...)
		return true
	default:
		return bencode.Skip(buf)
	}
}

func (m *PathTransferMessage) HandleMessage(h MessageHandler, r Router) bool {
	return h.HandlePathTransferMessage(m, r)
}

func (m *PathTransferMessage) Clear() { *m = PathTransferMessage{} }

// ProtocolFrameMessage carries a service-layer (end-to-end encrypted)
// frame between two endpoints communicating over their paths.
type ProtocolFrameMessage struct {
	baseMessage
	Flags   int64
	Payload []byte
}

func (m *ProtocolFrameMessage) DecodeKey(key []byte, buf *bencode.Buffer) bool {
	if handled, ok := m.decodeVersion(key, buf); handled {
		return ok
	}
	if len(key) != 1 {
		return bencode.Skip(buf)
	}
	switch key[0] {
	case 'F':
		n, ok := buf.ReadInt()
		if !ok {
			return false
		}
		m.Flags = n
		return true
	case 'D':
		payload, ok := buf.ReadString()
		if !ok {
			return false
		}
		m.Payload = append([]byte(nil), payload...)
		return true
	default:
		return bencode.Skip(buf)
	}
}

func (m *ProtocolFrameMessage) HandleMessage(h MessageHandler, r Router) bool {
	return h.HandleProtocolFrameMessage(m, r)
}

func (m *ProtocolFrameMessage) Clear() { *m = ProtocolFrameMessage{} }

// TransferTrafficMessage carries raw exit traffic between an exit node
// and the path that requested it.
type TransferTrafficMessage struct {
	baseMessage
	Packets [][]byte
	Counter uint64
}

func (m *TransferTrafficMessage) DecodeKey(key []byte, buf *bencode.Buffer) bool {
	if handled, ok := m.decodeVersion(key, buf); handled {
		return ok
	}
	if len(key) != 1 {
		return bencode.Skip(buf)
	}
	switch key[0] {
	case 'X':
		return buf.ReadList(func(b *bencode.Buffer) bool {
			pkt, ok := b.ReadString()
			if !ok {
				return false
			}
			m.Packets = append(m.Packets, append([]byte(nil), pkt...))
			return true
		})
	case 'Z':
		n, ok := buf.ReadInt()
		if !ok {
			return false
		}
		m.Counter = uint64(n)
		return true
	default:
		return bencode.Skip(buf)
	}
}

func (m *TransferTrafficMessage) HandleMessage(h MessageHandler, r Router) bool {
	return h.HandleTransferTrafficMessage(m, r)
}

func (m *TransferTrafficMessage) Clear() { *m = TransferTrafficMessage{} }

// GrantExitMessage is the exit node's reply admitting a requester onto
// its exit policy.
type GrantExitMessage struct {
	baseMessage
	TXID uint64
}

func (m *GrantExitMessage) DecodeKey(key []byte, buf *bencode.Buffer) bool {
	if handled, ok := m.decodeVersion(key, buf); handled {
		return ok
	}
	if len(key) == 1 && key[0] == 'T' {
		n, ok := buf.ReadInt()
		if !ok {
			return false
		}
		m.TXID = uint64(n)
		return true
	}
	return bencode.Skip(buf)
}

func (m *GrantExitMessage) HandleMessage(h MessageHandler, r Router) bool {
	return h.HandleGrantExitMessage(m, r)
}

func (m *GrantExitMessage) Clear() { *m = GrantExitMessage{} }

// RejectExitMessage is the exit node's reply refusing a requester,
// optionally naming a reason code.
type RejectExitMessage struct {
	baseMessage
	TXID   uint64
	Reason int64
}

func (m *RejectExitMessage) DecodeKey(key []byte, buf *bencode.Buffer) bool {
	if handled, ok := m.decodeVersion(key, buf); handled {
		return ok
	}
	if len(key) != 1 {
		return bencode.Skip(buf)
	}
	switch key[0] {
	case 'T':
		n, ok := buf.ReadInt()
		if !ok {
			return false
		}
		m.TXID = uint64(n)
		return true
	case 'R':
		n, ok := buf.ReadInt()
		if !ok {
			return false
		}
		m.Reason = n
		return true
	default:
		return bencode.Skip(buf)
	}
}

func (m *RejectExitMessage) HandleMessage(h MessageHandler, r Router) bool {
	return h.HandleRejectExitMessage(m, r)
}

func (m *RejectExitMessage) Clear() { *m = RejectExitMessage{} }

// ObtainExitMessage requests exit traffic service from the endpoint of
// a path, carrying a transaction ID and the IP range the requester asks
// to exit to.
type ObtainExitMessage struct {
	baseMessage
	TXID      uint64
	ExitRange string
}

func (m *ObtainExitMessage) DecodeKey(key []byte, buf *bencode.Buffer) bool {
	if handled, ok := m.decodeVersion(key, buf); handled {
		return ok
	}
	if len(key) != 1 {
		return bencode.Skip(buf)
	}
	switch key[0] {
	case 'T':
		n, ok := buf.ReadInt()
		if !ok {
			return false
		}
		m.TXID = uint64(n)
		return true
	case 'E':
		rng, ok := buf.ReadString()
		if !ok {
			return false
		}
		m.ExitRange = string(rng)
		return true
	default:
		return bencode.Skip(buf)
	}
}

func (m *ObtainExitMessage) HandleMessage(h MessageHandler, r Router) bool {
	return h.HandleObtainExitMessage(m, r)
}

func (m *ObtainExitMessage) Clear() { *m = ObtainExitMessage{} }

// UpdateExitMessage asks to extend an already-granted exit session's
// lifetime without tearing down and rebuilding the path.
type UpdateExitMessage struct {
	baseMessage
	TXID uint64
}

func (m *UpdateExitMessage) DecodeKey(key []byte, buf *bencode.Buffer) bool {
	if handled, ok := m.decodeVersion(key, buf); handled {
		return ok
	}
	if len(key) == 1 && key[0] == 'T' {
		n, ok := buf.ReadInt()
		if !ok {
			return false
		}
		m.TXID = uint64(n)
		return true
	}
	return bencode.Skip(buf)
}

func (m *UpdateExitMessage) HandleMessage(h MessageHandler, r Router) bool {
	return h.HandleUpdateExitMessage(m, r)
}

func (m *UpdateExitMessage) Clear() { *m = UpdateExitMessage{} }

// CloseExitMessage tears down a granted exit session.
type CloseExitMessage struct {
	baseMessage
	TXID uint64
}

func (m *CloseExitMessage) DecodeKey(key []byte, buf *bencode.Buffer) bool {
	if handled, ok := m.decodeVersion(key, buf); handled {
		return ok
	}
	if len(key) == 1 && key[0] == 'T' {
		n, ok := buf.ReadInt()
		if !ok {
			return false
		}
		m.TXID = uint64(n)
		return true
	}
	return bencode.Skip(buf)
}

func (m *CloseExitMessage) HandleMessage(h MessageHandler, r Router) bool {
	return h.HandleCloseExitMessage(m, r)
}

func (m *CloseExitMessage) Clear() { *m = CloseExitMessage{} }
