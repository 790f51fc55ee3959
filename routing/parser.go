package routing

import (
	"fmt"
	"log/slog"

	"github.com/tzf-key/loki-network/bencode"
	"github.com/tzf-key/loki-network/xnode"
)

// parserState tracks ParseMessageBuffer's progress through one call so
// the DictVisitor closure knows whether it is still looking for the
// leading tag key.
type parserState int

const (
	stateIdle parserState = iota
	stateAwaitingTag
	stateDecoding
	stateDispatched
)

// messageHolder pre-allocates one instance of every known variant so
// parsing never allocates a new Message on the hot inbound path.
type messageHolder struct {
	discard  DataDiscardMessage
	latency  PathLatencyMessage
	dht      DHTMessage
	confirm  PathConfirmMessage
	transfer PathTransferMessage
	frame    ProtocolFrameMessage
	traffic  TransferTrafficMessage
	grant    GrantExitMessage
	reject   RejectExitMessage
	obtain   ObtainExitMessage
	update   UpdateExitMessage
	close    CloseExitMessage
}

func (h *messageHolder) forTag(tag Tag) Message {
	switch tag {
	case TagDataDiscard:
		return &h.discard
	case TagPathLatency:
		return &h.latency
	case TagDHT:
		return &h.dht
	case TagPathConfirm:
		return &h.confirm
	case TagPathTransfer:
		return &h.transfer
	case TagProtocolFrame:
		return &h.frame
	case TagTransferTraffic:
		return &h.traffic
	case TagGrantExit:
		return &h.grant
	case TagRejectExit:
		return &h.reject
	case TagObtainExit:
		return &h.obtain
	case TagUpdateExit:
		return &h.update
	case TagCloseExit:
		return &h.close
	default:
		return nil
	}
}

func (h *messageHolder) clear() {
	h.discard.Clear()
	h.latency.Clear()
	h.dht.Clear()
	h.confirm.Clear()
	h.transfer.Clear()
	h.frame.Clear()
	h.traffic.Clear()
	h.grant.Clear()
	h.reject.Clear()
	h.obtain.Clear()
	h.update.Clear()
	h.close.Clear()
}

// dumpLimit bounds how much of a malformed buffer gets logged.
const dumpLimit = 64

// InboundMessageParser decodes one routing message at a time. It is not
// safe for concurrent use: a single instance is meant to be driven by
// one reader loop, with its holder reused between calls.
type InboundMessageParser struct {
	holder messageHolder
	msg    Message
	state  parserState
	logger *slog.Logger
}

// NewInboundMessageParser constructs a reusable parser.
func NewInboundMessageParser(logger *slog.Logger) *InboundMessageParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &InboundMessageParser{logger: logger}
}

// ParseMessageBuffer decodes one bencoded dictionary from buf, dispatches
// the resulting Message to h, and always leaves the parser ready for the
// next call regardless of outcome.
func (p *InboundMessageParser) ParseMessageBuffer(buf []byte, h MessageHandler, from xnode.PathID, r Router) bool {
	p.state = stateAwaitingTag
	p.msg = nil
	defer func() {
		p.holder.clear()
		p.msg = nil
		p.state = stateIdle
	}()

	reader := bencode.NewReader(append([]byte(nil), buf...))

	ok := reader.ReadDict(func(key []byte, b *bencode.Buffer) bool {
		if key == nil {
			return p.state != stateAwaitingTag
		}
		if p.state == stateAwaitingTag {
			return p.decodeTag(key, b)
		}
		if p.state != stateDecoding {
			return false
		}
		return p.msg.DecodeKey(key, b)
	})

	if !ok {
		p.logger.Error("malformed routing message", "dump", fmt.Sprintf("%x", truncate(buf, dumpLimit)))
		return false
	}
	if p.msg == nil {
		p.logger.Error("empty routing message dictionary")
		return false
	}

	p.state = stateDispatched
	p.msg.SetFrom(from)
	if !p.msg.HandleMessage(h, r) {
		p.logger.Warn("routing message handler returned false")
		return false
	}
	return true
}

func (p *InboundMessageParser) decodeTag(key []byte, b *bencode.Buffer) bool {
	if len(key) != 1 || key[0] != 'A' {
		p.logger.Error("first routing message key was not A", "key", string(key))
		return false
	}
	tagBytes, ok := b.ReadString()
	if !ok || len(tagBytes) != 1 {
		p.logger.Error("routing message tag was not a single byte")
		return false
	}
	tag := Tag(tagBytes[0])
	msg := p.holder.forTag(tag)
	if msg == nil {
		p.logger.Error("unknown routing message tag", "tag", string(tagBytes))
		return false
	}
	p.msg = msg
	p.state = stateDecoding
	return true
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
