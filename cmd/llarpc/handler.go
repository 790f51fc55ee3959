package main

import (
	"log/slog"

	"github.com/tzf-key/loki-network/routing"
)

// loggingHandler is the default routing.MessageHandler: it logs every
// message it receives and accepts all of them. A real deployment
// replaces this with one wired into path building, the DHT, and exit
// session bookkeeping.
type loggingHandler struct {
	logger *slog.Logger
}

func (h *loggingHandler) HandleDataDiscardMessage(m *routing.DataDiscardMessage, r routing.Router) bool {
	h.logger.Debug("data discard", "from", m.From.String())
	return true
}

func (h *loggingHandler) HandlePathLatencyMessage(m *routing.PathLatencyMessage, r routing.Router) bool {
	h.logger.Debug("path latency", "txid", m.TXID, "from", m.From.String())
	return true
}

func (h *loggingHandler) HandleDHTMessage(m *routing.DHTMessage, r routing.Router) bool {
	h.logger.Debug("dht", "entries", len(m.Entries), "from", m.From.String())
	return true
}

func (h *loggingHandler) HandlePathConfirmMessage(m *routing.PathConfirmMessage, r routing.Router) bool {
	h.logger.Info("path confirmed", "lifetime", m.PathLifetime, "from", m.From.String())
	return true
}

func (h *loggingHandler) HandlePathTransferMessage(m *routing.PathTransferMessage, r routing.Router) bool {
	h.logger.Debug("path transfer", "bytes", len(m.Payload), "from", m.From.String())
	return true
}

func (h *loggingHandler) HandleProtocolFrameMessage(m *routing.ProtocolFrameMessage, r routing.Router) bool {
	h.logger.Debug("protocol frame", "bytes", len(m.Payload), "from", m.From.String())
	return true
}

func (h *loggingHandler) HandleTransferTrafficMessage(m *routing.TransferTrafficMessage, r routing.Router) bool {
	h.logger.Debug("transfer traffic", "packets", len(m.Packets), "from", m.From.String())
	return true
}

func (h *loggingHandler) HandleGrantExitMessage(m *routing.GrantExitMessage, r routing.Router) bool {
	h.logger.Info("exit granted", "txid", m.TXID, "from", m.From.String())
	return true
}

func (h *loggingHandler) HandleRejectExitMessage(m *routing.RejectExitMessage, r routing.Router) bool {
	h.logger.Warn("exit rejected", "txid", m.TXID, "reason", m.Reason, "from", m.From.String())
	return true
}

func (h *loggingHandler) HandleObtainExitMessage(m *routing.ObtainExitMessage, r routing.Router) bool {
	h.logger.Info("exit requested", "txid", m.TXID, "range", m.ExitRange, "from", m.From.String())
	return true
}

func (h *loggingHandler) HandleUpdateExitMessage(m *routing.UpdateExitMessage, r routing.Router) bool {
	h.logger.Debug("exit update", "txid", m.TXID, "from", m.From.String())
	return true
}

func (h *loggingHandler) HandleCloseExitMessage(m *routing.CloseExitMessage, r routing.Router) bool {
	h.logger.Info("exit closed", "txid", m.TXID, "from", m.From.String())
	return true
}
