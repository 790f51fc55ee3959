package main

import (
	"crypto/ed25519"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tzf-key/loki-network/rc"
	"github.com/tzf-key/loki-network/router"
	"github.com/tzf-key/loki-network/xnode"
)

func main() {
	configPath := flag.String("config", "llarpc.toml", "path to config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "llarpc: %v (using defaults)\n", err)
	}

	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	contact, priv, err := loadOrCreateContact(cfg.Router.ContactFile, cfg.Router.KeyFile, cfg.Router.Nickname, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "llarpc: %v\n", err)
		os.Exit(1)
	}
	_ = priv // held for a future re-sign-on-change operation; not yet exercised

	r := router.New(contact, cfg.Router.NumPaths, logger)
	handler := &loggingHandler{logger: logger}
	logger.Info("router ready", "id", r.ID().String(), "nickname", contact.Nick())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	logger.Info("llarpc running; inbound messages are handled via r.HandleInboundMessage once a transport delivers them", "handler_ready", handler != nil)
	for {
		select {
		case <-ticker.C:
			r.Tick()
		case <-sigCh:
			logger.Info("shutting down")
			return
		}
	}
}

func loadOrCreateContact(contactPath, keyPath, nickname string, logger *slog.Logger) (*rc.RouterContact, ed25519.PrivateKey, error) {
	var contact rc.RouterContact
	if contact.Read(contactPath) {
		if !contact.VerifySignature(xnode.Ed25519Crypto{}) {
			return nil, nil, fmt.Errorf("contact file %s failed signature verification", contactPath)
		}
		logger.Info("loaded existing router contact", "file", contactPath)
		priv, err := loadIdentityKey(keyPath)
		if err != nil {
			logger.Warn("could not load identity key alongside existing contact; re-signing will be unavailable", "file", keyPath, "err", err)
			return &contact, nil, nil
		}
		return &contact, priv, nil
	}

	logger.Info("no existing router contact found, generating one", "file", contactPath)
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("generate identity: %w", err)
	}
	copy(contact.PubKey[:], pub)
	if nickname != "" {
		contact.SetNick(nickname)
	}
	if !contact.Sign(xnode.Ed25519Crypto{}, priv) {
		return nil, nil, fmt.Errorf("sign new router contact")
	}
	if err := os.WriteFile(keyPath, priv, 0600); err != nil {
		return nil, nil, fmt.Errorf("write identity key: %w", err)
	}
	if err := contact.WriteAtomic(contactPath); err != nil {
		return nil, nil, fmt.Errorf("write new router contact: %w", err)
	}
	return &contact, priv, nil
}

// loadIdentityKey reads the raw ed25519 private key persisted by
// loadOrCreateContact, the only format this binary ever writes there.
func loadIdentityKey(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("identity key %s: want %d bytes, got %d", path, ed25519.PrivateKeySize, len(data))
	}
	return ed25519.PrivateKey(data), nil
}
