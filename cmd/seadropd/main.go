package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"path/filepath"
	"syscall"

	"seadrop/config"
	"seadrop/crypto"
	"seadrop/device"
	"seadrop/discovery"
	"seadrop/seadrop"
	"seadrop/storage"
)

func main() {
	cfg, cfgPath, err := config.LoadOrCreate()
	if err != nil {
		log.Fatalf("startup failed while loading config: %v", err)
	}

	dataDir := filepath.Dir(cfgPath)
	runtimeCfg, runtimePath, err := config.LoadOrCreateRuntime(dataDir)
	if err != nil {
		log.Fatalf("startup failed while loading runtime config: %v", err)
	}

	ed25519PrivateKey, ed25519PublicKey, err := crypto.EnsureEd25519KeyPair(cfg.Ed25519PrivateKeyPath, cfg.Ed25519PublicKeyPath)
	if err != nil {
		log.Fatalf("startup failed while preparing Ed25519 keypair: %v", err)
	}

	if _, err := crypto.EnsureX25519PrivateKey(cfg.X25519PrivateKeyPath); err != nil {
		log.Fatalf("startup failed while preparing X25519 keypair: %v", err)
	}

	fingerprint := crypto.KeyFingerprint(ed25519PublicKey)
	if cfg.KeyFingerprint != fingerprint {
		cfg.KeyFingerprint = fingerprint
		if err := config.Save(cfgPath, cfg); err != nil {
			log.Fatalf("startup failed while persisting key fingerprint: %v", err)
		}
	}

	localID := crypto.DeviceIDFromPublicKey(ed25519PublicKey)

	fmt.Printf("Device ID:       %s\n", localID)
	fmt.Printf("Device Name:     %s\n", cfg.DeviceName)
	fmt.Printf("Listening Port:  %d\n", cfg.ListeningPort)
	fmt.Printf("Fingerprint:     %s\n", crypto.FormatFingerprint(cfg.KeyFingerprint))
	fmt.Printf("Config File:     %s\n", cfgPath)
	fmt.Printf("Runtime File:    %s\n", runtimePath)
	fmt.Printf("Data Directory:  %s\n", dataDir)

	store, dbPath, err := storage.Open(dataDir)
	if err != nil {
		log.Fatalf("startup failed while opening database: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("database close error: %v", err)
		}
	}()
	fmt.Printf("Database File:   %s\n", dbPath)

	node, err := seadrop.NewNode(seadrop.Options{
		LocalID:    localID,
		SigningKey: ed25519PrivateKey,
		Store:      store,
		Runtime:    runtimeCfg,
		Discovery: discovery.Config{
			SelfDeviceID:   localID.String(),
			DeviceName:     cfg.DeviceName,
			ListeningPort:  cfg.ListeningPort,
			KeyFingerprint: cfg.KeyFingerprint,
			Capabilities:   uint32(device.CapClipboard | device.CapResumable),
		},
		SaveDirectory: filepath.Join(dataDir, "files"),
	})
	if err != nil {
		log.Fatalf("startup failed while building node: %v", err)
	}

	if err := node.Start(); err != nil {
		log.Printf("discovery startup failed: %v", err)
	} else {
		fmt.Println("Discovery:       running")
	}
	defer node.Stop()

	go logEvents(node)
	go logErrors(node)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println("Status:          running (press Ctrl+C to stop)")
	<-ctx.Done()
	fmt.Println("Status:          shutting down")
}

func logEvents(node *seadrop.Node) {
	for event := range node.Events() {
		switch event.Kind {
		case seadrop.EventPeerDiscovered:
			log.Printf("peer discovered id=%s name=%q", event.PeerID, event.PeerName)
		case seadrop.EventPeerLost:
			log.Printf("peer lost id=%s", event.PeerID)
		case seadrop.EventZoneChanged:
			log.Printf("zone changed id=%s zone=%s closer=%v", event.PeerID, event.Zone, event.IsMovingCloser)
		case seadrop.EventSecurityAlert:
			log.Printf("security alert id=%s: %s", event.PeerID, event.Message)
		case seadrop.EventTransferRequested:
			log.Printf("transfer requested id=%s from=%s files=%d size=%d",
				event.TransferID, event.PeerID, len(event.Request.Files), event.Request.TotalSize)
		case seadrop.EventTransferFinished:
			log.Printf("transfer finished id=%s state=%s", event.TransferID, event.Result.FinalState)
		case seadrop.EventClipboardReceived:
			log.Printf("clipboard received from=%s index=%d", event.PeerID, event.ClipboardIndex)
		default:
			log.Printf("event kind=%s id=%s", event.Kind, event.PeerID)
		}
	}
}

func logErrors(node *seadrop.Node) {
	for err := range node.Errors() {
		log.Printf("error: %v", err)
	}
}
