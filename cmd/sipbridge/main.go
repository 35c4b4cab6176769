// Command sipbridge is the single-endpoint SIP user-agent / RTP
// media-bridge engine (spec.md OVERVIEW): it registers one or more SIP
// lines with an upstream PBX, answers inbound calls, bridges RTP audio
// to the SHM-connected audio-processor children, and keeps the external
// store's line status in sync.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/whispertalk/sipbridge/internal/banner"
	"github.com/whispertalk/sipbridge/internal/call"
	"github.com/whispertalk/sipbridge/internal/codec"
	"github.com/whispertalk/sipbridge/internal/config"
	"github.com/whispertalk/sipbridge/internal/linemgr"
	"github.com/whispertalk/sipbridge/internal/logger"
	"github.com/whispertalk/sipbridge/internal/rtpengine"
	"github.com/whispertalk/sipbridge/internal/sip"
	"github.com/whispertalk/sipbridge/internal/store/sqlitestore"
)

// shutdownGrace bounds how long graceful shutdown waits for the SIP
// listener and line manager goroutines before the process exits anyway
// (spec.md §5/§7). Active calls are not torn down on this path.
const shutdownGrace = 5 * time.Second

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "sipbridge:", err)
		os.Exit(1)
	}

	logger.InitLogger(os.Stdout)
	logger.SetLevel(cfg.LogLevel)

	var lineID *int
	if !cfg.AllLines {
		lineID = &cfg.LineID
	}

	configLines := []banner.ConfigLine{
		{Label: "DB Path", Value: cfg.DBPath},
		{Label: "Bind IP", Value: cfg.BindIP},
		{Label: "Log Level", Value: cfg.LogLevel},
	}
	if cfg.SilenceWAVPath != "" {
		configLines = append(configLines, banner.ConfigLine{Label: "Silence WAV", Value: cfg.SilenceWAVPath})
	} else {
		configLines = append(configLines, banner.ConfigLine{Label: "Silence WAV", Value: "0xFF fill"})
	}
	if lineID != nil {
		configLines = append(configLines, banner.ConfigLine{Label: "Line ID", Value: fmt.Sprintf("%d", *lineID)})
	} else {
		configLines = append(configLines, banner.ConfigLine{Label: "Line ID", Value: "all enabled"})
	}
	banner.Print("Whisper Talk SIP Bridge", configLines)

	if err := run(cfg, lineID); err != nil {
		slog.Error("sipbridge exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, lineID *int) error {
	st, err := sqlitestore.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	var running atomic.Bool
	running.Store(true)

	calls := call.NewManager()
	rtp := rtpengine.NewRegistry()

	var silence *codec.SilenceSource
	if cfg.SilenceWAVPath != "" {
		silence, err = codec.LoadSilenceWAV(cfg.SilenceWAVPath)
		if err != nil {
			return fmt.Errorf("load silence wav: %w", err)
		}
	}

	// linemgr.Manager is constructed first (with no Registrar/KeepaliveSender
	// yet) so it can be handed to sip.New as a LineLookup; the SIP handler
	// is then wired back in as both interfaces, breaking the construction
	// cycle between the two packages (see linemgr.Manager.SetRegistrar).
	lines := linemgr.New(st, nil, nil, lineID)

	handler, err := sip.New(cfg.BindIP, calls, st, rtp, lines, silence, running.Load)
	if err != nil {
		return fmt.Errorf("start sip listener: %w", err)
	}
	lines.SetRegistrar(handler)
	lines.SetKeepalive(handler)

	slog.Info("sip listener bound", "ip", cfg.BindIP, "port", handler.LocalPort())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	listenerDone := make(chan struct{})
	go func() {
		handler.Run()
		close(listenerDone)
	}()

	lineMgrDone := make(chan struct{})
	go func() {
		if err := lines.Run(running.Load); err != nil {
			slog.Error("line manager exited", "error", err)
		}
		close(lineMgrDone)
	}()

	sig := <-sigCh
	slog.Info("received signal, shutting down", "signal", sig)

	running.Store(false)
	if err := handler.Close(); err != nil {
		slog.Warn("close sip socket", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	waitOrTimeout(shutdownCtx, listenerDone)
	waitOrTimeout(shutdownCtx, lineMgrDone)

	return nil
}

func waitOrTimeout(ctx context.Context, done <-chan struct{}) {
	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("shutdown grace period expired waiting for goroutine")
	}
}
