package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/lanikai/rtprx/internal/logging"
	"github.com/lanikai/rtprx/internal/media"
	"github.com/lanikai/rtprx/internal/rtp"
	"github.com/lanikai/rtprx/internal/sdp"
	"github.com/lanikai/rtprx/internal/srtp"
)

// Populated via -ldflags="-X main.version=...".
var version = "dev"

var log = logging.DefaultLogger.WithTag("rtprecv")

func main() {
	flag.Parse()

	if flagHelp {
		help()
		os.Exit(0)
	}
	if flagVersion {
		fmt.Println("rtprecv", version)
		os.Exit(0)
	}

	if flagLogFile != "" {
		logging.DefaultLogger.SetDestination(&lumberjack.Logger{
			Filename:   flagLogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil && err != context.Canceled {
		log.Fatal(err)
	}
}

func run(ctx context.Context) error {
	types, err := payloadTypes()
	if err != nil {
		return err
	}

	opts := rtp.SessionOptions{
		MaxDropout:        flagMaxDropout,
		MaxMisorder:       flagMaxMisorder,
		MaxSources:        flagMaxSources,
		SourceTimeout:     flagSourceTimeout,
		ReceiveBufferSize: flagReceiveBuffer,
	}
	if flagSRTPKey != "" {
		if opts.SRTP, err = srtpContext(); err != nil {
			return err
		}
	}

	var factories []media.SinkFactory
	if flagOutput != "" {
		if err := os.MkdirAll(flagOutput, 0755); err != nil {
			return err
		}
		factories = append(factories, media.FileSinks(flagOutput))
	}
	if flagWebsocket != "" {
		b := media.NewBroadcaster(0)
		defer b.Close()
		srv := &http.Server{Addr: flagWebsocket, Handler: b}
		go func() {
			log.Info("Serving WebSocket clients on %s", flagWebsocket)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("WebSocket server: %v", err)
			}
		}()
		defer srv.Close()
		factories = append(factories, b.Open)
	}
	if len(factories) == 0 {
		log.Warn("No output selected (--output, --websocket); streams are discarded")
	} else {
		opts.SinkFactory = media.Tee(factories...)
	}

	s, err := rtp.NewSession(opts)
	if err != nil {
		return err
	}
	defer func() {
		s.Close()
		log.Info("%+v", s.Stats())
	}()
	for _, pt := range types {
		if err := s.AddPayloadType(pt); err != nil {
			return err
		}
	}

	switch {
	case flagCapture != "":
		return serveCapture(ctx, s)
	case flagTCP:
		return serveTCP(ctx, s)
	default:
		conn, err := net.ListenPacket("udp", flagListen)
		if err != nil {
			return err
		}
		defer conn.Close()
		log.Info("Receiving RTP on udp %s", conn.LocalAddr())
		return s.ServeDatagram(ctx, conn)
	}
}

// Payload types from the SDP file, or the static ones.
func payloadTypes() ([]*rtp.PayloadType, error) {
	if flagSDP == "" {
		var types []*rtp.PayloadType
		for n := 0; n < 128; n++ {
			if pt, err := rtp.StaticPayloadType(uint8(n)); err == nil {
				types = append(types, pt)
			}
		}
		return types, nil
	}

	text, err := os.ReadFile(flagSDP)
	if err != nil {
		return nil, err
	}
	desc, err := sdp.ParseSession(string(text))
	if err != nil {
		return nil, err
	}
	log.Debug("%s:\n%s", filepath.Base(flagSDP), desc.String())
	if flagMediaIndex < 0 || flagMediaIndex >= len(desc.Media) {
		return nil, fmt.Errorf("%s has %d media descriptions, no #%d", filepath.Base(flagSDP), len(desc.Media), flagMediaIndex)
	}
	types, skipped, err := rtp.PayloadTypesFromSDP(&desc.Media[flagMediaIndex])
	if skipped > 0 {
		log.Warn("Skipped %d unusable payload type(s)", skipped)
	}
	return types, err
}

func srtpContext() (*srtp.Context, error) {
	cfg := srtp.Config{
		TagLen:  flagSRTPTagLen,
		RCCMode: flagSRTPRCCMode,
		RCCRate: flagSRTPRCCRate,
	}
	switch flagSRTPCipher {
	case "aes-cm":
		cfg.Cipher = srtp.CipherAESCM
	case "null":
		cfg.Cipher = srtp.CipherNull
	default:
		return nil, fmt.Errorf("unknown SRTP cipher %q", flagSRTPCipher)
	}
	switch flagSRTPAuth {
	case "hmac-sha1":
		cfg.Auth = srtp.AuthHMACSHA1
	case "null":
		cfg.Auth = srtp.AuthNull
	default:
		return nil, fmt.Errorf("unknown SRTP authentication %q", flagSRTPAuth)
	}
	return srtp.NewContextFromHex(flagSRTPKey, flagSRTPSalt, cfg)
}

func serveCapture(ctx context.Context, s *rtp.Session) error {
	f, err := os.Open(flagCapture)
	if err != nil {
		return err
	}
	defer f.Close()

	// Filter on the listen port only if one was asked for.
	port := 0
	if flag.CommandLine.Changed("listen") {
		_, p, err := net.SplitHostPort(flagListen)
		if err != nil {
			return err
		}
		if port, err = strconv.Atoi(p); err != nil {
			return fmt.Errorf("bad port in %q", flagListen)
		}
	}
	start := time.Now()
	err = s.ServeCapture(ctx, f, port)
	log.Info("Replayed %s in %v", flagCapture, time.Since(start))
	return err
}

// Accept one connection at a time until ctx is cancelled.
func serveTCP(ctx context.Context, s *rtp.Session) error {
	ln, err := net.Listen("tcp", flagListen)
	if err != nil {
		return err
	}
	log.Info("Receiving RTP on tcp %s", ln.Addr())
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()
	defer ln.Close()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		log.Info("Connection from %s", conn.RemoteAddr())
		err = s.ServeStream(ctx, conn)
		conn.Close()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("Connection from %s: %v", conn.RemoteAddr(), err)
		}
	}
}
