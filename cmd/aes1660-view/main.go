package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"aes1660-go/internal/config"
	"aes1660-go/internal/ingest"
	"aes1660-go/internal/output"
	"aes1660-go/internal/processing"
	"aes1660-go/internal/server"
	"aes1660-go/internal/types"
)

func main() {
	defaults := config.Default()
	var (
		port           = flag.Int("port", 8888, "HTTP port for the web UI")
		endpoint       = flag.String("endpoint", "tcp://*:5557", "ZMQ endpoint to bind for incoming captures")
		rawLogEnabled  = flag.Bool("raw-log", false, "Record received captures to a raw log")
		rawLogDir      = flag.String("raw-log-dir", defaults.RawLogDir, "Directory for raw capture logs")
		ingestLogEvery = flag.Int("ingest-log-every", defaults.IngestLogEvery, "Log every Nth ingest error")
	)
	flag.Parse()

	cfg := defaults
	cfg.Transport = "zmq"
	cfg.Port = *port
	cfg.ZMQEndpoint = *endpoint
	cfg.RawLog = *rawLogEnabled
	cfg.RawLogDir = *rawLogDir
	cfg.IngestLogEvery = *ingestLogEvery

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	captures, err := ingest.StreamWithLogEvery(ctx, cfg.ZMQEndpoint, cfg.IngestLogEvery)
	if err != nil {
		log.Fatalf("failed to start ingest: %v", err)
	}

	var rawLog *output.RawLogWriter
	if cfg.RawLog {
		if rawLog, err = output.NewRawLogWriter(cfg.RawLogDir, "view"); err != nil {
			log.Fatalf("failed to start raw log: %v", err)
		}
		defer func() {
			if err := rawLog.Close(); err != nil {
				log.Printf("raw log close failed: %v", err)
			}
		}()
	}

	agg := processing.NewAggregator()
	var received, broadcast atomic.Uint64
	uiMessages := make(chan types.FrameMessage, 16)

	go func() {
		defer close(uiMessages)
		for c := range captures {
			received.Add(1)
			// a new session restarts its frame index
			if c.Index == 0 {
				agg.Reset()
			}
			agg.AddFrame(c)
			if rawLog != nil {
				if err := rawLog.WriteCapture(c); err != nil {
					log.Printf("raw log write failed: %v", err)
				}
			}
			select {
			case uiMessages <- types.FrameMessage{Type: types.MessageFrame, Capture: c}:
				broadcast.Add(1)
			default:
			}
		}
	}()

	srv := server.New(cfg, func() map[string]any {
		return map[string]any{
			"endpoint": cfg.ZMQEndpoint,
			"stats":    agg.Snapshot(),
			"metrics": map[string]any{
				"captures_received_total":  received.Load(),
				"captures_broadcast_total": broadcast.Load(),
			},
		}
	}, func() any {
		c, ok := agg.Latest()
		if !ok {
			return nil
		}
		return types.FrameMessage{Type: types.MessageSnapshot, Capture: c}
	})

	log.Printf("Starting web UI at http://localhost:%d\n", cfg.Port)
	if err := srv.Run(ctx, uiMessages); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
