package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"aes1660-go/internal/config"
	"aes1660-go/internal/device"
	"aes1660-go/internal/logging"
	"aes1660-go/internal/output"
	"aes1660-go/internal/processing"
	"aes1660-go/internal/protocol"
	"aes1660-go/internal/publish"
	"aes1660-go/internal/render"
	"aes1660-go/internal/server"
	"aes1660-go/internal/simulator"
	"aes1660-go/internal/transport"
	"aes1660-go/internal/types"
)

type metrics struct {
	framesCaptured  atomic.Uint64
	framesBroadcast atomic.Uint64
	framesDropped   atomic.Uint64
}

func (m *metrics) snapshot() map[string]any {
	return map[string]any{
		"frames_captured_total":  m.framesCaptured.Load(),
		"frames_broadcast_total": m.framesBroadcast.Load(),
		"frames_dropped_total":   m.framesDropped.Load(),
	}
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run returns the process exit code so deferred cleanup runs before exit.
func run(args []string) int {
	defaults := config.Default()
	fs := flag.NewFlagSet(filepath.Base(os.Args[0]), flag.ContinueOnError)
	var (
		transportName = fs.String("transport", defaults.Transport, "Sensor transport: usb, serial or sim")
		serialDevice  = fs.String("serial-device", "/dev/ttyUSB0", "Serial bridge device (with -transport serial)")
		serialBaud    = fs.Int("serial-baud", defaults.SerialBaud, "Serial bridge baud rate")
		timeout       = fs.Duration("timeout", defaults.Timeout, "Per-transfer timeout")
		commandsPath  = fs.String("commands", "", "JSON or CBOR command table (required for usb and serial)")
		outputDir     = fs.String("out", defaults.OutputDir, "Directory for frame-NNNNN.pnm files")
		pngOut        = fs.Bool("png", false, "Also write frame-NNNNN.png")
		rawLogEnabled = fs.Bool("raw-log", false, "Record every capture to a raw log")
		rawLogDir     = fs.String("raw-log-dir", defaults.RawLogDir, "Directory for raw capture logs")
		viewerPort    = fs.Int("port", 0, "HTTP port for the live viewer (0 disables it)")
		zmqEndpoint   = fs.String("zmq", "", "ZMQ endpoint to push captures to, e.g. tcp://localhost:5557")
		mqttBroker    = fs.String("mqtt-broker", "", "MQTT broker for capture summaries, e.g. tcp://localhost:1883")
		mqttTopic     = fs.String("mqtt-topic", defaults.MQTTTopic, "MQTT topic for capture summaries")
		debug         = fs.Bool("debug", false, "Log every response (overrides LOG_LEVEL)")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg := defaults
	cfg.Transport = *transportName
	cfg.SerialDevice = *serialDevice
	cfg.SerialBaud = *serialBaud
	cfg.Timeout = *timeout
	cfg.CommandsPath = *commandsPath
	cfg.OutputDir = *outputDir
	cfg.PNG = *pngOut
	cfg.RawLog = *rawLogEnabled
	cfg.RawLogDir = *rawLogDir
	cfg.Port = *viewerPort
	cfg.ZMQEndpoint = *zmqEndpoint
	cfg.MQTTBroker = *mqttBroker
	cfg.MQTTTopic = *mqttTopic
	cfg.Debug = *debug

	logger := logging.FromEnv()
	if cfg.Debug {
		logger = logging.New(os.Stderr, logging.DebugLevel)
	}

	var aborted atomic.Bool
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	done := make(chan struct{})
	defer func() {
		signal.Stop(sigs)
		close(done)
	}()
	go func() {
		select {
		case sig := <-sigs:
			logger.Info("aborting", "signal", sig.String())
			aborted.Store(true)
		case <-done:
		}
	}()

	cmds, err := loadCommands(cfg)
	if err != nil {
		log.Printf("command table: %v", err)
		return 1
	}

	port, err := openPort(cfg, cmds)
	if err != nil {
		log.Printf("failed to open %s transport: %v", cfg.Transport, err)
		return 1
	}
	defer port.Close()

	writer, err := output.NewImageWriter(cfg.OutputDir)
	if err != nil {
		log.Printf("failed to prepare output dir: %v", err)
		return 1
	}
	if cfg.PNG {
		writer.WithRenderer(render.Ext, render.WritePNG)
	}

	var m metrics
	agg := processing.NewAggregator()
	sinks := []device.Sink{writer, agg, device.SinkFunc(func(c types.Capture) error {
		m.framesCaptured.Add(1)
		return nil
	})}

	if cfg.RawLog {
		rawLog, err := output.NewRawLogWriter(cfg.RawLogDir, "capture")
		if err != nil {
			log.Printf("failed to start raw log: %v", err)
			return 1
		}
		defer func() {
			if err := rawLog.Close(); err != nil {
				log.Printf("raw log close failed: %v", err)
			}
		}()
		logger.Info("recording raw captures", "path", rawLog.Path())
		sinks = append(sinks, rawLog)
	}

	if cfg.ZMQEndpoint != "" {
		zmqPub, err := publish.NewZMQPublisher(cfg.ZMQEndpoint)
		if err != nil {
			log.Printf("failed to start ZMQ publisher: %v", err)
			return 1
		}
		defer zmqPub.Close()
		sinks = append(sinks, zmqPub)
	}

	if cfg.MQTTBroker != "" {
		clientID := fmt.Sprintf("aes1660-%d", os.Getpid())
		mqttPub, err := publish.NewMQTTPublisher(cfg.MQTTBroker, clientID, cfg.MQTTTopic)
		if err != nil {
			log.Printf("failed to start MQTT publisher: %v", err)
			return 1
		}
		defer mqttPub.Close()
		sinks = append(sinks, mqttPub)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.Port > 0 {
		uiMessages := make(chan types.FrameMessage, 16)
		sinks = append(sinks, device.SinkFunc(func(c types.Capture) error {
			select {
			case uiMessages <- types.FrameMessage{Type: types.MessageFrame, Capture: c}:
				m.framesBroadcast.Add(1)
			default:
				m.framesDropped.Add(1)
			}
			return nil
		}))

		started := time.Now()
		srv := server.New(cfg, func() map[string]any {
			return map[string]any{
				"transport": cfg.Transport,
				"uptime":    time.Since(started).String(),
				"aborted":   aborted.Load(),
				"stats":     agg.Snapshot(),
				"metrics":   m.snapshot(),
			}
		}, func() any {
			c, ok := agg.Latest()
			if !ok {
				return nil
			}
			return types.FrameMessage{Type: types.MessageSnapshot, Capture: c}
		})
		go func() {
			if err := srv.Run(ctx, uiMessages); err != nil {
				log.Printf("viewer stopped: %v", err)
			}
		}()
		log.Printf("Starting live viewer at http://localhost:%d\n", cfg.Port)
	}

	session := device.New(port, cmds, &aborted,
		device.WithLogger(logger),
		device.WithSink(sinks...),
	)
	res, err := session.Run()

	stats := agg.Snapshot()
	logger.Info("session finished",
		"finger_polls", res.FingerPolls,
		"frames", res.Frames,
		"min_sum", stats.MinSum,
		"max_sum", stats.MaxSum,
		"aborted", res.Aborted,
	)
	fmt.Printf("Got %d images!\n", writer.Count())

	if err != nil {
		if protocol.IsFatal(err) {
			log.Printf("session failed: %v", err)
		} else {
			log.Printf("session error: %v", err)
		}
		return 1
	}
	fmt.Println("Probed device successfully!")
	return 0
}

func loadCommands(cfg config.AppConfig) (protocol.CommandSet, error) {
	if cfg.Transport == "sim" && cfg.CommandsPath == "" {
		return simulator.Commands(), nil
	}

	cmds := protocol.DefaultCommands()
	if cfg.CommandsPath != "" {
		var err error
		if cmds, err = protocol.LoadCommands(cfg.CommandsPath); err != nil {
			return nil, err
		}
	}
	if err := cmds.Validate(); err != nil {
		return nil, fmt.Errorf("%w (pass a table with -commands)", err)
	}
	return cmds, nil
}

func openPort(cfg config.AppConfig, cmds protocol.CommandSet) (transport.Port, error) {
	switch cfg.Transport {
	case "usb":
		usbCfg := transport.DefaultUSBConfig()
		usbCfg.Timeout = transport.Timeout(cfg.Timeout, usbCfg.Timeout)
		return transport.OpenUSB(usbCfg)
	case "serial":
		serialCfg := transport.DefaultSerialConfig(cfg.SerialDevice)
		if cfg.SerialBaud > 0 {
			serialCfg.Baud = cfg.SerialBaud
		}
		serialCfg.Timeout = transport.Timeout(cfg.Timeout, serialCfg.Timeout)
		return transport.OpenSerial(serialCfg)
	case "sim":
		return simulator.New(cmds, simulator.DefaultConfig()), nil
	default:
		return nil, errors.New("unknown transport " + cfg.Transport)
	}
}
