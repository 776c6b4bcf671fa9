package config

import "time"

// AppConfig is filled from command-line flags by the cmd packages.
type AppConfig struct {
	Transport    string
	SerialDevice string
	SerialBaud   int
	Timeout      time.Duration
	CommandsPath string

	OutputDir string
	PNG       bool

	RawLog    bool
	RawLogDir string

	// Port of the live viewer; 0 disables it
	Port int

	ZMQEndpoint string
	MQTTBroker  string
	MQTTTopic   string

	IngestLogEvery int
	Debug          bool
}

func Default() AppConfig {
	return AppConfig{
		Transport:      "usb",
		SerialBaud:     115200,
		Timeout:        4000 * time.Millisecond,
		OutputDir:      ".",
		RawLogDir:      "rawlog",
		MQTTTopic:      "aes1660/captures",
		IngestLogEvery: 100,
	}
}
