package config

import (
	"flag"
	"io/ioutil"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	DeviceID   string `yaml:"device_id"`
	MQTTBroker string `yaml:"mqtt_broker"` // relay is off when empty
	PrivateKey string `yaml:"private_key"`

	LogDir  string `yaml:"log_dir"`
	LogFile string `yaml:"log_file"`

	SettleDelay  time.Duration `yaml:"settle_delay"`
	StallTimeout time.Duration `yaml:"stall_timeout"` // watchdog is off when <= 0
	StartDelay   time.Duration `yaml:"start_delay"`
}

func Default() Config {
	return Config{
		Host:         "127.0.0.1",
		Port:         5760,
		DeviceID:     "backyardflyer",
		LogDir:       "Logs",
		LogFile:      "NavLog.txt",
		SettleDelay:  time.Second,
		StallTimeout: 30 * time.Second,
		StartDelay:   2 * time.Second,
	}
}

// Load reads a YAML file over the defaults. Keys missing from the file
// keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return cfg, errors.WithMessagef(err, "reading config %s", path)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, errors.WithMessagef(err, "parsing config %s", path)
	}
	return cfg, nil
}

// Parse reads the command line. Flags given explicitly win over the
// -config file, which wins over the defaults.
func Parse(fs *flag.FlagSet, args []string) (Config, error) {
	var flags Config
	d := Default()
	configPath := fs.String("config", "", "YAML config file")
	fs.StringVar(&flags.Host, "host", d.Host, "MAVLink TCP host")
	fs.IntVar(&flags.Port, "port", d.Port, "MAVLink TCP port")
	fs.StringVar(&flags.DeviceID, "device_id", d.DeviceID, "The provisioned device id")
	fs.StringVar(&flags.MQTTBroker, "mqtt_broker", d.MQTTBroker, "MQTT broker protocol, address and port")
	fs.StringVar(&flags.PrivateKey, "private_key", d.PrivateKey, "The private key for the MQTT authentication")
	fs.StringVar(&flags.LogDir, "log_dir", d.LogDir, "Directory for the navigation and process logs")
	fs.StringVar(&flags.LogFile, "log_file", d.LogFile, "Navigation log file name")
	fs.DurationVar(&flags.SettleDelay, "settle_delay", d.SettleDelay, "Pause after reaching takeoff altitude")
	fs.DurationVar(&flags.StallTimeout, "stall_timeout", d.StallTimeout, "Warn when a flight mode lasts longer, 0 disables")
	fs.DurationVar(&flags.StartDelay, "start_delay", d.StartDelay, "Pause before connecting")

	if err := fs.Parse(args); err != nil {
		return d, err
	}

	cfg := d
	if *configPath != "" {
		var err error
		cfg, err = Load(*configPath)
		if err != nil {
			return cfg, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Host = flags.Host
		case "port":
			cfg.Port = flags.Port
		case "device_id":
			cfg.DeviceID = flags.DeviceID
		case "mqtt_broker":
			cfg.MQTTBroker = flags.MQTTBroker
		case "private_key":
			cfg.PrivateKey = flags.PrivateKey
		case "log_dir":
			cfg.LogDir = flags.LogDir
		case "log_file":
			cfg.LogFile = flags.LogFile
		case "settle_delay":
			cfg.SettleDelay = flags.SettleDelay
		case "stall_timeout":
			cfg.StallTimeout = flags.StallTimeout
		case "start_delay":
			cfg.StartDelay = flags.StartDelay
		}
	})

	return cfg, nil
}
