package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Route maps a requested service and client type to the address of the server
// that handles it. A ClientType of "*" matches any client type.
type Route struct {
	ServiceName string `mapstructure:"service_name"`
	ClientType  string `mapstructure:"client_type"`
	Hostname    string `mapstructure:"hostname"`
	IP          string `mapstructure:"ip"`
	Port        int    `mapstructure:"port"`
	Secure      bool   `mapstructure:"secure"`
}

// PingSite is a QoS measurement endpoint advertised to clients.
type PingSite struct {
	Alias   string `mapstructure:"alias"`
	Name    string `mapstructure:"name"`
	Address string `mapstructure:"address"`
	Port    int    `mapstructure:"port"`
}

// Config contains all of the configuration options available to any of the
// server components.
type Config struct {
	// Hostname or IP address on which the servers will listen for connections.
	Hostname string `mapstructure:"hostname"`
	// IP broadcast to clients by the redirector when a route doesn't set one.
	ExternalIP string `mapstructure:"external_ip"`
	// Maximum number of concurrent connections the server will allow.
	MaxConnections int `mapstructure:"max_connections"`

	Logging struct {
		// Full path to file to which logs will be written. Blank will write to stdout.
		LogFilePath string `mapstructure:"log_file_path"`
		// Minimum level of a log required to be written. Options: debug, info, warn, error
		LogLevel string `mapstructure:"log_level"`
		// Include the calling function in log output.
		IncludeCaller bool `mapstructure:"include_caller"`
	} `mapstructure:"logging"`

	Web struct {
		// HTTP port for the admin API and metrics.
		HTTPPort int `mapstructure:"http_port"`
	} `mapstructure:"web"`

	Database struct {
		// Either sqlite or postgres.
		Engine string `mapstructure:"engine"`
		// Name of the SQLite database file, relative to the config directory.
		Filename string `mapstructure:"filename"`
		// Hostname of the Postgres database instance.
		Host string `mapstructure:"host"`
		// Port on db_host on which the Postgres instance is accepting connections.
		Port int `mapstructure:"port"`
		// Name of the database in Postgres.
		Name string `mapstructure:"name"`
		// Username and password of a user with full RW privileges to ${db_name}.
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		// Set to verify-full if the Postgres instance supports SSL.
		SSLMode string `mapstructure:"sslmode"`
	} `mapstructure:"database"`

	Auth struct {
		// Create an account on first login instead of rejecting unknown users.
		AutoRegister bool `mapstructure:"auto_register"`
	} `mapstructure:"auth"`

	Redirector struct {
		// Port on which the redirector will listen.
		Port int `mapstructure:"port"`
		// Services the redirector knows how to resolve.
		Routes []Route `mapstructure:"routes"`
	} `mapstructure:"redirector"`

	Blaze struct {
		// Port on which the main protocol server will listen.
		Port int `mapstructure:"port"`
		// Largest packet body accepted from a client.
		MaxPacketSize int `mapstructure:"max_packet_size"`
		// Deepest value nesting accepted in a packet body.
		MaxDepth int `mapstructure:"max_depth"`
		// Packets that may wait for a slow client before it is disconnected.
		MaxQueuedPackets int `mapstructure:"max_queued_packets"`
	} `mapstructure:"blaze"`

	Pss struct {
		Port int `mapstructure:"port"`
		// Project id reported in the PSS config.
		ProjectID string `mapstructure:"project_id"`
	} `mapstructure:"pss"`

	Ticker struct {
		Port int    `mapstructure:"port"`
		Key  string `mapstructure:"key"`
	} `mapstructure:"ticker"`

	Telemetry struct {
		Port int    `mapstructure:"port"`
		Key  string `mapstructure:"key"`
		// Percentage of telemetry the client should send.
		SendPercentage int `mapstructure:"send_percentage"`
	} `mapstructure:"telemetry"`

	Qos struct {
		// Port of the QoS measurement endpoint.
		Port int `mapstructure:"port"`
		// Number of latency probes the client should send per site.
		LatencyProbes int `mapstructure:"latency_probes"`
		ServiceID     int `mapstructure:"service_id"`
		// Number of samples kept per session and site.
		WindowSize int `mapstructure:"window_size"`
		// How long collected samples are kept, in seconds.
		SampleTTL int        `mapstructure:"sample_ttl"`
		Sites     []PingSite `mapstructure:"sites"`
		// Upstream bandwidth (bytes per second) at or above which a client is
		// classified as medium and high bandwidth.
		MediumBandwidth int `mapstructure:"medium_bandwidth"`
		HighBandwidth   int `mapstructure:"high_bandwidth"`
	} `mapstructure:"qos"`

	MQTT struct {
		// Broker URL for game event telemetry. Blank disables publishing.
		Broker      string `mapstructure:"broker"`
		ClientID    string `mapstructure:"client_id"`
		TopicPrefix string `mapstructure:"topic_prefix"`
	} `mapstructure:"mqtt"`

	Debugging struct {
		// Enable extra info-providing mechanisms for the server.
		Enabled bool `mapstructure:"enabled"`
		// Port on which a pprof server will be started if debug mode is enabled.
		PprofPort int `mapstructure:"pprof_port"`
		// Log decoded packets.
		PacketLoggingEnabled bool `mapstructure:"packet_logging_enabled"`
		// Enable database-level query logging.
		DatabaseLoggingEnabled bool `mapstructure:"database_logging_enabled"`
	} `mapstructure:"debugging"`

	configDir string
}

const envVarPrefix = "BLAZE"

// setDefaults registers every option with viper so that it can be overridden
// by environment variables even when absent from the config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("hostname", "0.0.0.0")
	v.SetDefault("external_ip", "127.0.0.1")
	v.SetDefault("max_connections", 3000)
	v.SetDefault("logging.log_file_path", "")
	v.SetDefault("logging.log_level", "info")
	v.SetDefault("logging.include_caller", false)
	v.SetDefault("web.http_port", 8080)
	v.SetDefault("database.engine", "sqlite")
	v.SetDefault("database.filename", "blaze.db")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "blaze")
	v.SetDefault("database.username", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("auth.auto_register", false)
	v.SetDefault("redirector.port", 42127)
	v.SetDefault("blaze.port", 10041)
	v.SetDefault("blaze.max_packet_size", 1<<20)
	v.SetDefault("blaze.max_depth", 32)
	v.SetDefault("blaze.max_queued_packets", 1024)
	v.SetDefault("pss.port", 8443)
	v.SetDefault("pss.project_id", "303107")
	v.SetDefault("ticker.port", 8999)
	v.SetDefault("ticker.key", "")
	v.SetDefault("telemetry.port", 9988)
	v.SetDefault("telemetry.key", "")
	v.SetDefault("telemetry.send_percentage", 75)
	v.SetDefault("qos.port", 17502)
	v.SetDefault("qos.latency_probes", 10)
	v.SetDefault("qos.service_id", 1161889797)
	v.SetDefault("qos.window_size", 16)
	v.SetDefault("qos.sample_ttl", 600)
	v.SetDefault("qos.medium_bandwidth", 128000)
	v.SetDefault("qos.high_bandwidth", 1000000)
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.client_id", "blaze")
	v.SetDefault("mqtt.topic_prefix", "blaze")
	v.SetDefault("debugging.enabled", false)
	v.SetDefault("debugging.pprof_port", 4000)
	v.SetDefault("debugging.packet_logging_enabled", false)
	v.SetDefault("debugging.database_logging_enabled", false)
}

// DefaultConfig returns the configuration used when no config file sets a value.
func DefaultConfig() *Config {
	v := viper.New()
	setDefaults(v)
	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		panic(fmt.Sprintf("error unmarshaling default config: %v", err))
	}
	return config
}

// LoadConfig initializes Viper with the contents of the config file under configPath.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AddConfigPath(configPath)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envVarPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("no config file in path %s", configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// This allows us to set nested yaml config options through environment
	// variables. For example, database.host can be set using: <envVarPrefix>_DATABASE_HOST
	for _, k := range v.AllKeys() {
		envVar := strings.ReplaceAll(strings.ToUpper(k), ".", "_")
		if err := v.BindEnv(k, envVarPrefix+"_"+envVar); err != nil {
			return nil, fmt.Errorf("binding %s to %s: %w", k, envVarPrefix+"_"+envVar, err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unmarshaling config object: %w", err)
	}
	config.configDir = configPath
	return config, nil
}

const databaseURITemplate = "host=%s port=%d dbname=%s user=%s password=%s sslmode=%s"

// DatabaseURL returns a database URL generated from the provided config values.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		databaseURITemplate,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.Username,
		c.Database.Password,
		c.Database.SSLMode,
	)
}

// QualifiedPath returns path resolved against the directory the config was
// loaded from, unless it is already absolute.
func (c *Config) QualifiedPath(path string) string {
	if filepath.IsAbs(path) || c.configDir == "" {
		return path
	}
	return filepath.Join(c.configDir, path)
}

// Address returns the host:port listen address for port.
func (c *Config) Address(port int) string {
	return fmt.Sprintf("%s:%v", c.Hostname, port)
}

// Validate reports configuration that would prevent the servers from starting.
func (c *Config) Validate() error {
	var problems []string
	if c.Blaze.MaxPacketSize <= 0 {
		problems = append(problems, "blaze.max_packet_size must be positive")
	}
	if c.Blaze.MaxDepth <= 0 {
		problems = append(problems, "blaze.max_depth must be positive")
	}
	if c.Blaze.MaxQueuedPackets <= 0 {
		problems = append(problems, "blaze.max_queued_packets must be positive")
	}
	if c.Qos.HighBandwidth < c.Qos.MediumBandwidth {
		problems = append(problems, "qos.high_bandwidth must not be below qos.medium_bandwidth")
	}
	for i, r := range c.Redirector.Routes {
		if r.ServiceName == "" || r.Port <= 0 {
			problems = append(problems, fmt.Sprintf("redirector.routes[%d] needs a service_name and port", i))
		}
	}
	switch strings.ToLower(c.Database.Engine) {
	case "sqlite", "postgres":
	default:
		problems = append(problems, fmt.Sprintf("unsupported database engine %q", c.Database.Engine))
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// EnsureDir creates the directory holding path if it does not exist.
func EnsureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0755)
}
