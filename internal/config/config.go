package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// ConfigFileName is the JSON config file the host looks for in its config directory.
const ConfigFileName = "racehost.cfg.json"

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// RelayConfig holds room-relay endpoints. The relay matches controllers to
// this host and forwards their raw input.
type RelayConfig struct {
	ServerURL string // HTTP base URL for announce/healthcheck
	SocketURL string // WebSocket URL for the input stream
	APIKey    string
	RoomName  string
}

// InfluxConfig holds InfluxDB telemetry settings.
type InfluxConfig struct {
	Enabled    bool
	URL        string
	Token      string
	Org        string
	BackupPath string
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./racelogs")

	viper.SetDefault("relay.serverUrl", "http://localhost:5000")
	viper.SetDefault("relay.socketUrl", "ws://localhost:5000/host")
	viper.SetDefault("relay.apiKey", "")
	viper.SetDefault("relay.roomName", "")

	viper.SetDefault("tracks.dir", "./tracks")
	viper.SetDefault("tracks.default", "figure-eight")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "racehost")

	viper.SetDefault("physics.tickRate", 60)
	viper.SetDefault("physics.maxFrameDelta", "250ms")
	viper.SetDefault("physics.driveForce", 5200.0)
	viper.SetDefault("physics.brakeForce", 7800.0)
	viper.SetDefault("physics.steerTorque", 2600.0)
	viper.SetDefault("physics.steerSpeedFalloff", 0.12)
	viper.SetDefault("physics.dragCoeff", 1.8)
	viper.SetDefault("physics.rollingResistance", 54.0)
	viper.SetDefault("physics.lateralGrip", 7.0)
	viper.SetDefault("physics.vehicleMass", 620.0)
	viper.SetDefault("physics.vehicleRadius", 1.1)

	viper.SetDefault("race.countdown", "3s")
	viper.SetDefault("race.finishTimeout", "60s")
	viper.SetDefault("race.defaultLaps", 3)
	viper.SetDefault("race.resultsHold", "10s")
	viper.SetDefault("race.renderRate", 30)

	viper.SetDefault("damage.enabled", true)
	viper.SetDefault("damage.minImpactSpeed", 4.0)
	viper.SetDefault("damage.impactScale", 9.0)
	viper.SetDefault("damage.maxHealth", 100.0)
	viper.SetDefault("damage.defaultArmor", 1.0)
	viper.SetDefault("damage.respawnDelay", "3s")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.url", "http://localhost:8086")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "racehost-metrics")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "racehost")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetConfigName(ConfigFileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetOTelConfig returns typed OTel settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetRelayConfig returns typed relay settings.
func GetRelayConfig() RelayConfig {
	return RelayConfig{
		ServerURL: viper.GetString("relay.serverUrl"),
		SocketURL: viper.GetString("relay.socketUrl"),
		APIKey:    viper.GetString("relay.apiKey"),
		RoomName:  viper.GetString("relay.roomName"),
	}
}

// GetInfluxConfig returns typed Influx settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:    viper.GetBool("influx.enabled"),
		URL:        viper.GetString("influx.url"),
		Token:      viper.GetString("influx.token"),
		Org:        viper.GetString("influx.org"),
		BackupPath: viper.GetString("influx.backupPath"),
	}
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetFloat returns a float64 config value.
func GetFloat(key string) float64 {
	return viper.GetFloat64(key)
}

// GetDuration returns a duration config value.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}
