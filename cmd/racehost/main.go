// Command racehost runs the simulation host for one room: it loads a track,
// connects to the relay for controller input, drives the engine loop, and
// streams render frames and race results back out.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/kartparty/racehost/internal/bus"
	"github.com/kartparty/racehost/internal/cache"
	"github.com/kartparty/racehost/internal/channel"
	"github.com/kartparty/racehost/internal/config"
	"github.com/kartparty/racehost/internal/damage"
	"github.com/kartparty/racehost/internal/database"
	"github.com/kartparty/racehost/internal/engine"
	"github.com/kartparty/racehost/internal/influx"
	"github.com/kartparty/racehost/internal/intake"
	"github.com/kartparty/racehost/internal/logging"
	"github.com/kartparty/racehost/internal/monitor"
	intOtel "github.com/kartparty/racehost/internal/otel"
	"github.com/kartparty/racehost/internal/physics"
	"github.com/kartparty/racehost/internal/race"
	"github.com/kartparty/racehost/internal/relay"
	"github.com/kartparty/racehost/internal/render"
	"github.com/kartparty/racehost/internal/session"
	"github.com/kartparty/racehost/internal/track"
	"github.com/kartparty/racehost/internal/track/catalog"
	"github.com/kartparty/racehost/pkg/core"
	"github.com/kartparty/racehost/pkg/wire"
)

// Version and BuildDate can be set at build time via ldflags.
var (
	Version   = "0.1.0"
	BuildDate = "unknown"

	HostName = "racehost"
)

func main() {
	sessionStart := time.Now()

	configDir := "."
	if len(os.Args) > 1 {
		configDir = os.Args[1]
	}

	// Bootstrap logging to stdout; reconfigured below once the config and
	// log file are available.
	slogMgr := logging.NewSlogManager()
	slogMgr.Setup(nil, "info", nil, nil)
	log := slogMgr.Logger()
	log.Info("Starting up", "version", Version, "buildDate", BuildDate)

	if err := config.Load(configDir); err != nil {
		log.Warn("Failed to load config, using defaults", "error", err)
	} else {
		log.Info("Loaded config", "dir", configDir)
	}

	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		log.Error("Failed to create logs directory", "error", err, "path", logsDir)
		os.Exit(1)
	}

	logFilePath := logging.LogFilePath(logsDir, HostName, sessionStart)
	logFile, err := os.OpenFile(logFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Error("Failed to open log file", "error", err, "path", logFilePath)
		os.Exit(1)
	}
	defer logFile.Close()

	otelProvider := setupOTel(logFile)

	var graylog io.Writer
	if viper.GetBool("graylog.enabled") {
		gelfWriter, err := gelf.NewWriter(viper.GetString("graylog.address"))
		if err != nil {
			log.Warn("Failed to connect Graylog sink", "error", err)
		} else {
			graylog = gelfWriter
		}
	}

	if otelProvider != nil {
		slogMgr.Setup(logFile, viper.GetString("logLevel"), otelProvider.LoggerProvider(), graylog)
	} else {
		slogMgr.Setup(logFile, viper.GetString("logLevel"), nil, graylog)
	}
	log = slogMgr.Logger()
	log.Info("Logging to file", "path", logFilePath)

	zlog := zerolog.New(logFile).With().Timestamp().Logger()

	// Telemetry is optional; the host runs fine without it.
	influxMgr := influx.NewManager(zlog, filepath.Join(logsDir, "telemetry_backup.gz"))
	if err := influxMgr.Connect(); err != nil {
		log.Info("Telemetry disabled", "reason", err)
		influxMgr = nil
	}

	tr, err := loadTrack(zlog, log)
	if err != nil {
		log.Error("Failed to load track", "error", err)
		os.Exit(1)
	}
	log.Info("Track loaded", "id", tr.ID, "name", tr.Name,
		"checkpoints", tr.CheckpointCount(), "spawns", len(tr.Spawns))

	relayCfg := config.GetRelayConfig()
	sess := session.NewContext(relayCfg.RoomName)
	slogMgr.Context = func() []slog.Attr {
		return []slog.Attr{slog.String("room", sess.RoomName())}
	}

	b, err := bus.New(logging.NewBusLogger(zlog))
	if err != nil {
		log.Error("Failed to create event bus", "error", err)
		os.Exit(1)
	}

	phys := physics.NewSystem(physics.TuningFromConfig(), tr.Barriers, log)
	raceSys := race.NewSystem(tr, b, log)
	dmg := damage.NewSystem(damage.ParamsFromConfig(), b, phys,
		func(id core.VehicleID) core.Transform {
			return tr.SpawnTransform(int(id))
		}, log)
	intents := cache.NewIntentBuffer()
	feed := render.NewFeed(8)

	eng := engine.New(engine.Dependencies{
		Bus:     b,
		Physics: phys,
		Race:    raceSys,
		Damage:  dmg,
		Intents: intents,
		Session: sess,
		Track:   tr,
		Render:  feed,
		Log:     log,
	}, engine.TimingsFromConfig())

	if err := eng.Assemble(time.Now()); err != nil {
		log.Error("Failed to assemble engine", "error", err)
		os.Exit(1)
	}

	handler := intake.NewHandler(eng, intents, log)
	conn := intake.NewConnection(handler, log)
	if err := conn.Dial(relayCfg.SocketURL, relayCfg.APIKey, relayCfg.RoomName); err != nil {
		log.Error("Failed to connect to relay socket", "error", err, "url", relayCfg.SocketURL)
		os.Exit(1)
	}
	defer conn.Close()

	relayClient := relay.New(relayCfg.ServerURL, relayCfg.APIKey)
	if err := relayClient.Healthcheck(); err != nil {
		log.Info("Relay is offline, controllers cannot join yet", "error", err)
	} else {
		room, err := relayClient.RegisterRoom(relayCfg.RoomName, HostName)
		if err != nil {
			log.Warn("Failed to register room", "error", err)
		} else {
			log.Info("Room registered", "room", room.RoomName, "joinCode", room.JoinCode)
		}
	}

	// Final standings go out both ways: over the socket to controllers in
	// the room, and to the relay's HTTP API for anyone who joined late.
	b.Subscribe(core.EventRaceFinished, func(e bus.Event) {
		finished, ok := e.Payload.(core.RaceFinished)
		if !ok {
			return
		}
		announceResults(conn, relayClient, sess.RoomName(), finished.Result, log)
	})

	mon := monitor.NewService(monitor.Dependencies{
		Engine:  eng,
		Session: sess,
		Influx:  influxMgr,
		Bus:     b,
		Log:     log,
	})
	if err := mon.Start(); err != nil {
		log.Warn("Failed to start monitor", "error", err)
	}
	defer mon.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go forwardFrames(ctx, feed, conn, log)

	log.Info("Host ready", "room", sess.RoomName())
	eng.Run(ctx)

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if otelProvider != nil {
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			log.Warn("Failed to shut down OTel provider", "error", err)
		}
	}
	if err := slogMgr.Flush(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to flush logs: %v\n", err)
	}
}

func setupOTel(logFile io.Writer) *intOtel.Provider {
	otelCfg := config.GetOTelConfig()
	if !otelCfg.Enabled {
		return nil
	}
	provider, err := intOtel.New(intOtel.Config{
		Enabled:      otelCfg.Enabled,
		ServiceName:  otelCfg.ServiceName,
		BatchTimeout: otelCfg.BatchTimeout,
		LogWriter:    logFile,
		Endpoint:     otelCfg.Endpoint,
		Insecure:     otelCfg.Insecure,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize OTel provider: %v\n", err)
		return nil
	}
	return provider
}

// loadTrack resolves the configured track, preferring the shared catalog and
// falling back to reading the tracks directory directly.
func loadTrack(zlog zerolog.Logger, log *slog.Logger) (*track.Track, error) {
	tracksDir := viper.GetString("tracks.dir")
	trackID := viper.GetString("tracks.default")

	dbMgr := database.NewManager(zlog, filepath.Join(tracksDir, "catalog.db"))
	if err := dbMgr.Connect(); err != nil {
		log.Warn("Track catalog unavailable, loading from disk", "error", err)
		return track.LoadFile(filepath.Join(tracksDir, trackID+".json"))
	}

	cat, err := catalog.New(dbMgr, zlog)
	if err != nil {
		log.Warn("Failed to open track catalog, loading from disk", "error", err)
		return track.LoadFile(filepath.Join(tracksDir, trackID+".json"))
	}

	seeded, err := cat.SeedFromDir(tracksDir)
	if err != nil {
		log.Warn("Failed to seed track catalog", "error", err)
	} else if seeded > 0 {
		log.Info("Seeded track catalog", "count", seeded, "dir", tracksDir)
	}

	return cat.Get(trackID)
}

type resultsSocket interface {
	SendEnvelope(msgType string, payload any) error
}

type resultsAPI interface {
	PublishResults(roomName string, result core.RaceResult) error
}

// announceResults pushes final standings to the room socket and, on its own
// goroutine, to the relay HTTP API. The bus delivers events inline on the
// engine goroutine, so the HTTP round trip must never run there.
func announceResults(sock resultsSocket, api resultsAPI, room string, result core.RaceResult, log *slog.Logger) {
	if err := sock.SendEnvelope(wire.TypeRaceResults, wire.RaceResultsPayload{Result: result}); err != nil {
		log.Warn("Failed to send race results over socket", "error", err)
	}
	go func() {
		if err := api.PublishResults(room, result); err != nil {
			log.Warn("Failed to publish race results", "error", err)
		}
	}()
}

// forwardFrames relays render frames to the room as host_state messages.
// Frame drops are acceptable; controllers interpolate between states.
func forwardFrames(ctx context.Context, feed channel.Receiver[render.Frame], conn *intake.Connection, log *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-feed.Receive():
			if !ok {
				return
			}
			if err := conn.SendEnvelope(wire.TypeHostState, frame); err != nil {
				log.Warn("Failed to send host state", "error", err)
			}
		}
	}
}
