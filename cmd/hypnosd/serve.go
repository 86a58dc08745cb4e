package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"hypnosd/internal/config"
	"hypnosd/internal/engine"
	"hypnosd/internal/gateway"
	"hypnosd/internal/httpapi"
	"hypnosd/internal/logging"
	"hypnosd/internal/model"
)

const shutdownTimeout = 5 * time.Second

type serveFlags struct {
	configPath string
	envFile    string
	addr       string
	wait       bool
}

func (f *serveFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.configPath, "config", "", "Path to a .yaml, .json or .toml config file")
	fs.StringVar(&f.envFile, "env-file", "", "Env file to load (defaults to ./.env when present)")
	fs.StringVar(&f.addr, "addr", "", "HTTP listen address, overrides ADDR and PORT, e.g. :3001")
	fs.BoolVar(&f.wait, "wait", false, "Block until the model is loaded before accepting connections")
}

// loadConfig merges, in increasing precedence: config file, env file,
// process environment, then flags.
func loadConfig(f *serveFlags, lookup config.LookupFunc) (config.Config, error) {
	envFile, required := f.envFile, true
	if envFile == "" {
		envFile, required = ".env", false
	}
	if err := config.LoadEnvFile(envFile, required); err != nil {
		return config.Config{}, err
	}
	var cfg config.Config
	if f.configPath != "" {
		c, err := config.Load(f.configPath)
		if err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
		cfg = c
	}
	cfg, err := config.ApplyEnv(cfg, lookup)
	if err != nil {
		return cfg, err
	}
	if f.addr != "" {
		cfg.Addr = f.addr
	}
	cfg = cfg.WithDefaults()
	return cfg, cfg.Validate()
}

func runServe(ctx context.Context, f *serveFlags, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(f, os.LookupEnv)
	if err != nil {
		return err
	}
	log, closer, err := logging.New(cfg, stderr)
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	defer closer.Close()

	persona, err := cfg.ResolvePersona()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	mlog := log.With().Str("component", "model").Logger()
	lc := model.New(model.Config{
		Source:          cfg.ModelSource,
		CacheDir:        cfg.ModelCacheDir,
		MountDir:        cfg.ModelMountDir,
		StorageEndpoint: cfg.StorageEndpoint,
		Load:            engine.LoadOptions{ContextSize: cfg.ContextSize, GPULayers: 0, Threads: cfg.Threads},
	}, engine.NewLlamaLoader(),
		model.WithLogger(mlog),
		model.WithPublisher(model.LogPublisher{Log: mlog}),
		model.WithFatalHandler(func(err error) {
			if ctx.Err() != nil {
				log.Warn().Err(err).Msg("model load aborted by shutdown")
				return
			}
			log.Fatal().Err(err).Msg("model load failed")
		}),
	)
	gw := gateway.New(lc, gateway.Config{
		Persona:          persona,
		ContextSize:      cfg.ContextSize,
		GenerationTokens: cfg.GenerationTokens,
	}, log.With().Str("component", "gateway").Logger())
	mux := httpapi.NewMux(gw, httpapi.Options{
		APIKey:       cfg.APIKey,
		MaxBodyBytes: cfg.MaxBodyBytes,
		CORSOrigins:  cfg.CORSOrigins,
		WebInterface: cfg.WebInterface,
		Logger:       log.With().Str("component", "http").Logger(),
		LogLevel:     cfg.RequestLogLevel,
	})

	lc.Start(ctx)
	if f.wait {
		log.Info().Msg("waiting for model before listening")
		if err := lc.Wait(ctx); err != nil {
			return nil
		}
	}

	srv := &http.Server{Addr: cfg.ListenAddr(), Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		logListen(log, cfg.ListenAddr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// Graceful shutdown (Ctrl+C / SIGTERM)
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	log.Info().Msg("stopped")
	return nil
}

func logListen(log zerolog.Logger, addr string) {
	ev := log.Info().Str("addr", addr)
	if _, port, err := net.SplitHostPort(addr); err == nil {
		ev = ev.Str("local", "http://localhost:"+port).Str("network", "http://"+localIP()+":"+port)
	}
	ev.Msg("hypnosd listening")
}

// localIP returns the address of the interface used for outbound traffic, or
// "localhost". Dialing UDP sends no packets.
func localIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "localhost"
	}
	defer conn.Close()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP.IsLoopback() {
		return "localhost"
	}
	return addr.IP.String()
}
