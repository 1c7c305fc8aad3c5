// Command mockbackend serves YAML fixtures in the hydro backend's wire format
// so the dashboard can run without the real data API.
//
// Usage:
//
//	go run ./cmd/mockbackend serve --fixtures data/mock/fixtures.yaml --addr :8090
//	go run ./cmd/mockbackend validate --fixtures data/mock/fixtures.yaml
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/couchcryptid/hydro-dashboard/internal/config"
	"github.com/couchcryptid/hydro-dashboard/internal/observability"
)

type cli struct {
	LogLevel  string `help:"Log level." default:"info" env:"LOG_LEVEL" enum:"debug,info,warn,error"`
	LogFormat string `help:"Log format." default:"text" env:"LOG_FORMAT" enum:"json,text"`

	Serve    serveCmd    `cmd:"" help:"Serve fixtures over HTTP."`
	Validate validateCmd `cmd:"" help:"Check a fixtures file and exit."`
}

type serveCmd struct {
	Fixtures  string        `help:"Fixtures file." default:"data/mock/fixtures.yaml" type:"existingfile" env:"MOCK_FIXTURES"`
	Addr      string        `help:"Listen address." default:":8090" env:"MOCK_ADDR"`
	Latency   time.Duration `help:"Delay added to every response." default:"0s" env:"MOCK_LATENCY"`
	FailPaths []string      `help:"Paths that answer 503." name:"fail" env:"MOCK_FAIL_PATHS"`
}

func (c *serveCmd) Run(logger *slog.Logger) error {
	f, err := LoadFixtures(c.Fixtures)
	if err != nil {
		return err
	}
	report := f.Validate()
	for _, w := range report.Warnings {
		logger.Warn("fixture warning", "detail", w)
	}
	if !report.OK() {
		return fmt.Errorf("fixtures invalid: %d problems, run validate for details", len(report.Problems))
	}

	srv := &http.Server{
		Addr:              c.Addr,
		Handler:           newHandler(f, serverOptions{Latency: c.Latency, FailPaths: c.FailPaths}, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("mock backend listening", "addr", c.Addr, "fixtures", c.Fixtures, "latency", c.Latency, "fail", c.FailPaths)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type validateCmd struct {
	Fixtures string `help:"Fixtures file." default:"data/mock/fixtures.yaml" type:"existingfile" env:"MOCK_FIXTURES"`
	Strict   bool   `help:"Treat warnings as problems."`
}

func (c *validateCmd) Run(logger *slog.Logger) error {
	f, err := LoadFixtures(c.Fixtures)
	if err != nil {
		return err
	}
	logger.Debug("validating fixtures", "path", c.Fixtures)
	return c.report(os.Stdout, f.Validate())
}

var errInvalidFixtures = errors.New("fixtures invalid")

func (c *validateCmd) report(w io.Writer, r *Report) error {
	for _, p := range r.Problems {
		fmt.Fprintf(w, "  FAIL  %s\n", p)
	}
	for _, warn := range r.Warnings {
		fmt.Fprintf(w, "  WARN  %s\n", warn)
	}
	fmt.Fprintf(w, "%d problems, %d warnings\n", len(r.Problems), len(r.Warnings))

	if !r.OK() || (c.Strict && len(r.Warnings) > 0) {
		return errInvalidFixtures
	}
	return nil
}

func main() {
	var app cli
	ctx := kong.Parse(&app,
		kong.Name("mockbackend"),
		kong.Description("Hydro backend stand-in serving YAML fixtures."),
		kong.UsageOnError(),
	)
	logger := observability.NewLogger(&config.Config{LogLevel: app.LogLevel, LogFormat: app.LogFormat})
	ctx.FatalIfErrorf(ctx.Run(logger))
}
