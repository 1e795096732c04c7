package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/rockwerks/weather-forecast-app/internal/config"
	"github.com/rockwerks/weather-forecast-app/internal/delivery/terminal"
	"github.com/rockwerks/weather-forecast-app/internal/domain"
	"github.com/rockwerks/weather-forecast-app/internal/lookup"
	"github.com/rockwerks/weather-forecast-app/internal/service"
)

func newCommand(cfg *config.Config, in io.Reader) *cli.Command {
	return &cli.Command{
		Name:      "weather",
		Usage:     "Look up the current weather for a city",
		ArgsUsage: "[city...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "units",
				Aliases: []string{"u"},
				Value:   cfg.DefaultUnits.String(),
				Usage:   "unit system: metric or imperial",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			unit, err := domain.ParseUnitSystem(cmd.String("units"))
			if err != nil {
				return err
			}

			fetcher := service.NewWeatherService(cfg.OpenWeatherBaseURL, cfg.OpenWeatherAPIKey,
				service.WithTimeout(cfg.HTTPTimeout))
			l := lookup.New(fetcher, lookup.WithUnits(unit), lookup.WithLogger(slog.Default()))
			defer l.Close()

			if city := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " ")); city != "" {
				return terminal.LookupOnce(l, city, cmd.Writer)
			}
			return terminal.NewREPL(l, in, cmd.Writer).Run(ctx)
		},
	}
}

func main() {
	cfg := config.Load()

	// keep diagnostics off the REPL output unless asked for
	level := slog.LevelError
	if cfg.LogLevel == "debug" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := newCommand(cfg, os.Stdin)
	cmd.Writer = os.Stdout
	if err := cmd.Run(ctx, os.Args); err != nil {
		// the error banner has already been printed for failed lookups
		if !errors.Is(err, terminal.ErrLookupFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
