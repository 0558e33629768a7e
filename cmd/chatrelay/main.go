package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/astercade/chatrelay/internal/app"
	"github.com/astercade/chatrelay/internal/client"
	"github.com/astercade/chatrelay/internal/config"
	"github.com/astercade/chatrelay/internal/log"
	"github.com/astercade/chatrelay/internal/store/sqlite"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "chatrelay",
		Short:         "broadcast chat server and terminal client",
		Version:       app.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), chatCmd())
	return root
}

func serveCmd() *cobra.Command {
	var (
		configPath string
		addr       string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "run the broadcast server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := config.Load(nil, configPath)
			if err != nil {
				return err
			}
			cfg.UpdateFrom(config.Config{Addr: addr})

			logger := log.New(cfg.LogLevel)
			logger.Info().Str("config", path).Msg("configuration loaded")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return app.New(cfg, logger).Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address override")
	return cmd
}

func chatCmd() *cobra.Command {
	var (
		addr      string
		name      string
		statePath string
		logLevel  string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "connect to a server from the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := log.New(logLevel)

			path, err := resolveStatePath(statePath)
			if err != nil {
				return err
			}
			ids, err := sqlite.New(path)
			if err != nil {
				return fmt.Errorf("open identity store: %w", err)
			}
			defer ids.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			lines := make(chan string)
			go func() {
				defer close(lines)
				scanner := bufio.NewScanner(os.Stdin)
				for scanner.Scan() {
					text := strings.TrimSpace(scanner.Text())
					if text == "" {
						continue
					}
					select {
					case lines <- text:
					case <-ctx.Done():
						return
					}
				}
			}()

			fmt.Printf("Connecting to %s. Type messages and press Enter to send. Ctrl+C to exit.\n", addr)

			ctrl := client.NewController(addr, name, ids, logger, os.Stdout)
			if err := ctrl.Run(ctx, lines); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "ws://localhost:8080/ws", "WebSocket address")
	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to the issued Player #N)")
	cmd.Flags().StringVar(&statePath, "state", "", "path to the identity database")
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "log level")
	return cmd
}

// resolveStatePath returns the identity database location, defaulting to the
// user config directory.
func resolveStatePath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	base, err := os.UserConfigDir()
	if err != nil {
		return "chatrelay-identity.db", nil
	}
	dir := filepath.Join(base, "chatrelay")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create state dir: %w", err)
	}
	return filepath.Join(dir, "identity.db"), nil
}
