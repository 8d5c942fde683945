package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"guest-visits-backend/config"
)

const defaultConfigPath = "./config/config.yaml"

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "guestd",
	Short: "Guest visit calendar backend",
	Long:  `Serves the shared guest visit calendar with realtime updates and manages its access policy.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to read .env: %w", err)
		}

		var err error
		cfg, err = loadConfig(cfgFile)
		if err != nil {
			return err
		}

		logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: cfg.Server.SlogLevel(),
		}))
		slog.SetDefault(logger)
		return nil
	},
	SilenceUsage: true,
}

// loadConfig reads the config file named by the flag or CONFIG_PATH. When
// neither is set and the default file is absent, built-in defaults are used.
func loadConfig(path string) (*config.Config, error) {
	explicit := path != ""
	if !explicit {
		path = os.Getenv("CONFIG_PATH")
		explicit = path != ""
	}
	if !explicit {
		path = defaultConfigPath
	}

	c, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		return config.FromEnv()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from %s: %w", path, err)
	}
	return c, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is "+defaultConfigPath+")")
	rootCmd.AddCommand(serveCmd, seedCmd, tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
