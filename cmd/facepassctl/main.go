// Command facepassctl is the offline admin tool: it inspects the stores and
// runs the encoding pipeline on local files.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/your-org/facepass/internal/config"
	"github.com/your-org/facepass/internal/observability"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "facepassctl",
	Short: "Administer a facepass deployment",
	Long: `facepassctl reads the same configuration as the API server and works
directly against its stores. It lists employees and attendance, registers
employees from local photos and runs the face pipeline on files.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "Path to config file (empty for defaults and environment)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level")
}

func initConfig() {
	// .env file is optional
	_ = godotenv.Load()
	observability.SetupLogger(logLevel, "text")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
