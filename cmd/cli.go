package cmd

import (
	"os"
	"strings"

	"github.com/habedi/totempark/config"
	"github.com/habedi/totempark/db"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func Execute() {
	rootCmd := createRootCmd()
	rootCmd.PersistentFlags().BoolP("help", "h", false, "Show help for a command")

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Command execution failed.")
		os.Exit(1)
	}
}

func createRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "totempark",
		Short:        "Back office for Mercado Pago parking totems",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file; environment variables override it")

	rootCmd.AddCommand(
		serveCmd(),
		sellerCmd(),
		totemCmd(),
		tokensCmd(),
		versionCmd(),
	)

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.SetHelpCommand(&cobra.Command{
		Use:    "no-help",
		Hidden: true,
	})

	return rootCmd
}

// loadConfig reads the settings named by the --config flag.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := ""
	if f := cmd.Flag("config"); f != nil {
		path = f.Value.String()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	// DEBUG_TOTEMPARK, handled in main, wins over the configured level.
	if debug := os.Getenv("DEBUG_TOTEMPARK"); debug == "" || debug == "false" || debug == "0" {
		if level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel)); err == nil && level != zerolog.NoLevel {
			zerolog.SetGlobalLevel(level)
		}
	}
	return cfg, nil
}

// store bundles the repositories a command works with.
type store struct {
	gdb         *gorm.DB
	Sellers     db.SellerRepository
	Totems      db.TotemRepository
	Events      db.EventRepository
	Credentials db.CredentialRepository
}

func openStore(cfg *config.Config) (*store, error) {
	gdb, err := db.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	return &store{
		gdb:         gdb,
		Sellers:     db.NewSellerRepository(gdb),
		Totems:      db.NewTotemRepository(gdb),
		Events:      db.NewEventRepository(gdb),
		Credentials: db.NewCredentialRepository(gdb),
	}, nil
}

func (s *store) Close() {
	if err := db.Close(s.gdb); err != nil {
		log.Error().Err(err).Msg("Failed to close the database.")
	}
}
