package main

import (
	"fmt"
	"os"

	"chainpay/gateway/internal/app"
	"chainpay/gateway/internal/config"
	"chainpay/gateway/internal/infra/postgres"
	"chainpay/gateway/internal/logger"
	"chainpay/gateway/internal/service"
	"chainpay/pkg/dlog"
	"chainpay/pkg/hdwallet"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var flagConfig string

var rootCmd = &cobra.Command{
	Use:           "gateway",
	Short:         "EVM payment gateway",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if path := os.Getenv("ENVPATH"); path != "" {
			if err := godotenv.Load(path); err != nil {
				return fmt.Errorf("can't load .env file: %w", err)
			}
		}
		if flagConfig == "" {
			flagConfig = os.Getenv("CONFIG")
		}
		return nil
	},
}

func loadConfig() (*config.Config, error) {
	if flagConfig == "" {
		return nil, fmt.Errorf("config path is empty, use --config or CONFIG")
	}
	return config.Load(flagConfig)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config.toml (default $CONFIG)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the api, the scheduler and the job workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig()
			if err != nil {
				return err
			}
			config.DB = postgres.Init(config)

			a := &app.App{
				Config: config,
				Db:     config.DB,
				Log:    logger.Init(config.Prod_env),
			}
			return a.Start()
		},
	}
	rootCmd.AddCommand(serveCmd)

	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Migrate the database and seed chain cursors and tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig()
			if err != nil {
				return err
			}
			db := postgres.Init(config)

			if err := service.Seed(cmd.Context(), db, config); err != nil {
				return err
			}
			dlog.Init().Log("seeded", "chains", config.ChainNames(), "tokens", len(config.Tokens))
			return nil
		},
	}
	rootCmd.AddCommand(seedCmd)

	var deriveFrom, deriveCount uint32
	deriveCmd := &cobra.Command{
		Use:   "derive",
		Short: "Print deposit addresses derived from MNEMONIC",
		RunE: func(cmd *cobra.Command, args []string) error {
			wallet, err := hdwallet.NewFromMnemonic(os.Getenv("MNEMONIC"), "")
			if err != nil {
				return err
			}

			d := dlog.Init()
			for i := deriveFrom; i < deriveFrom+deriveCount; i++ {
				account, err := wallet.Derive(i)
				if err != nil {
					return err
				}
				d.Log("derived", "path", account.Path(), "address", account.Address.Hex())
			}
			return nil
		},
	}
	deriveCmd.Flags().Uint32Var(&deriveFrom, "from", 0, "First derivation index")
	deriveCmd.Flags().Uint32Var(&deriveCount, "count", 5, "Number of addresses")
	rootCmd.AddCommand(deriveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
