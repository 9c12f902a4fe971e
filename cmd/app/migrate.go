package app

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/levishimwe/Hadathub/internal/config"
	"github.com/levishimwe/Hadathub/internal/logger"
	"github.com/levishimwe/Hadathub/internal/repository/dao"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the Postgres schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to initialize config -> %w", err)
		}
		if err = logger.Init(conf.API.Environment); err != nil {
			return fmt.Errorf("failed to initialize logger -> %w", err)
		}

		db, err := openPostgres(conf)
		if err != nil {
			return fmt.Errorf("failed to initialize database -> %w", err)
		}
		if err = dao.InitTables(db); err != nil {
			return fmt.Errorf("dao.InitTables -> %w", err)
		}

		zap.L().Info("schema is up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
