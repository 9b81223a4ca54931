/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/whisperbox/apiserver/config"
	"github.com/whisperbox/apiserver/internal/db"
	"github.com/whisperbox/apiserver/internal/store"
)

// indexesCmd represents the indexes command.
var indexesCmd = &cobra.Command{
	Use:   "indexes",
	Short: "Manage MongoDB indexes",
}

var indexesEnsureCmd = &cobra.Command{
	Use:   "ensure",
	Short: "Create the uniqueness indexes the account lifecycle relies on",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		client, err := db.Connect(cmd.Context(), cfg.Database)
		if err != nil {
			return fmt.Errorf("connect failed: %w", err)
		}
		defer func() {
			_ = client.Disconnect(cmd.Context())
		}()

		repo := store.NewUserRepository(client.Database(cfg.Database.DBName))
		if err := repo.EnsureIndexes(cmd.Context()); err != nil {
			return fmt.Errorf("ensure indexes failed: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(indexesCmd)
	indexesCmd.AddCommand(indexesEnsureCmd)
}
