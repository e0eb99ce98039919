package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/thyrook/boardscribe/internal/iface"
	"github.com/thyrook/boardscribe/internal/storage"
)

var gamesLimit int

func initGamesFlags() {
	gamesListCmd.Flags().IntVarP(&gamesLimit, "limit", "n", 20, "maximum games to list (0 = all)")
}

func openStore() (*storage.GameStore, error) {
	store, err := storage.NewGameStore(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open game archive: %w", err)
	}
	return store, nil
}

func runGamesList(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	recs, err := store.List(gamesLimit)
	if err != nil {
		return err
	}
	total, err := store.Count()
	if err != nil {
		return err
	}
	log.Debug("Listed games", zap.Int("shown", len(recs)), zap.Int("total", total))

	cli.PrintGames(recs)
	if len(recs) < total {
		cli.PrintStatus(fmt.Sprintf("Showing %d of %d games", len(recs), total), iface.LevelInfo)
	}
	return nil
}

func runGamesShow(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	rec, err := store.Get(args[0])
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("no archived game with id %s", args[0])
	}
	if err != nil {
		return err
	}
	cli.PrintGame(rec)
	return nil
}

func runGamesDelete(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Delete(args[0]); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("no archived game with id %s", args[0])
		}
		return err
	}
	log.Info("Game deleted", zap.String("id", args[0]))
	cli.PrintStatus("Deleted "+args[0], iface.LevelSuccess)
	return nil
}

func runGamesExport(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	f, err := os.Create(args[0])
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	n, err := store.ExportJSONL(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	cli.PrintStatus(fmt.Sprintf("Exported %d games to %s", n, args[0]), iface.LevelSuccess)
	return nil
}

func runGamesImport(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	n, err := store.ImportJSONL(f)
	if err != nil {
		return fmt.Errorf("imported %d games before failing: %w", n, err)
	}
	cli.PrintStatus(fmt.Sprintf("Imported %d games", n), iface.LevelSuccess)
	return nil
}

func runGamesBackup(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Backup(args[0]); err != nil {
		return err
	}
	cli.PrintStatus("Archive copied to "+args[0], iface.LevelSuccess)
	return nil
}
