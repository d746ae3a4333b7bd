package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/andresuchdata/gcs-media-sync/internal/config"
	"github.com/andresuchdata/gcs-media-sync/internal/objectkey"
	"github.com/andresuchdata/gcs-media-sync/internal/rewrite"
	"github.com/andresuchdata/gcs-media-sync/internal/storage"
	"github.com/urfave/cli/v2"
)

const probeTimeout = 15 * time.Second

func runCheck(c *cli.Context, cfg *config.Config) error {
	writeSettings(c.App.Writer, cfg.Sync)

	ctx, cancel := context.WithTimeout(c.Context, probeTimeout)
	defer cancel()
	if err := probeStore(ctx, cfg.Sync); err != nil {
		fmt.Fprintf(c.App.Writer, "Store available:      no (%v)\n", err)
		return cli.Exit("object store check failed", 1)
	}
	fmt.Fprintln(c.App.Writer, "Store available:      yes")
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func writeSettings(w io.Writer, cfg config.SyncConfig) {
	fmt.Fprintf(w, "Enabled:              %s\n", yesNo(cfg.Enabled))
	fmt.Fprintf(w, "Provider:             %s\n", cfg.Provider)
	fmt.Fprintf(w, "Bucket:               %s\n", cfg.Bucket)
	fmt.Fprintf(w, "Folder:               %s\n", objectkey.NormalizePrefix(cfg.Folder))
	fmt.Fprintf(w, "Base directory:       %s\n", cfg.BaseDir)
	fmt.Fprintf(w, "Max width:            %d\n", cfg.MaxWidth)
	fmt.Fprintf(w, "Image quality:        %d\n", cfg.ImageQuality)
	fmt.Fprintf(w, "Auto delete local:    %s\n", yesNo(cfg.AutoDeleteLocal))
	fmt.Fprintf(w, "Keep local on delete: %s\n", yesNo(rewrite.KeepLocalOnHostDelete(cfg)))
	fmt.Fprintf(w, "Credentials:          %s\n", yesNo(cfg.CredentialsJSON != "" || cfg.S3.AccessKey != ""))
}

// probeStore opens a store session and checks for a key under the folder
// prefix. Only the round trip matters, not whether the key exists.
func probeStore(ctx context.Context, cfg config.SyncConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	open, err := storage.NewOpener(cfg)
	if err != nil {
		return err
	}
	return storage.WithSession(ctx, open, func(store storage.ObjectStorage) error {
		_, err := store.ObjectExists(ctx, objectkey.Join(cfg.Folder, ".mediasync-check"))
		return err
	})
}
