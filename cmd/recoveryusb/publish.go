package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/BadgerOps/recoveryusb/internal/engine"
	"github.com/BadgerOps/recoveryusb/internal/publish"
	"github.com/BadgerOps/recoveryusb/internal/store"
)

var (
	publishFrom  string
	publishLabel string
	publishList  bool
)

func newPublishCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Upload an exported image to S3-compatible storage",
		Long: `Upload the archives, checksums, README and manifest of an export to the
bucket configured in the publish section. Objects are stored under
<prefix>/<label>/, with the manifest uploaded last.

Use --list to show what is already published under a label.`,
		Example: `  recoveryusb publish --from /srv/images/T480
  recoveryusb publish --from /srv/images/T480 --label T480-2026
  recoveryusb publish --list --label T480`,
		RunE: publishRun,
	}

	cmd.Flags().StringVar(&publishFrom, "from", "", "export directory to upload")
	cmd.Flags().StringVar(&publishLabel, "label", "", "object label (default: the export's label)")
	cmd.Flags().BoolVar(&publishList, "list", false, "list published objects instead of uploading")

	return cmd
}

func publishRun(cmd *cobra.Command, args []string) error {
	if globalCfg == nil {
		return fmt.Errorf("config not loaded")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), globalCfg.PublishTimeout())
	defer cancel()

	client, err := publish.NewClient(ctx, globalCfg.Publish, logger)
	if err != nil {
		return err
	}

	if publishList {
		objects, err := client.List(ctx, publishLabel)
		if err != nil {
			return fmt.Errorf("listing objects: %w", err)
		}
		if len(objects) == 0 {
			fmt.Println("Nothing published.")
			return nil
		}
		for _, obj := range objects {
			fmt.Printf("  %-60s %10s\n", obj.Key, engine.FormatSize(obj.Size))
		}
		return nil
	}

	if publishFrom == "" {
		return fmt.Errorf("--from is required")
	}

	transfer := &store.Transfer{
		Direction: "publish",
		Path:      publishFrom,
		Label:     publishLabel,
		Status:    "running",
		StartTime: time.Now(),
	}
	recordPublish(transfer, true)

	fmt.Printf("Publishing %s to bucket %s...\n", publishFrom, globalCfg.Publish.Bucket)
	result, err := client.Publish(ctx, publishFrom, publishLabel)
	transfer.EndTime = time.Now()
	if result != nil {
		transfer.Label = result.Label
		transfer.ArchiveCount = len(result.Objects)
		transfer.TotalSize = result.Bytes
	}
	if err != nil {
		transfer.Status = "failed"
		transfer.ErrorMessage = err.Error()
		recordPublish(transfer, false)
		return fmt.Errorf("publish failed: %w", err)
	}
	transfer.Status = "completed"
	recordPublish(transfer, false)

	fmt.Printf("Published %d objects (%s) in %s\n",
		len(result.Objects), engine.FormatSize(result.Bytes), result.Duration.Round(time.Second))
	for _, obj := range result.Objects {
		fmt.Printf("  - %s\n", obj.Key)
	}
	return nil
}

func recordPublish(t *store.Transfer, create bool) {
	if globalStore == nil {
		return
	}
	var err error
	if create {
		err = globalStore.CreateTransfer(t)
	} else if t.ID != 0 {
		err = globalStore.UpdateTransfer(t)
	}
	if err != nil {
		logger.Warn("failed to record publish", "error", err)
	}
}
