package main

import (
	"fmt"
	"os"
	"path"

	"github.com/spf13/cobra"

	"github.com/BadgerOps/recoveryusb/internal/engine"
	"github.com/BadgerOps/recoveryusb/internal/rmf"
	"github.com/BadgerOps/recoveryusb/internal/safety"
)

var (
	inspectManifest string
	inspectSource   string
)

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show the actions of a recovery manifest",
		Long: `Show what a build of the manifest would do without touching any target:
the embedded files it writes, the files it copies or unpacks, and the
confirmation text from VALUES.TXT.

With --source, each referenced file is checked against the source
directory and its size shown.`,
		Example: `  recoveryusb inspect --manifest T480.rmf
  recoveryusb inspect --manifest T480.rmf --source ./downloads`,
		RunE: inspectRun,
	}

	cmd.Flags().StringVar(&inspectManifest, "manifest", "", "recovery manifest (.rmf) file (required)")
	cmd.Flags().StringVar(&inspectSource, "source", "", "check referenced files against this directory")

	if err := cmd.MarkFlagRequired("manifest"); err != nil {
		panic(err)
	}

	return cmd
}

func inspectRun(cmd *cobra.Command, args []string) error {
	m, err := rmf.Load(inspectManifest)
	if err != nil {
		return err
	}

	fmt.Printf("Manifest: %s\n\n", inspectManifest)

	fmt.Printf("Embedded files (%d):\n", len(m.Creates))
	for _, c := range m.Creates {
		fmt.Printf("  %-40s %6d bytes\n", path.Join("/", safety.NormalizeManifestPath(c.CopyPath), c.Name), len(c.Content))
	}
	fmt.Println()

	fmt.Printf("Transfers (%d):\n", len(m.Transfers))
	fmt.Printf("  %-8s %-36s %-28s %s\n", "MODE", "SOURCE", "DESTINATION", "STATUS")
	missing := 0
	for _, t := range m.Transfers {
		mode := string(t.Mode)
		if t.Mode == rmf.ModeUnpack && t.Key != "" {
			mode += "*"
		}
		dest := path.Join("/", safety.NormalizeManifestPath(t.CopyPath))
		if t.Mode == rmf.ModeCopy {
			dest = path.Join(dest, t.TargetName())
		}
		status := ""
		if inspectSource != "" {
			status = sourceStatus(inspectSource, t.Source)
			if status == "missing" {
				missing++
			}
		}
		fmt.Printf("  %-8s %-36s %-28s %s\n", mode, t.Source, dest, status)
	}
	fmt.Println("  (* = password protected)")

	if text, ok := rmf.ConfirmationText(m); ok {
		fmt.Println()
		fmt.Println("Confirmation text:")
		fmt.Println(text)
	}

	if missing > 0 {
		fmt.Printf("\n%d referenced file(s) missing from %s\n", missing, inspectSource)
	}
	return nil
}

func sourceStatus(root, source string) string {
	p, err := safety.JoinUnder(root, source)
	if err != nil {
		return "unsafe path"
	}
	info, err := os.Stat(p)
	if err != nil || info.IsDir() {
		return "missing"
	}
	return engine.FormatSize(info.Size())
}
