/*
Copyright The CloudNativePG Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package inspect exposes the "inspect" subcommand: print a backup
// manifest's file list as a table, flagging reference and block-delta
// files so an operator can see at a glance how much of a backup was
// actually copied.
package inspect

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/cheynewallace/tabby"
	"github.com/logrusorgru/aurora/v3"
	"github.com/spf13/cobra"

	"github.com/cloudnative-pg/pgbackrest-core/pkg/manifest"
	"github.com/cloudnative-pg/pgbackrest-core/pkg/stanzaconfig"
	"github.com/cloudnative-pg/pgbackrest-core/pkg/storage"
)

func backupPath(stanza, label string) string {
	return path.Join("backup", stanza, label, "backup.manifest")
}

// NewCmd creates the "inspect" subcommand.
func NewCmd() *cobra.Command {
	var stanzaConfigPath, label string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print a backup manifest's file list as a table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(context.Background(), stanzaConfigPath, label)
		},
	}

	cmd.Flags().StringVar(&stanzaConfigPath, "stanza-config", "", "path to the stanza's YAML repository configuration (required)")
	cmd.Flags().StringVar(&label, "label", "", "backup label to inspect (required)")
	_ = cmd.MarkFlagRequired("stanza-config")
	_ = cmd.MarkFlagRequired("label")

	return cmd
}

// Run loads the named backup and prints its files to stdout.
func Run(ctx context.Context, stanzaConfigPath, label string) error {
	data, err := os.ReadFile(stanzaConfigPath)
	if err != nil {
		return fmt.Errorf("inspect: read stanza config: %w", err)
	}
	cfg, err := stanzaconfig.Parse(data)
	if err != nil {
		return fmt.Errorf("inspect: %w", err)
	}
	if cfg.IOTimeout() > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.IOTimeout())
		defer cancel()
	}

	repo := storage.NewPosix(cfg.RepoPath)
	m, err := manifest.LoadFile(ctx, repo, backupPath(cfg.StanzaName, label))
	if err != nil {
		return fmt.Errorf("inspect: %w", err)
	}

	fmt.Printf("%s  %s backup, %d file(s)\n",
		aurora.Bold(m.Data.BackupLabel), m.Data.BackupType, len(m.Files))

	t := tabby.New()
	t.AddHeader("File", "Size", "Disposition", "Reference")
	for _, f := range m.Files {
		disposition := dispositionOf(f)
		t.AddLine(f.Name, f.Size, colorizeDisposition(disposition), m.References.Get(f.Reference))
	}
	t.Print()
	return nil
}

func dispositionOf(f manifest.File) string {
	switch {
	case f.Copy:
		return "copy"
	case f.Delta:
		return "delta"
	case f.HasBlockIncr():
		return "block-incr"
	default:
		return "reference"
	}
}

func colorizeDisposition(d string) aurora.Value {
	switch d {
	case "copy":
		return aurora.Green(d)
	case "delta", "block-incr":
		return aurora.Yellow(d)
	default:
		return aurora.Cyan(d)
	}
}
