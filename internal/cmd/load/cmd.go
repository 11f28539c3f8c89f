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

// Package load exposes the "load" subcommand: read one backup's manifest
// back from the repository and print its header as JSON.
package load

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"

	"github.com/spf13/cobra"

	"github.com/cloudnative-pg/pgbackrest-core/pkg/manifest"
	"github.com/cloudnative-pg/pgbackrest-core/pkg/stanzaconfig"
	"github.com/cloudnative-pg/pgbackrest-core/pkg/storage"
)

// backupPath returns the repository-relative path of a backup's manifest.
func backupPath(stanza, label string) string {
	return path.Join("backup", stanza, label, "backup.manifest")
}

// NewCmd creates the "load" subcommand.
func NewCmd() *cobra.Command {
	var stanzaConfigPath, label string

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load a backup manifest and print its header as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := Load(context.Background(), stanzaConfigPath, label)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(m.Data, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&stanzaConfigPath, "stanza-config", "", "path to the stanza's YAML repository configuration (required)")
	cmd.Flags().StringVar(&label, "label", "", "backup label to load (required)")
	_ = cmd.MarkFlagRequired("stanza-config")
	_ = cmd.MarkFlagRequired("label")

	return cmd
}

// Load reads the named backup's manifest from the stanza's repository.
func Load(ctx context.Context, stanzaConfigPath, label string) (*manifest.Manifest, error) {
	cfg, err := readConfig(stanzaConfigPath)
	if err != nil {
		return nil, err
	}
	if cfg.IOTimeout() > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.IOTimeout())
		defer cancel()
	}
	repo := storage.NewPosix(cfg.RepoPath)
	return manifest.LoadFile(ctx, repo, backupPath(cfg.StanzaName, label))
}

func readConfig(configPath string) (stanzaconfig.Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return stanzaconfig.Config{}, fmt.Errorf("load: read stanza config: %w", err)
	}
	cfg, err := stanzaconfig.Parse(data)
	if err != nil {
		return stanzaconfig.Config{}, fmt.Errorf("load: %w", err)
	}
	return cfg, nil
}
