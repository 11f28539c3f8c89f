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

package build

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewCmd creates the "build" subcommand.
func NewCmd() *cobra.Command {
	var (
		stanzaConfigPath string
		pgDataPath       string
		pgDSN            string
		backupType       string
		archiveStart     string
		priorLabel       string
		online           bool
		bundle           bool
		blockIncr        bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Scan a live data directory and save a backup manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := Options{
				StanzaConfigPath: stanzaConfigPath,
				PgDataPath:       pgDataPath,
				PgDSN:            pgDSN,
				BackupType:       backupType,
				ArchiveStart:     archiveStart,
				PriorLabel:       priorLabel,
				Online:           online,
				Bundle:           bundle,
				BlockIncr:        blockIncr,
			}
			label, err := Run(context.Background(), opts)
			if err != nil {
				return err
			}
			fmt.Printf("backup %s saved\n", label)
			return nil
		},
	}

	cmd.Flags().StringVar(&stanzaConfigPath, "stanza-config", "", "path to the stanza's YAML repository configuration (required)")
	cmd.Flags().StringVar(&pgDataPath, "pgdata", "", "path to the live PostgreSQL data directory to scan (required)")
	cmd.Flags().StringVar(&pgDSN, "pg-dsn", "", "libpq connection string used to probe the cluster's version and system identifier (required)")
	cmd.Flags().StringVar(&backupType, "type", "full", "backup type: full, diff, or incr")
	cmd.Flags().StringVar(&archiveStart, "archive-start", "", "this backup's WAL archive-start name, required for diff/incr backups")
	cmd.Flags().StringVar(&priorLabel, "prior-label", "", "label of the prior backup this one is based on, required for diff/incr backups")
	cmd.Flags().BoolVar(&online, "online", true, "whether this backup was taken against a running cluster")
	cmd.Flags().BoolVar(&bundle, "bundle", false, "pack small files together into bundles within the repository")
	cmd.Flags().BoolVar(&blockIncr, "block-incr", false, "enable block-level incremental checksums for large files")
	_ = cmd.MarkFlagRequired("stanza-config")
	_ = cmd.MarkFlagRequired("pgdata")
	_ = cmd.MarkFlagRequired("pg-dsn")

	return cmd
}
