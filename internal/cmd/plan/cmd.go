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

// Package plan exposes the "plan" subcommand: given a file's prior
// block map and its current on-disk content, print the coalesced Reads
// a block-incremental restore or backup would need to bring it current.
package plan

import (
	"context"
	"fmt"
	"os"

	"github.com/cheynewallace/tabby"
	"github.com/spf13/cobra"

	"github.com/cloudnative-pg/pgbackrest-core/internal/metrics"
	"github.com/cloudnative-pg/pgbackrest-core/pkg/blockdelta"
	"github.com/cloudnative-pg/pgbackrest-core/pkg/filterpipe"
	"github.com/cloudnative-pg/pgbackrest-core/pkg/stanzaconfig"
	"github.com/cloudnative-pg/pgbackrest-core/pkg/storage"
)

// NewCmd creates the "plan" subcommand.
func NewCmd() *cobra.Command {
	var stanzaConfigPath, blockMapPath, filePath string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Plan the block reads needed to bring a file's delta copy current",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(context.Background(), stanzaConfigPath, blockMapPath, filePath)
		},
	}

	cmd.Flags().StringVar(&stanzaConfigPath, "stanza-config", "", "path to the stanza's YAML repository configuration (required)")
	cmd.Flags().StringVar(&blockMapPath, "block-map", "", "repository-relative path to the file's saved, pack-encoded block map (required)")
	cmd.Flags().StringVar(&filePath, "file", "", "path to the file's current on-disk content (required)")
	_ = cmd.MarkFlagRequired("stanza-config")
	_ = cmd.MarkFlagRequired("block-map")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// Run decodes the saved block map, computes the file's current local
// block checksums, plans the coalesced Reads between them, and prints
// the plan to stdout.
func Run(ctx context.Context, stanzaConfigPath, blockMapPath, filePath string) error {
	cfgData, err := os.ReadFile(stanzaConfigPath)
	if err != nil {
		return fmt.Errorf("plan: read stanza config: %w", err)
	}
	cfg, err := stanzaconfig.Parse(cfgData)
	if err != nil {
		return fmt.Errorf("plan: %w", err)
	}
	if cfg.IOTimeout() > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.IOTimeout())
		defer cancel()
	}

	repo := storage.NewPosix(cfg.RepoPath)
	mapData, err := storage.ReadAll(ctx, repo, blockMapPath)
	if err != nil {
		return fmt.Errorf("plan: read block map: %w", err)
	}
	blockMap, err := filterpipe.DecodeBlockMap(mapData)
	if err != nil {
		return fmt.Errorf("plan: decode block map: %w", err)
	}

	localChecksum, err := localBlockChecksums(filePath, cfg.BlockSize, cfg.ChecksumSize)
	if err != nil {
		return fmt.Errorf("plan: %w", err)
	}

	rec := metrics.NewUnregistered()
	reads := blockdelta.Plan(blockMap, uint64(cfg.BlockSize), cfg.ChecksumSize, localChecksum)
	rec.ObserveBlockDeltaReads(len(reads))

	t := tabby.New()
	t.AddHeader("Read #", "Reference", "Offset", "Size", "SuperBlocks")
	for i, r := range reads {
		t.AddLine(i+1, r.Reference, r.Offset, r.Size, len(r.SuperBlocks))
	}
	t.Print()
	fmt.Printf("%d coalesced read(s) planned\n", len(reads))
	return nil
}

func localBlockChecksums(path string, blockSize, checksumSize int) ([]byte, error) {
	f, err := os.Open(path) //nolint:gosec // operator-supplied path, same trust level as the repo config
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	filt := filterpipe.NewBlockChecksumFilter(blockSize, checksumSize)
	buf := make([]byte, 64*1024)
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			if err := filt.Push(buf[:n]); err != nil {
				return nil, err
			}
		}
		if readErr != nil {
			break
		}
	}
	if err := filt.End(); err != nil {
		return nil, err
	}
	result, _ := filt.Result(filterpipe.TypeBlockChecksum)
	if result == nil {
		return nil, nil
	}
	return result.([]byte), nil
}
