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

// Package build drives a full manifest build: probe the cluster, walk
// its data directory, fold in a prior backup when requested, validate,
// and save the result to the stanza's repository.
package build

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"path"
	"regexp"
	"time"

	"github.com/cloudnative-pg/pgbackrest-core/internal/corelog"
	"github.com/cloudnative-pg/pgbackrest-core/internal/metrics"
	"github.com/cloudnative-pg/pgbackrest-core/pkg/filterpipe"
	"github.com/cloudnative-pg/pgbackrest-core/pkg/lock"
	"github.com/cloudnative-pg/pgbackrest-core/pkg/manifest"
	"github.com/cloudnative-pg/pgbackrest-core/pkg/pgcatalog"
	"github.com/cloudnative-pg/pgbackrest-core/pkg/scanner"
	"github.com/cloudnative-pg/pgbackrest-core/pkg/stanzaconfig"
	"github.com/cloudnative-pg/pgbackrest-core/pkg/storage"
)

// Options carries the "build" subcommand's flags.
type Options struct {
	StanzaConfigPath string
	PgDataPath       string
	PgDSN            string
	BackupType       string
	ArchiveStart     string
	PriorLabel       string
	Online           bool
	Bundle           bool
	BlockIncr        bool
}

// relationBaseExp captures a relation file's numeric base id, ignoring
// any segment suffix (e.g. "16397.1") or fork suffix (e.g. "16397_fsm").
var relationBaseExp = regexp.MustCompile(`^([0-9]+)(?:\.[0-9]+)?(?:_[a-z]+)?$`)

// backupPath returns the repository-relative path of a backup's manifest.
func backupPath(stanza, label string) string {
	return path.Join("backup", stanza, label, "backup.manifest")
}

// lockPath returns the repository-relative path of a stanza's lock file.
func lockPath(stanza string) string {
	return path.Join("backup", stanza, "backup.lock")
}

// Run performs the build and returns the new backup's label.
func Run(ctx context.Context, opts Options) (string, error) {
	log, err := corelog.New()
	if err != nil {
		return "", fmt.Errorf("build: %w", err)
	}
	rec := metrics.NewUnregistered()

	backupType := manifest.BackupType(opts.BackupType)
	if backupType != manifest.BackupTypeFull && backupType != manifest.BackupTypeDiff && backupType != manifest.BackupTypeIncr {
		return "", fmt.Errorf("build: invalid --type %q", opts.BackupType)
	}
	if backupType != manifest.BackupTypeFull && (opts.ArchiveStart == "" || opts.PriorLabel == "") {
		return "", fmt.Errorf("build: --archive-start and --prior-label are required for %s backups", backupType)
	}

	cfgData, err := os.ReadFile(opts.StanzaConfigPath)
	if err != nil {
		return "", fmt.Errorf("build: read stanza config: %w", err)
	}
	cfg, err := stanzaconfig.Parse(cfgData)
	if err != nil {
		return "", fmt.Errorf("build: %w", err)
	}
	if cfg.IOTimeout() > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.IOTimeout())
		defer cancel()
	}

	repo := storage.NewPosix(cfg.RepoPath)
	pgdata := storage.NewPosix(opts.PgDataPath)

	held, err := lock.Acquire(ctx, repo, lockPath(cfg.StanzaName), 30*time.Second)
	if err != nil {
		return "", fmt.Errorf("build: %w", err)
	}
	defer held.Release() //nolint:errcheck

	start := time.Now()
	defer func() { rec.BuildDuration.Observe(time.Since(start).Seconds()) }()

	probe, err := pgcatalog.Open(opts.PgDSN)
	if err != nil {
		return "", fmt.Errorf("build: %w", err)
	}
	defer probe.Close() //nolint:errcheck

	info, err := probe.Info(ctx)
	if err != nil {
		return "", fmt.Errorf("build: %w", err)
	}

	label := time.Now().UTC().Format("20060102-150405F")
	if backupType != manifest.BackupTypeFull {
		suffix := map[manifest.BackupType]string{manifest.BackupTypeDiff: "D", manifest.BackupTypeIncr: "I"}[backupType]
		label = opts.PriorLabel[:len(opts.PriorLabel)-1] + "_" + time.Now().UTC().Format("20060102-150405") + suffix
	}

	b := manifest.NewBuilder()
	if err := b.Init(info.CatalogVersion, info.PgVersion, info.SystemID, time.Now().Unix(),
		opts.Online, true, opts.Bundle, opts.BlockIncr); err != nil {
		return "", fmt.Errorf("build: %w", err)
	}

	rootStat, err := pgdata.Stat(ctx, "")
	if err != nil {
		return "", fmt.Errorf("build: stat pgdata root: %w", err)
	}
	b.AddRootTarget(opts.PgDataPath, rootStat)

	owner, group := currentOwner()
	b.SetOwnerDefaults(owner, group)

	tablespaces, err := probe.Tablespaces(ctx)
	if err != nil {
		return "", fmt.Errorf("build: %w", err)
	}
	tsOpts := &scanner.TablespaceOptions{Regexp: scanner.DefaultTablespaceRegexp, OIDs: tablespaces}

	copyStart := time.Now().Unix()
	walkErr := scanner.Scan(ctx, pgdata, "", scanner.Exclude{
		Contents: map[string]bool{"pg_wal": true, "pg_replslot": true},
	}, tsOpts, func(e scanner.Entry) error {
		switch e.Kind {
		case scanner.KindPath:
			b.AddPath(e.Name, e.Info.Mode, owner, group)
		case scanner.KindLink:
			b.AddLink(e.Name, e.Info.LinkDestination, owner, group)
		case scanner.KindTablespace:
			b.AddTarget(manifest.Target{
				Name:           e.Name,
				Type:           manifest.TargetTypeLink,
				Path:           e.Info.LinkDestination,
				TablespaceID:   e.TablespaceID,
				TablespaceName: e.TablespaceName,
			})
		case scanner.KindFile:
			f, err := hashFile(ctx, pgdata, e)
			if err != nil {
				return err
			}
			b.AddFile(f, owner, group)
			rec.ObserveFile(metrics.FileCopied)
		}
		return nil
	})
	if walkErr != nil {
		return "", fmt.Errorf("build: %w", walkErr)
	}

	m := b.Manifest()
	m.Sort()
	b.RemoveUnloggedRelations(relationBaseExp)
	m.BackupLabelSet(label)
	m.Data.BackupTimestampStop = time.Now().Unix()

	m.Validate(log, copyStart, opts.Online, false, string(cfg.Compression))

	if backupType != manifest.BackupTypeFull {
		prior, err := manifest.LoadFile(ctx, repo, backupPath(cfg.StanzaName, opts.PriorLabel))
		if err != nil {
			return "", fmt.Errorf("build: load prior backup %s: %w", opts.PriorLabel, err)
		}
		if err := m.BuildIncr(log, prior, backupType, opts.ArchiveStart); err != nil {
			return "", fmt.Errorf("build: %w", err)
		}
	}

	if err := manifest.SaveFile(ctx, repo, backupPath(cfg.StanzaName, label), m); err != nil {
		return "", fmt.Errorf("build: save manifest: %w", err)
	}

	log.Info("backup manifest saved", "stanza", cfg.StanzaName, "label", label, "type", backupType, "files", len(m.Files))
	return label, nil
}

// hashFile stats and SHA-1-sums a scanned file, returning the manifest
// File record ready for Builder.AddFile.
func hashFile(ctx context.Context, s storage.Storage, e scanner.Entry) (manifest.File, error) {
	r, err := s.OpenRead(ctx, e.Name)
	if err != nil {
		return manifest.File{}, manifest.NewFileOpenError("build: open %q: %v", e.Name, err)
	}
	defer r.Close() //nolint:errcheck

	sha1 := filterpipe.NewSHA1Filter()
	buf := make([]byte, 64*1024)
	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			if err := sha1.Push(buf[:n]); err != nil {
				return manifest.File{}, err
			}
		}
		if readErr != nil {
			break
		}
	}
	if err := sha1.End(); err != nil {
		return manifest.File{}, err
	}
	digest, _ := sha1.Result(filterpipe.TypeSHA1)

	return manifest.File{
		Name:         e.Name,
		Mode:         e.Info.Mode,
		Size:         uint64(e.Info.Size),
		SizeRepo:     uint64(e.Info.Size),
		Timestamp:    e.Info.ModTime.Unix(),
		ChecksumSHA1: digest.(string),
	}, nil
}

func currentOwner() (ownerUser, ownerGroup string) {
	u, err := user.Current()
	if err != nil {
		return "postgres", "postgres"
	}
	return u.Username, u.Username
}
