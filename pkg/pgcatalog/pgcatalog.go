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

// Package pgcatalog queries a live PostgreSQL cluster for the three
// facts a backup's header needs before a manifest build can begin
// (§4.2.1 step 1): the server version, the control-file system
// identifier, and the catalog version. It is a narrow collaborator the
// core never imports directly — callers probe a cluster here, then feed
// the result into manifest.Builder.Init's plain scalar parameters.
package pgcatalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/blang/semver"
	_ "github.com/lib/pq" // registers the "postgres" database/sql driver
)

// Info is the subset of pg_control_system()/SHOW server_version a backup
// header records.
type Info struct {
	ServerVersion string // e.g. "15.3", "9.4.26"
	PgVersion     uint32 // encoded db-version, e.g. 150000, 90400
	CatalogVersion uint32
	SystemID      uint64
}

// Probe queries a live cluster over database/sql, using the lib/pq
// driver. Its result, Info, is a plain struct, so a test can build one
// directly without a real database connection.
type Probe struct {
	db *sql.DB
}

// Open connects to dsn (a libpq connection string) using the postgres
// driver. The connection is not validated until the first query.
func Open(dsn string) (*Probe, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("pgcatalog: open %w", err)
	}
	return &Probe{db: db}, nil
}

// Close releases the underlying connection pool.
func (p *Probe) Close() error { return p.db.Close() }

// Info queries the cluster for its version, system identifier, and
// catalog version.
func (p *Probe) Info(ctx context.Context) (Info, error) {
	var serverVersion string
	if err := p.db.QueryRowContext(ctx, "SHOW server_version").Scan(&serverVersion); err != nil {
		return Info{}, fmt.Errorf("pgcatalog: query server_version: %w", err)
	}

	var systemID uint64
	var catalogVersion uint32
	err := p.db.QueryRowContext(ctx,
		"SELECT system_identifier, catalog_version_no FROM pg_control_system()",
	).Scan(&systemID, &catalogVersion)
	if err != nil {
		return Info{}, fmt.Errorf("pgcatalog: query pg_control_system: %w", err)
	}

	pgVersion, err := EncodeVersion(serverVersion)
	if err != nil {
		return Info{}, err
	}

	return Info{
		ServerVersion:  serverVersion,
		PgVersion:      pgVersion,
		CatalogVersion: catalogVersion,
		SystemID:       systemID,
	}, nil
}

// Tablespaces queries the cluster for every non-default tablespace, keyed
// by oid, for the scanner's tablespace-detection pass (§4.1). pg_default
// and pg_global are never reported: they are not present under
// pg_tblspc, so neither target the scanner would need to find them.
func (p *Probe) Tablespaces(ctx context.Context) (map[uint32]string, error) {
	rows, err := p.db.QueryContext(ctx,
		"SELECT oid, spcname FROM pg_tablespace WHERE spcname NOT IN ('pg_default', 'pg_global')")
	if err != nil {
		return nil, fmt.Errorf("pgcatalog: query pg_tablespace: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	out := make(map[uint32]string)
	for rows.Next() {
		var oid uint32
		var name string
		if err := rows.Scan(&oid, &name); err != nil {
			return nil, fmt.Errorf("pgcatalog: scan pg_tablespace row: %w", err)
		}
		out[oid] = name
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgcatalog: iterate pg_tablespace: %w", err)
	}
	return out, nil
}

// EncodeVersion parses a PostgreSQL server_version string (e.g. "15.3",
// "9.4.26", "12beta1") into the manifest's numeric db-version encoding:
// major*10000 + minor for major >= 10, major*10000 + minor*100 + patch
// below that, mirroring the teacher's own GetPostgresVersionFromTag.
func EncodeVersion(serverVersion string) (uint32, error) {
	v, err := semver.ParseTolerant(serverVersion)
	if err != nil {
		return 0, fmt.Errorf("pgcatalog: parse server_version %q: %w", serverVersion, err)
	}

	if v.Major >= 10 {
		return uint32(v.Major)*10000 + uint32(v.Minor), nil
	}
	return uint32(v.Major)*10000 + uint32(v.Minor)*100 + uint32(v.Patch), nil
}

// Compare reports whether a's server_version is older than, equal to, or
// newer than b's, without either caller string-splitting.
func Compare(a, b string) (int, error) {
	va, err := semver.ParseTolerant(a)
	if err != nil {
		return 0, fmt.Errorf("pgcatalog: parse %q: %w", a, err)
	}
	vb, err := semver.ParseTolerant(b)
	if err != nil {
		return 0, fmt.Errorf("pgcatalog: parse %q: %w", b, err)
	}
	return va.Compare(vb), nil
}
