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

// pgbackrest-manifest is a thin CLI over the core engine: it scans a
// live data directory into a manifest, saves and loads it from a
// repository, prints a human summary of one, and plans the block reads
// needed to bring a single file's block-incremental copy up to date.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/cloudnative-pg/pgbackrest-core/internal/cmd/build"
	"github.com/cloudnative-pg/pgbackrest-core/internal/cmd/inspect"
	"github.com/cloudnative-pg/pgbackrest-core/internal/cmd/load"
	"github.com/cloudnative-pg/pgbackrest-core/internal/cmd/plan"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "pgbackrest-manifest",
		Short:        "Build, inspect, and plan incremental backup manifests",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(build.NewCmd())
	rootCmd.AddCommand(load.NewCmd())
	rootCmd.AddCommand(inspect.NewCmd())
	rootCmd.AddCommand(plan.NewCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
