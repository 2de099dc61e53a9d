/*
Copyright 2024.

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

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/overture-stack/dac-permissions-reconciler/cmd/reconciler"
)

func main() {
	command := &cobra.Command{
		Use:   "dac-permissions-reconciler",
		Short: "DAC permissions reconciliation command entrypoint",
		Run: func(c *cobra.Command, args []string) {
			c.HelpFunc()(c, args)
		},
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	command.AddCommand(reconciler.NewCommand())

	if err := command.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "dac-permissions-reconciler execution error: %s\n", err)
		os.Exit(1)
	}
}
