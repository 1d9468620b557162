// SPDX-FileCopyrightText: 2020 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"os"

	"github.com/sapcc/go-api-declarations/bininfo"
	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/osext"
	"github.com/spf13/cobra"

	apicmd "github.com/sapcc/stackgate/cmd/api"
	catalogcmd "github.com/sapcc/stackgate/cmd/catalog"
	"github.com/sapcc/stackgate/internal/stackgate"
)

func main() {
	logg.ShowDebug = osext.GetenvBool("STACKGATE_DEBUG")

	// The STACKGATE_INSECURE flag can be used to get stackgate to work through
	// mitmproxy (which is very useful for development and debugging). (It's very
	// important that this is not the standard "STACKGATE_DEBUG" variable. That
	// one is meant to be useful for production systems, where you definitely
	// don't want to turn off certificate verification.)
	stackgate.SetupHTTPClient()

	rootCmd := &cobra.Command{
		Use:     "stackgate",
		Short:   "Session-aware OpenStack API proxy",
		Long:    "stackgate is the backend of the OpenStack dashboard. It holds the Keystone tokens of logged-in users and forwards their API requests to the right region.",
		Version: bininfo.VersionOr("rolling"),
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help() //nolint:errcheck
		},
	}
	apicmd.AddCommandTo(rootCmd)
	catalogcmd.AddCommandTo(rootCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
