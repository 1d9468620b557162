// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package catalogcmd

import (
	"fmt"
	"os"

	"github.com/sapcc/go-bits/gophercloudext"
	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/must"
	"github.com/sapcc/go-bits/osext"
	"github.com/spf13/cobra"

	"github.com/sapcc/stackgate/internal/openstack"
	"github.com/sapcc/stackgate/internal/stackgate"
)

// AddCommandTo mounts this command into the command hierarchy.
func AddCommandTo(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "catalog <region> <service>",
		Short: "Show which endpoint the proxy would use for a service.",
		Long: `Authenticate with the usual OS_* environment variables and print the endpoint URL that the proxy would forward to for requests to /api/proxy/<region>/<service>/.
Use "global" as region to check Keystone-direct requests.`,
		Args: cobra.ExactArgs(2),
		Run:  run,
	}
	parent.AddCommand(cmd)
}

func run(cmd *cobra.Command, args []string) {
	stackgate.SetTaskName("catalog")
	region, serviceName := args[0], args[1]

	serviceType, ok := stackgate.ServiceTypeFor(serviceName)
	if !ok {
		logg.Fatal("unknown service: %q (known services: %v)", serviceName, stackgate.ServiceNames())
	}

	ctx := cmd.Context()
	provider, _, err := gophercloudext.NewProviderClient(ctx, nil)
	if err != nil {
		logg.Fatal("cannot authenticate with OpenStack: %s", err.Error())
	}
	keystoneURL := must.Return(stackgate.ParseKeystoneURL(osext.MustGetenv("OS_AUTH_URL")))
	cfg := stackgate.Configuration{KeystoneURL: *keystoneURL}
	resolver := openstack.NewCatalogResolver(cfg, nil)

	logg.Debug("resolving %s (type %s) in region %q", serviceName, serviceType, region)
	endpointURL, ok := resolver.Resolve(ctx, region, serviceType, serviceName, provider.Token())
	if !ok {
		fmt.Fprintf(os.Stderr, "no public endpoint for service %q in region %q\n", serviceName, region)
		os.Exit(1)
	}
	fmt.Println(endpointURL)
}
