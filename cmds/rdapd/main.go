package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/safing/rdapd/base/info"
	"github.com/safing/rdapd/base/metrics"
	"github.com/safing/rdapd/service"
)

var (
	rootCmd = &cobra.Command{
		Use:              "rdapd",
		Short:            "An RDAP resolution and caching service",
		PersistentPreRun: initializeGlobals,
		Run:              cmdRun,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(info.FullVersion())
		},
	}

	svcCfg = &service.Config{}
)

func init() {
	// Add flags for the service.
	rootCmd.Flags().StringVar(&svcCfg.DataDir, "data-dir", "", "set directory for variable data (rw)")
	rootCmd.Flags().BoolVar(&svcCfg.LogToStdout, "log-stdout", false, "log to stdout instead of file")
	rootCmd.Flags().StringVar(&svcCfg.LogDir, "log-dir", "", "set directory for logs")
	rootCmd.Flags().StringVar(&svcCfg.LogLevel, "log", "", "set log level to [trace|debug|info|warning|error|critical]")
	rootCmd.Flags().StringVar(&svcCfg.ListenAddress, "api-address", "", "set the address the HTTP API listens on")
	rootCmd.Flags().StringVar(&svcCfg.BootstrapURL, "bootstrap-url", "", "set an alternative source for the IANA bootstrap registries")
	rootCmd.Flags().DurationVar(&svcCfg.RegistryMaxAge, "registry-max-age", 0, "set the age after which the bootstrap registries must be refreshed")
	rootCmd.Flags().StringVar(&svcCfg.UserAgent, "user-agent", "", "set the user agent sent with upstream requests")
	rootCmd.Flags().DurationVar(&svcCfg.RequestTimeout, "request-timeout", 0, "set the timeout for single upstream request attempts")
	rootCmd.Flags().IntVar(&svcCfg.MaxRetries, "max-retries", 0, "set the number of retries for retryable upstream failures")
	rootCmd.Flags().IntVar(&svcCfg.MaxRedirects, "max-redirects", 0, "set the maximum number of followed redirects per query")
	rootCmd.Flags().DurationVar(&svcCfg.DNSResolveTimeout, "dns-timeout", 0, "set the timeout for DNS address lookups")
	rootCmd.Flags().BoolVar(&printStackOnExit, "print-stack-on-exit", false, "print the stack before shutting down")

	// Add other commands.
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func initializeGlobals(_ *cobra.Command, _ []string) {
	// Set name and license.
	info.Set("rdapd", "0.1.0", "AGPLv3")

	// Configure metrics.
	_ = metrics.SetNamespace("rdapd")
}
