package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chessticulate/chessticulate-api/internal/version"
)

var (
	versionShort bool
	versionJSON  bool
	versionGate  string
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print version and build information.

With --gate PREVIOUS, instead compare the binary's version against the
previously released version and exit non-zero unless the current version is
strictly greater. CI runs this before allowing a release.`,
	RunE: runVersion,
}

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "print only the version number")
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "print build information as JSON")
	versionCmd.Flags().StringVar(&versionGate, "gate", "", "fail unless the version is greater than the given previous release")

	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) error {
	if versionGate != "" {
		if err := version.Gate(version.GetVersion(), versionGate); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "version gate passed: %s > %s\n",
			version.Tag(), versionGate)
		return nil
	}

	if versionShort {
		fmt.Fprintln(cmd.OutOrStdout(), version.GetVersion())
		return nil
	}

	info := version.GetBuildInfo()
	if versionJSON {
		out, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "chessticulate-api %s\n", version.Tag())
	fmt.Fprintf(cmd.OutOrStdout(), "  commit:     %s\n", info.GitCommit)
	if !info.BuildTime.IsZero() {
		fmt.Fprintf(cmd.OutOrStdout(), "  built:      %s\n", info.BuildTime.Format("2006-01-02T15:04:05Z07:00"))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "  go version: %s\n", info.GoVersion)
	fmt.Fprintf(cmd.OutOrStdout(), "  platform:   %s\n", info.Platform)
	return nil
}
