package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/meigma/dataanchor"
	"github.com/meigma/dataanchor/cmd/dataanchor/cli/config"
)

// completeCompression suggests the payload codecs.
func completeCompression(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return matching([]string{
		dataanchor.CompressionNone.String(),
		dataanchor.CompressionZstd.String(),
	}, toComplete), cobra.ShellCompDirectiveNoFileComp
}

// completeConfigKeys suggests setting keys for the first argument of
// config set.
func completeConfigKeys(_ *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return matching(config.Keys, toComplete), cobra.ShellCompDirectiveNoFileComp
}

func matching(candidates []string, prefix string) []string {
	var out []string
	for _, c := range candidates {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}
