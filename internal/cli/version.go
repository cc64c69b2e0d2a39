package cli

import (
	"github.com/spf13/cobra"

	"github.com/vladislavdragonenkov/storefront/internal/version"
)

// NewVersionCommand печатает сведения о сборке catalogctl; к серверу не подключается.
func NewVersionCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print catalogctl build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			build := version.Current()
			p := opts.printer(cmd)
			if p.Format == "json" {
				return p.JSON(build)
			}
			p.Line("%s", build)
			return nil
		},
	}
}
