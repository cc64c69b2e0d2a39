package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// CartOptions — флаги cart.
type CartOptions struct {
	*RootOptions
}

// NewCartCommand создаёт группу команд cart.
func NewCartCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CartOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Manage the acting user's cart",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "add <product-id>",
		Short: "Add a product to the cart with the next order number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, ctx, closeFn, err := opts.connect(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer closeFn()

			item, err := client.AddToCart(ctx, wrapperspb.String(args[0]))
			if err != nil {
				return WrapExitError(ExitCommandError, fmt.Sprintf("add %s to cart", args[0]), err)
			}
			return opts.printer(cmd).Message(item)
		},
	})
	return cmd
}
