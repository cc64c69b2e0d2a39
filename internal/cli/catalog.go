package cli

import (
	"errors"
	"io"

	"github.com/spf13/cobra"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// CatalogOptions — фильтры catalog search и catalog watch.
type CatalogOptions struct {
	*RootOptions
	TitleContains string
	Category      string
	Count         int
}

func (o *CatalogOptions) request() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"titleContains": o.TitleContains,
		"category":      o.Category,
	})
}

// NewCatalogCommand создаёт группу команд catalog.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Read the live catalog mirror",
	}
	cmd.AddCommand(newCatalogSearchCommand(rootOpts))
	cmd.AddCommand(newCatalogWatchCommand(rootOpts))
	return cmd
}

func addFilterFlags(cmd *cobra.Command, opts *CatalogOptions) {
	cmd.Flags().StringVar(&opts.TitleContains, "title-contains", "", "case-insensitive title substring")
	cmd.Flags().StringVar(&opts.Category, "category", "", "exact category")
}

func newCatalogSearchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CatalogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Filter the latest catalog snapshot held by the service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := opts.request()
			if err != nil {
				return WrapExitError(ExitCommandError, "build request", err)
			}

			client, ctx, closeFn, err := opts.connect(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer closeFn()

			snapshot, err := client.FilterCatalog(ctx, req)
			if err != nil {
				return WrapExitError(ExitCommandError, "filter catalog", err)
			}
			return opts.printer(cmd).Products(snapshot)
		},
	}
	addFilterFlags(cmd, opts)
	return cmd
}

func newCatalogWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CatalogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream filtered catalog snapshots until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := opts.request()
			if err != nil {
				return WrapExitError(ExitCommandError, "build request", err)
			}

			client, ctx, closeFn, err := opts.connect(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer closeFn()

			stream, err := client.SubscribeCatalog(ctx, req)
			if err != nil {
				return WrapExitError(ExitCommandError, "subscribe catalog", err)
			}

			p := opts.printer(cmd)
			for received := 0; opts.Count == 0 || received < opts.Count; received++ {
				snapshot, err := stream.Recv()
				if errors.Is(err, io.EOF) || status.Code(err) == codes.Canceled {
					return nil
				}
				if err != nil {
					return WrapExitError(ExitCommandError, "catalog stream", err)
				}
				if err := p.Products(snapshot); err != nil {
					return err
				}
			}
			return nil
		},
	}
	addFilterFlags(cmd, opts)
	cmd.Flags().IntVar(&opts.Count, "count", 0, "stop after this many snapshots (0 = until interrupted)")
	return cmd
}
