package cli

import (
	"encoding/base64"
	"os"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ProductOptions — флаги product create.
type ProductOptions struct {
	*RootOptions
	Title     string
	Price     float64
	Category  string
	ImagePath string
}

// NewProductCommand создаёт группу команд product.
func NewProductCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "product",
		Short: "Create and delete catalog products",
	}
	cmd.AddCommand(newProductCreateCommand(rootOpts))
	cmd.AddCommand(newProductDeleteCommand(rootOpts))
	return cmd
}

func newProductCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProductOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Run the create-product saga",
		Long: `Create a product: title check, record insert, image upload and link.

Example:
  catalogctl product create --email chef@example.com --title Pho --price 12.5 --category Soup --image pho.png`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return createProduct(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Title, "title", "", "product title (unique)")
	cmd.Flags().Float64Var(&opts.Price, "price", 0, "product price")
	cmd.Flags().StringVar(&opts.Category, "category", "", "product category")
	cmd.Flags().StringVar(&opts.ImagePath, "image", "", "path to the product image")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("price")
	_ = cmd.MarkFlagRequired("image")

	return cmd
}

func createProduct(cmd *cobra.Command, opts *ProductOptions) error {
	image, err := os.ReadFile(opts.ImagePath)
	if err != nil {
		return WrapExitError(ExitCommandError, "read image", err)
	}

	req, err := structpb.NewStruct(map[string]any{
		"title":       opts.Title,
		"price":       opts.Price,
		"category":    opts.Category,
		"imageBase64": base64.StdEncoding.EncodeToString(image),
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "build request", err)
	}

	client, ctx, closeFn, err := opts.connect(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer closeFn()

	product, err := client.CreateProduct(ctx, req)
	if err != nil {
		return WrapExitError(ExitCommandError, "create product", err)
	}
	return opts.printer(cmd).Message(product)
}

func newProductDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <product-id>",
		Short: "Delete a product and its image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, ctx, closeFn, err := opts.connect(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer closeFn()

			if _, err := client.DeleteProduct(ctx, wrapperspb.String(args[0])); err != nil {
				return WrapExitError(ExitCommandError, "delete product", err)
			}
			p := opts.printer(cmd)
			if opts.Format == "json" {
				return p.JSON(map[string]string{"deleted": args[0]})
			}
			p.Line("deleted %s", args[0])
			return nil
		},
	}
}
