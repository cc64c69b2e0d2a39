package cli

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	catalogv1 "github.com/vladislavdragonenkov/storefront/proto/catalog/v1"
)

// ProbeOptions — флаги sequence probe.
type ProbeOptions struct {
	*RootOptions
	ProductID string
	Workers   int
	Strict    bool
}

// ProbeResult — итог параллельного добавления в корзину.
type ProbeResult struct {
	OrderNumbers []int64 `json:"order_numbers"`
	Duplicates   []int64 `json:"duplicates"`
	Failures     int     `json:"failures"`
}

// NewSequenceCommand создаёт группу команд sequence.
func NewSequenceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sequence",
		Short: "Inspect cart order numbers",
	}
	cmd.AddCommand(newSequenceNextCommand(rootOpts))
	cmd.AddCommand(newSequenceProbeCommand(rootOpts))
	return cmd
}

func newSequenceNextCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Show the order number the next cart item would get",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, ctx, closeFn, err := opts.connect(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer closeFn()

			n, err := client.AllocateOrderNumber(ctx, &emptypb.Empty{})
			if err != nil {
				return WrapExitError(ExitCommandError, "allocate order number", err)
			}
			p := opts.printer(cmd)
			if opts.Format == "json" {
				return p.JSON(map[string]int64{"order_number": n.GetValue()})
			}
			p.Line("%d", n.GetValue())
			return nil
		},
	}
}

func newSequenceProbeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProbeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Add one product to the cart concurrently and report duplicate order numbers",
		Long: `Probe runs --workers concurrent AddToCart calls for the same product.

With the optimistic allocator concurrent callers may observe the same maximum
and receive equal order numbers; the serialized allocator must never do so.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProbe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.ProductID, "product", "", "product id to add")
	cmd.Flags().IntVar(&opts.Workers, "workers", 8, "number of concurrent callers")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "exit with code 1 when duplicates are found")
	_ = cmd.MarkFlagRequired("product")

	return cmd
}

func runProbe(cmd *cobra.Command, opts *ProbeOptions) error {
	if opts.Workers < 1 {
		return NewExitError(ExitCommandError, "--workers must be >= 1")
	}

	client, ctx, closeFn, err := opts.connect(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer closeFn()

	result := probe(ctx, client, opts.ProductID, opts.Workers)

	p := opts.printer(cmd)
	if opts.Format == "json" {
		if err := p.JSON(result); err != nil {
			return err
		}
	} else {
		p.Line("order numbers: %v", result.OrderNumbers)
		p.Line("duplicates:    %v", result.Duplicates)
		p.Line("failures:      %d", result.Failures)
	}

	if opts.Strict && len(result.Duplicates) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d duplicate order numbers", len(result.Duplicates)))
	}
	return nil
}

func probe(ctx context.Context, client catalogv1.CatalogServiceClient, productID string, workers int) ProbeResult {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		result ProbeResult
	)

	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			item, err := client.AddToCart(ctx, wrapperspb.String(productID))

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failures++
				return
			}
			result.OrderNumbers = append(result.OrderNumbers, int64(item.GetFields()["orderNumber"].GetNumberValue()))
		}()
	}
	close(start)
	wg.Wait()

	sort.Slice(result.OrderNumbers, func(i, j int) bool { return result.OrderNumbers[i] < result.OrderNumbers[j] })
	result.Duplicates = duplicates(result.OrderNumbers)
	return result
}

// duplicates возвращает значения, встречающиеся больше одного раза, по одному разу.
func duplicates(sorted []int64) []int64 {
	out := []int64{}
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] && (len(out) == 0 || out[len(out)-1] != sorted[i]) {
			out = append(out, sorted[i])
		}
	}
	return out
}
