package cli

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	grpcsvc "github.com/vladislavdragonenkov/storefront/internal/service/grpc"
	"github.com/vladislavdragonenkov/storefront/internal/version"
	catalogv1 "github.com/vladislavdragonenkov/storefront/proto/catalog/v1"
)

const (
	defaultAddr    = "localhost:50051"
	defaultTimeout = 10 * time.Second
	envAddr        = "STOREFRONT_ADDR"
	envEmail       = "STOREFRONT_USER_EMAIL"
)

// lookupEnv подменяется в тестах.
var lookupEnv = os.Getenv

// ValidFormats — допустимые форматы вывода.
var ValidFormats = []string{"text", "json"}

// DialFunc открывает соединение с CatalogService.
type DialFunc func(addr string) (*grpc.ClientConn, error)

// RootOptions — глобальные флаги всех команд.
type RootOptions struct {
	Addr    string
	Email   string
	Format  string
	Timeout time.Duration
	Verbose bool

	dial DialFunc
}

// NewRootCommand создаёт корневую команду catalogctl.
func NewRootCommand() *cobra.Command {
	return newRootCommand(func(addr string) (*grpc.ClientConn, error) {
		return grpc.NewClient(addr,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithUserAgent(version.UserAgent("catalogctl")),
		)
	})
}

func newRootCommand(dial DialFunc) *cobra.Command {
	opts := &RootOptions{dial: dial}

	cmd := &cobra.Command{
		Use:   "catalogctl",
		Short: "Storefront catalog admin tool",
		Long:  "Command line client for the storefront CatalogService: products, cart, order numbers and the live catalog.",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.Verbose {
				log.SetLevel(log.DebugLevel)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Addr, "addr", envOr(envAddr, defaultAddr), "CatalogService gRPC address")
	cmd.PersistentFlags().StringVar(&opts.Email, "email", envOr(envEmail, ""), "acting user email (sent as "+grpcsvc.IdentityHeader+")")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", defaultTimeout, "per-request timeout")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewProductCommand(opts))
	cmd.AddCommand(NewCartCommand(opts))
	cmd.AddCommand(NewSequenceCommand(opts))
	cmd.AddCommand(NewCatalogCommand(opts))
	cmd.AddCommand(NewEventsCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}

// connect открывает клиент и контекст запроса с идентичностью пользователя.
// При streaming=true таймаут не ставится: поток живёт до отмены команды.
func (o *RootOptions) connect(parent context.Context, streaming bool) (catalogv1.CatalogServiceClient, context.Context, func(), error) {
	conn, err := o.dial(o.Addr)
	if err != nil {
		return nil, nil, nil, WrapExitError(ExitCommandError, "connect to "+o.Addr, err)
	}

	ctx, cancel := parent, context.CancelFunc(func() {})
	if !streaming && o.Timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, o.Timeout)
	}
	if email := strings.TrimSpace(o.Email); email != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, grpcsvc.IdentityHeader, email)
	}

	closeFn := func() {
		cancel()
		_ = conn.Close()
	}
	return catalogv1.NewCatalogServiceClient(conn), ctx, closeFn, nil
}

func (o *RootOptions) printer(cmd *cobra.Command) *Printer {
	return &Printer{Format: o.Format, Writer: cmd.OutOrStdout()}
}

func envOr(name, fallback string) string {
	if v := strings.TrimSpace(lookupEnv(name)); v != "" {
		return v
	}
	return fallback
}
