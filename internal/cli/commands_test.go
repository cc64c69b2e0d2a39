package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	grpcsvc "github.com/vladislavdragonenkov/storefront/internal/service/grpc"
	"github.com/vladislavdragonenkov/storefront/internal/service/identity"
	"github.com/vladislavdragonenkov/storefront/internal/service/mirror"
	"github.com/vladislavdragonenkov/storefront/internal/service/sequence"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	catalogv1 "github.com/vladislavdragonenkov/storefront/proto/catalog/v1"
)

const testEmail = "chef@example.com"

type cliHarness struct {
	dial  DialFunc
	view  *mirror.Mirror
	image string
}

func newCLIHarness(t *testing.T) *cliHarness {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	entry := logger.WithField("component", "cli-test")

	docs := memory.NewDocumentStore()
	objects := memory.NewObjectStore("")
	allocator := sequence.NewAllocator(docs, sequence.WithMode(sequence.ModeSerialized), sequence.WithLogger(entry))

	view, err := mirror.Subscribe(context.Background(), docs, mirror.WithLogger(entry))
	require.NoError(t, err)
	t.Cleanup(view.Unsubscribe)

	service := grpcsvc.NewCatalogService(grpcsvc.Dependencies{
		Catalog:   catalog.NewService(docs, objects, catalog.WithLogger(entry)),
		Cart:      cart.NewService(docs, allocator, identity.ContextProvider{}, entry, nil),
		Allocator: allocator,
		Products:  docs,
		View:      view,
	}, entry)

	listener := bufconn.Listen(1024 * 1024)
	server := grpc.NewServer(
		grpc.UnaryInterceptor(grpcsvc.IdentityUnaryInterceptor()),
		grpc.StreamInterceptor(grpcsvc.IdentityStreamInterceptor()),
	)
	catalogv1.RegisterCatalogServiceServer(server, service)
	go func() { _ = server.Serve(listener) }()
	t.Cleanup(server.Stop)

	image := filepath.Join(t.TempDir(), "pho.png")
	require.NoError(t, os.WriteFile(image, []byte("IMG1"), 0o600))

	return &cliHarness{
		dial: func(string) (*grpc.ClientConn, error) {
			return grpc.NewClient("passthrough:///bufnet",
				grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return listener.Dial() }),
				grpc.WithTransportCredentials(insecure.NewCredentials()),
			)
		},
		view:  view,
		image: image,
	}
}

func (h *cliHarness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand(h.dial)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *cliHarness) createProduct(t *testing.T, title string) string {
	t.Helper()

	out, err := h.run(t, "--email", testEmail, "--format", "json",
		"product", "create", "--title", title, "--price", "12.5", "--category", "Soup", "--image", h.image)
	require.NoError(t, err)

	var product map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &product))
	id, _ := product["id"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestProductCreateAndDelete(t *testing.T) {
	h := newCLIHarness(t)

	out, err := h.run(t, "--email", testEmail,
		"product", "create", "--title", "Pho", "--price", "12.5", "--category", "Soup", "--image", h.image)
	require.NoError(t, err)
	assert.Contains(t, out, "title:")
	assert.Contains(t, out, "Pho")
	assert.Contains(t, out, testEmail)

	_, err = h.run(t, "--email", testEmail,
		"product", "create", "--title", "Pho", "--price", "3", "--image", h.image)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "AlreadyExists")

	id := h.createProduct(t, "Banh mi")
	out, err = h.run(t, "product", "delete", id)
	require.NoError(t, err)
	assert.Equal(t, "deleted "+id+"\n", out)
}

func TestProductCreateWithoutIdentity(t *testing.T) {
	h := newCLIHarness(t)

	_, err := h.run(t, "product", "create", "--title", "Pho", "--price", "1", "--image", h.image)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unauthenticated")
}

func TestProductCreateMissingImage(t *testing.T) {
	h := newCLIHarness(t)

	_, err := h.run(t, "--email", testEmail,
		"product", "create", "--title", "Pho", "--price", "1", "--image", filepath.Join(t.TempDir(), "absent.png"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "read image")
}

func TestCartAddAndSequenceNext(t *testing.T) {
	h := newCLIHarness(t)
	id := h.createProduct(t, "Pho")

	out, err := h.run(t, "sequence", "next")
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)

	out, err = h.run(t, "--email", testEmail, "cart", "add", id)
	require.NoError(t, err)
	assert.Contains(t, out, "orderNumber:")
	assert.Contains(t, out, "email:")

	out, err = h.run(t, "--format", "json", "sequence", "next")
	require.NoError(t, err)
	assert.JSONEq(t, `{"order_number":2}`, out)

	_, err = h.run(t, "--email", testEmail, "cart", "add", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NotFound")
}

func TestSequenceProbeSerialized(t *testing.T) {
	h := newCLIHarness(t)
	id := h.createProduct(t, "Pho")

	out, err := h.run(t, "--email", testEmail, "--format", "json",
		"sequence", "probe", "--product", id, "--workers", "6", "--strict")
	require.NoError(t, err)

	var result ProbeResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6}, result.OrderNumbers)
	assert.Empty(t, result.Duplicates)
	assert.Zero(t, result.Failures)
}

func TestSequenceProbeInvalidWorkers(t *testing.T) {
	h := newCLIHarness(t)

	_, err := h.run(t, "sequence", "probe", "--product", "p-1", "--workers", "0")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCatalogSearchAndWatch(t *testing.T) {
	h := newCLIHarness(t)
	h.createProduct(t, "Pho")
	h.createProduct(t, "Banh mi")

	require.Eventually(t, func() bool {
		snapshot, ok := h.view.Latest()
		if !ok || snapshot.Len() != 2 {
			return false
		}
		for _, p := range snapshot.Products() {
			if p.Image == "" {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)

	out, err := h.run(t, "catalog", "search", "--title-contains", "PHO")
	require.NoError(t, err)
	assert.Contains(t, out, "Pho")
	assert.NotContains(t, out, "Banh mi")

	out, err = h.run(t, "catalog", "watch", "--count", "1")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "# version"))
	assert.Contains(t, out, "Banh mi")
}
