package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/varejo/internal/client/client"
	"github.com/dmitrijs2005/varejo/internal/client/config"
	"github.com/dmitrijs2005/varejo/internal/client/session"
	"github.com/dmitrijs2005/varejo/internal/logging"
)

type App struct {
	config *config.Config
	client client.Client
	store  *session.Store
	logger logging.Logger
	reader *bufio.Reader
	out    io.Writer
	errOut io.Writer
}

// NewApp connects to the configured server. Nothing is sent until a command
// runs.
func NewApp(c *config.Config, l logging.Logger) (*App, error) {
	apiClient, err := client.NewRetailClient(c.ServerEndpointAddr, c.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	return newApp(c, apiClient, l, os.Stdin, os.Stdout, os.Stderr), nil
}

func newApp(c *config.Config, apiClient client.Client, l logging.Logger, in io.Reader, out, errOut io.Writer) *App {
	return &App{
		config: c,
		client: apiClient,
		store:  session.NewStore(apiClient, c.SessionDir, c.WatchRetryInterval, l),
		logger: l,
		reader: bufio.NewReader(in),
		out:    out,
		errOut: errOut,
	}
}

// Run executes the command line in args and releases the connection.
func (a *App) Run(ctx context.Context, args []string) error {
	defer a.client.Close()

	root := NewRootCommand(a)
	root.SetArgs(args)
	root.SetOut(a.out)
	root.SetErr(a.errOut)
	return root.ExecuteContext(ctx)
}

func (a *App) printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, string(b))
	return err
}
