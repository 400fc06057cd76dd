// Command taskctl is a terminal client for the tasker API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/phrazzld/tasker-api/pkg/client"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	server    string
	tokenFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "taskctl",
		Short:         "Manage your tasks from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	server := os.Getenv("TASKER_URL")
	if server == "" {
		server = "http://localhost:8080"
	}
	root.PersistentFlags().StringVar(&opts.server, "server", server, "API base URL (env TASKER_URL)")
	root.PersistentFlags().StringVar(&opts.tokenFile, "token-file", "", "session file (default: user config dir)")

	root.AddCommand(
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newTasksCmd(opts),
		newTagsCmd(opts),
	)
	return root
}

// client builds an API client backed by the session file.
func (o *rootOptions) client() (*client.Client, error) {
	path := o.tokenFile
	if path == "" {
		var err error
		if path, err = client.DefaultTokenPath(); err != nil {
			return nil, err
		}
	}
	return client.New(o.server, client.WithTokenStore(client.NewFileTokenStore(path)))
}
