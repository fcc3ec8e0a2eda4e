// Command plangraph serves and manages the scheduling dependency graph
// between projects and tasks.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/plangraph/internal/client"
	"github.com/alfredjeanlab/plangraph/internal/ui"
)

var (
	serverAddr   string
	httpURL      string
	transport    string
	outputFormat string
	actor        string
	authToken    string

	depClient client.DependencyClient
)

func defaultActor() string {
	if s := os.Getenv("PLANGRAPH_ACTOR"); s != "" {
		return s
	}
	out, err := exec.Command("git", "config", "user.name").Output()
	if err == nil {
		name := strings.TrimSpace(string(out))
		if name != "" {
			return name
		}
	}
	return "unknown"
}

func defaultHTTPURL() string {
	if s := os.Getenv("PLANGRAPH_HTTP_URL"); s != "" {
		return s
	}
	if u := activeRemote().URL; u != "" {
		return u
	}
	return "http://localhost:8080"
}

func defaultServer() string {
	if s := os.Getenv("PLANGRAPH_SERVER"); s != "" {
		return s
	}
	if a := activeRemote().GRPCAddr; a != "" {
		return a
	}
	return "localhost:9090"
}

func defaultToken() string {
	if s := os.Getenv("PLANGRAPH_TOKEN"); s != "" {
		return s
	}
	return activeRemote().Token
}

// connect builds the client for the selected transport.
func connect() (client.DependencyClient, error) {
	switch transport {
	case "http":
		c := client.NewHTTPClient(httpURL, authToken)
		c.SetActor(actor)
		return c, nil
	case "grpc":
		c, err := client.NewGRPCClient(serverAddr, authToken)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to server: %w", err)
		}
		c.SetActor(actor)
		return c, nil
	}
	return nil, fmt.Errorf("unknown transport %q (must be http or grpc)", transport)
}

// noClient overrides the root PersistentPreRunE for commands that work
// locally and never talk to a server.
func noClient(*cobra.Command, []string) error { return nil }

var rootCmd = &cobra.Command{
	Use:           "plangraph <command>",
	Short:         "Dependency graph integrity engine for projects and tasks",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(outputFormat); err != nil {
			return err
		}
		c, err := connect()
		if err != nil {
			return err
		}
		depClient = c
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if depClient != nil {
			depClient.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&httpURL, "http-url", defaultHTTPURL(), "HTTP server URL")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", defaultServer(), "gRPC server address")
	rootCmd.PersistentFlags().StringVar(&transport, "transport", "http", "transport protocol (http or grpc)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "o", "text", "output format (text, json or yaml)")
	rootCmd.PersistentFlags().StringVar(&actor, "actor", defaultActor(), "actor recorded against writes")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", defaultToken(), "bearer token for the server")

	rootCmd.AddGroup(
		&cobra.Group{ID: "graph", Title: "Dependencies:"},
		&cobra.Group{ID: "views", Title: "Views:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Dependencies
	rootCmd.AddCommand(depCmd)
	rootCmd.AddCommand(checkCmd)

	// Views
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(actorsCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(entityCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(remoteCmd)
}

// errCheckFailed makes check exit with status 2 after printing its report.
var errCheckFailed = errors.New("integrity check failed")

func main() {
	ui.Setup()
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errCheckFailed) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, describeError(err))
		os.Exit(1)
	}
}
