package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/plangraph/internal/events"
	"github.com/alfredjeanlab/plangraph/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow dependency changes as they happen",
	Long: `Follow dependency changes as they happen.

With a NATS URL (--nats, PLANGRAPH_NATS_URL or the active remote) the command
subscribes to the bus directly. Otherwise it follows the server's HTTP event
stream and resumes from the last seen event after a disconnect.`,
	GroupID:           "views",
	Args:              cobra.NoArgs,
	PersistentPreRunE: noClient,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(outputFormat); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		natsURL, _ := cmd.Flags().GetString("nats")
		if natsURL == "" {
			natsURL = os.Getenv("PLANGRAPH_NATS_URL")
		}
		if natsURL == "" {
			natsURL = activeRemote().NATSURL
		}
		out := cmd.OutOrStdout()
		if natsURL != "" {
			return watchNATS(ctx, natsURL, out)
		}
		return watchStream(ctx, httpURL, authToken, out)
	},
}

// watchNATS prints every message on the plangraph subjects until ctx ends.
func watchNATS(ctx context.Context, natsURL string, out io.Writer) error {
	sub, err := events.NewNATSSubscriber(natsURL,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats: disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("nats: reconnected")
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Subscribe(events.TopicAll)
	if err != nil {
		return fmt.Errorf("subscribing to events: %w", err)
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			printChange(out, msg.Topic, msg.Data)
		}
	}
}

// watchStream follows GET /v1/events/stream, reconnecting with
// Last-Event-ID until ctx ends.
func watchStream(ctx context.Context, baseURL, token string, out io.Writer) error {
	lastID := ""
	backoff := time.Second
	for {
		err := followStream(ctx, baseURL, token, &lastID, out)
		if ctx.Err() != nil {
			return nil
		}
		slog.Warn("event stream interrupted, reconnecting", "err", err, "in", backoff)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

// followStream reads one SSE connection, updating lastID as events arrive.
func followStream(ctx context.Context, baseURL, token string, lastID *string, out io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/v1/events/stream", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if *lastID != "" {
		req.Header.Set("Last-Event-ID", *lastID)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("event stream: HTTP %d", resp.StatusCode)
	}
	return readSSE(resp.Body, func(id, topic, data string) {
		if id != "" {
			*lastID = id
		}
		printChange(out, topic, []byte(data))
	})
}

// readSSE parses a text/event-stream body, calling fn once per event.
// Comment lines (heartbeats) are skipped.
func readSSE(r io.Reader, fn func(id, topic, data string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	var id, topic string
	var data []string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if len(data) > 0 {
				fn(id, topic, strings.Join(data, "\n"))
			}
			id, topic, data = "", "", nil
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "id:"):
			id = strings.TrimSpace(strings.TrimPrefix(line, "id:"))
		case strings.HasPrefix(line, "event:"):
			topic = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return io.ErrUnexpectedEOF
}

// clock is swapped in tests.
var clock = time.Now

// printChange writes one change, as a JSON line for the structured
// formats and as a summary otherwise.
func printChange(w io.Writer, topic string, data []byte) {
	if outputFormat != "text" {
		fmt.Fprintf(w, "%s\n", data)
		return
	}
	var ev events.DependencyChanged
	if err := json.Unmarshal(data, &ev); err != nil || ev.Dependency == nil {
		fmt.Fprintf(w, "%s %s\n", ui.RenderMuted(topic), data)
		return
	}
	d := ev.Dependency
	verb := strings.TrimPrefix(topic, "plangraph.dependency.")
	line := fmt.Sprintf("%s %-7s %s -%s-> %s %s",
		ui.RenderMuted(clock().Format("15:04:05")), verb, d.From, d.Kind, d.To, ui.RenderMuted(d.ID))
	if ev.Actor != "" {
		line += " by " + ev.Actor
	}
	if len(ev.Changes) > 0 {
		changes := make([]string, 0, len(ev.Changes))
		for k, v := range ev.Changes {
			changes = append(changes, fmt.Sprintf("%s=%v", k, v))
		}
		sort.Strings(changes)
		line += " (" + strings.Join(changes, ", ") + ")"
	}
	fmt.Fprintln(w, line)
}

func init() {
	watchCmd.Flags().String("nats", "", "NATS URL to subscribe to (default: follow the HTTP stream)")
}
