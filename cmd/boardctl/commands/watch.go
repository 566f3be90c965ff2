package commands

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

// WatchOptions configures the watch command.
type WatchOptions struct {
	URL          string
	BoardID      string
	TeamID       string
	UserID       string
	PingInterval time.Duration
}

// connectURL adds the board, team and user query parameters to the
// websocket URL.
func (o *WatchOptions) connectURL() (string, error) {
	u, err := url.Parse(o.URL)
	if err != nil {
		return "", fmt.Errorf("invalid websocket URL: %w", err)
	}

	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("websocket URL must use ws or wss, got %q", u.Scheme)
	}

	if o.BoardID == "" {
		return "", errors.New("--board is required")
	}

	q := u.Query()
	q.Set("boardId", o.BoardID)

	if o.TeamID != "" {
		q.Set("teamId", o.TeamID)
	}

	if o.UserID != "" {
		q.Set("userId", o.UserID)
	}

	u.RawQuery = q.Encode()

	return u.String(), nil
}

// NewWatchCommand creates the command printing every message pushed to a
// board's sessions.
func NewWatchCommand() *cobra.Command {
	opts := &WatchOptions{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Connect to a board over websocket and print every push",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			target, err := opts.connectURL()
			if err != nil {
				return err
			}

			return watch(cmd, target, opts.PingInterval)
		},
	}

	cmd.Flags().StringVar(&opts.URL, "url", "", "websocket API URL, e.g. wss://abc.execute-api.eu-west-1.amazonaws.com/prod")
	cmd.Flags().StringVar(&opts.BoardID, "board", "", "board ID to watch")
	cmd.Flags().StringVar(&opts.TeamID, "team", "", "team ID owning the board")
	cmd.Flags().StringVar(&opts.UserID, "user", "", "user ID to connect as")
	cmd.Flags().DurationVar(&opts.PingInterval, "ping", 5*time.Minute, "interval between keepalive pings (0 disables)")

	_ = cmd.MarkFlagRequired("url")

	return cmd
}

func watch(cmd *cobra.Command, target string, pingInterval time.Duration) error {
	ctx := cmd.Context()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", target, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	if pingInterval > 0 {
		go keepAlive(ctx, conn, pingInterval)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("websocket read failed: %w", err)
		}

		printf(cmd, "%s\n", data)
	}
}

// keepAlive sends relay pings so idle connections are not dropped by the
// gateway.
func keepAlive(ctx context.Context, conn *websocket.Conn, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"ping"}`)); err != nil {
				return
			}
		}
	}
}
