package client

import (
	"context"
	"net/url"
	"strings"

	"github.com/ZilDuck/marketplace-settlement/internal/entity"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WatchActivity follows the daemon's activity stream, calling fn for every
// committed action until ctx ends, fn fails or the daemon closes the stream.
// An empty asset follows every asset.
func (c *Client) WatchActivity(ctx context.Context, asset string, fn func(entity.Action) error) error {
	endpoint := "ws" + strings.TrimPrefix(c.url, "http") + "/ws/activity"
	if asset != "" {
		endpoint += "?asset=" + url.QueryEscape(asset)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		zap.L().With(zap.Error(err), zap.String("url", endpoint)).Error("Client: Failed to open activity stream")
		return err
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		var action entity.Action
		if err := conn.ReadJSON(&action); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				return nil
			}
			return err
		}
		if err := fn(action); err != nil {
			return err
		}
	}
}
