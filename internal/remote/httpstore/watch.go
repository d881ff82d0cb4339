package httpstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/fieldops/fieldsync/internal/core/remote"
)

// changeMessage is one update on a document watch feed.
type changeMessage struct {
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Subscribe opens a websocket watch on one document and forwards every
// change to onUpdate on a dedicated reader goroutine. The returned
// cancel function closes the feed and is safe to call more than once.
func (c *Client) Subscribe(ctx context.Context, collection, id string, onUpdate remote.UpdateHandler) (func(), error) {
	wsURL := httpToWS(c.baseURL) + fmt.Sprintf("/v1/%s/%s/watch", collection, id)

	dialOpts := &websocket.DialOptions{}
	if c.token != "" {
		dialOpts.HTTPHeader = map[string][]string{
			"Authorization": {"Bearer " + c.token},
		}
	}

	conn, _, err := websocket.Dial(ctx, wsURL, dialOpts)
	if err != nil {
		return nil, fmt.Errorf("watch %s/%s: dial: %w", collection, id, err)
	}

	readCtx, cancelRead := context.WithCancel(context.WithoutCancel(ctx))

	go func() {
		for {
			var msg changeMessage
			if err := wsjson.Read(readCtx, conn, &msg); err != nil {
				if readCtx.Err() == nil {
					c.log.Warn().Err(err).
						Str("collection", collection).
						Str("id", id).
						Msg("watch feed closed")
				}
				return
			}
			if onUpdate != nil {
				onUpdate(msg.Data, msg.UpdatedAt)
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			cancelRead()
			_ = conn.Close(websocket.StatusNormalClosure, "unsubscribed")
		})
	}
	return cancel, nil
}

func httpToWS(baseURL string) string {
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(baseURL, "https://")
	case strings.HasPrefix(baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(baseURL, "http://")
	default:
		return baseURL
	}
}
