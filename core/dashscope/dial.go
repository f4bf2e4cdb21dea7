package dashscope

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
)

// Dial opens the persistent duplex connection. The credential travels as a
// bearer header on the upgrade request; the browser deployments of this
// protocol carry it as a query parameter that an edge relay rewrites into the
// same header.
func Dial(ctx context.Context, endpoint string, credentials *Credentials) (*websocket.Conn, error) {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	apiKey, err := credentials.APIKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve api key: %w", err)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint,
		http.Header{"Authorization": {"bearer " + apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to %s: %w", endpoint, err)
	}

	return conn, nil
}
