package database

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// NewNATSConnection connect to NATS, d.RetryCount bounds the first connect, reconnects are unbounded afterwards
func NewNATSConnection(ctx context.Context, d Connection, name string) (*nats.Conn, error) {
	var nc *nats.Conn
	err := WithRetry(ctx, d, fmt.Sprintf("NATS[%s]", d.ConnectStr), func() error {
		var err error
		nc, err = nats.Connect(d.ConnectStr,
			nats.Name(name),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
			nats.Timeout(5*time.Second),
		)
		return err
	})
	if err != nil {
		return nil, err
	}
	return nc, nil
}
