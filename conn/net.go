package conn

import (
	"context"
	"crypto/tls"
	"net"

	"github.com/mongowire/mongowire/internal"
	"github.com/mongowire/mongowire/model"
)

// NetDialer creates a net.Conn.
type NetDialer func(ctx context.Context, network, address string) (net.Conn, error)

func dialNet(ctx context.Context, network, address string) (net.Conn, error) {
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.SetKeepAlive(true)
	}

	return conn, nil
}

// wrapTLS upgrades the transport to TLS, verifying against the host
// part of the address unless the config already names a server.
func wrapTLS(ctx context.Context, transport net.Conn, addr model.Addr, cfg *tls.Config) (net.Conn, error) {
	if cfg.ServerName == "" {
		cfg = cfg.Clone()
		host := addr.String()
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		cfg.ServerName = host
	}

	client := tls.Client(transport, cfg)

	errChan := make(chan error, 1)
	go func() {
		errChan <- client.Handshake()
	}()

	select {
	case err := <-errChan:
		if err != nil {
			transport.Close()
			return nil, internal.WrapError(err, "failed TLS handshake")
		}
	case <-ctx.Done():
		transport.Close()
		return nil, ctx.Err()
	}

	return client, nil
}
