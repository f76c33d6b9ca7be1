// Package client implements dht.Interface over the wire protocol served
// by dht/node.Server: one dialed connection per operation, request
// written, response read.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/url"
	"time"

	"github.com/prefixhashtree/pht-go/dht"
)

// Client dials addr fresh for every Get/Put, matching the server's
// one-request-per-connection contract.
type Client struct {
	// Addr is the node's address, e.g. "tcp://host:38080" or
	// "unix:///var/run/phtnode.sock".
	Addr string
	// InsecureSkipVerify disables TLS certificate verification for a
	// tcp:// Addr; only ever set for tests and local development.
	InsecureSkipVerify bool
	// DialTimeout bounds how long dialing may take, and separately how
	// long the request/response round trip on the dialed connection may
	// take. Zero selects a five-second default, matching dht/node.Server's
	// own per-connection deadline.
	DialTimeout time.Duration
}

var _ dht.Interface = (*Client)(nil)

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	u, err := url.Parse(c.Addr)
	if err != nil {
		return nil, err
	}
	timeout := c.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	dialer := &net.Dialer{Timeout: timeout}
	switch u.Scheme {
	case "tcp":
		return tls.DialWithDialer(dialer, "tcp", u.Host, &tls.Config{InsecureSkipVerify: c.InsecureSkipVerify})
	case "unix":
		return dialer.DialContext(ctx, "unix", u.Path)
	default:
		return nil, errors.New("dht/client: unknown network scheme " + u.Scheme)
	}
}

// roundTrip dials, writes req, reads the full response body, and decodes
// it into out. It runs on the caller's goroutine but is always invoked
// from a freshly spawned one by Get/Put, keeping dht.Interface's
// asynchronous contract.
func (c *Client) roundTrip(ctx context.Context, reqType int, body interface{}, out interface{}) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	timeout := c.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	conn.SetDeadline(time.Now().Add(timeout))

	raw, err := marshalRequest(reqType, body)
	if err != nil {
		return err
	}
	if _, err := conn.Write(raw); err != nil {
		return err
	}
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		cw.CloseWrite()
	}

	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, conn, 1<<20); err != nil && err != io.EOF {
		return err
	}
	return json.Unmarshal(buf.Bytes(), out)
}

// Get implements dht.Interface. The round trip runs in its own goroutine
// so Get always returns immediately, per the interface's asynchronous
// contract.
func (c *Client) Get(ctx context.Context, addr dht.Address, onValue dht.PerValue, done dht.GetDone, filter dht.Filter) {
	go func() {
		var resp getResponse
		err := c.roundTrip(ctx, GetType, getRequest{Addr: addr}, &resp)
		if err != nil || !resp.OK {
			if done != nil {
				done(false)
			}
			return
		}
		for _, w := range resp.Values {
			select {
			case <-ctx.Done():
				if done != nil {
					done(false)
				}
				return
			default:
			}
			v := fromWire(w)
			if filter != nil && !filter(v.UserType) {
				continue
			}
			if onValue != nil && !onValue(v) {
				break
			}
		}
		if done != nil {
			done(true)
		}
	}()
}

// Put implements dht.Interface.
func (c *Client) Put(ctx context.Context, addr dht.Address, v dht.Value, done dht.PutDone) {
	go func() {
		var resp putResponse
		err := c.roundTrip(ctx, PutType, putRequest{Addr: addr, Value: toWire(v)}, &resp)
		ok := err == nil && resp.OK
		if done != nil {
			done(ok)
		}
	}()
}

// Hash implements dht.Interface using the same digest dht/memory uses,
// so a Client and an in-process dht/memory.DHT address prefixes
// identically for tests that compare the two.
func (c *Client) Hash(bits []byte, nbits int) dht.Address {
	return hashBits(bits, nbits)
}
