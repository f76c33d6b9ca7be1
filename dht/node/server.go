// Package node implements a networked, durable DHT peer: a TCP/Unix+TLS
// server backed by a storage/kv.DB, decoding one request per connection
// and dispatching it to Get/Put handling.
package node

import (
	"bytes"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/prefixhashtree/pht-go/cryptoutil"
	"github.com/prefixhashtree/pht-go/dht"
	"github.com/prefixhashtree/pht-go/logging"
	"github.com/prefixhashtree/pht-go/storage/kv"
)

// ServerAddress describes how a Server listens: a TCP connection
// (always TLS, requiring a certificate and key) or a Unix socket.
type ServerAddress struct {
	// Address is a url: scheme://host, e.g. "tcp://0.0.0.0:38080" or
	// "unix:///var/run/phtnode.sock".
	Address string `toml:"address"`
	// TLSCertPath and TLSKeyPath are required for a tcp:// Address.
	TLSCertPath string `toml:"cert,omitempty"`
	TLSKeyPath  string `toml:"key,omitempty"`
}

func (a ServerAddress) resolveAndListen() (net.Listener, *tls.Config, error) {
	u, err := url.Parse(a.Address)
	if err != nil {
		return nil, nil, err
	}
	switch u.Scheme {
	case "tcp":
		cer, err := tls.LoadX509KeyPair(a.TLSCertPath, a.TLSKeyPath)
		if err != nil {
			return nil, nil, err
		}
		tlsConfig := &tls.Config{Certificates: []tls.Certificate{cer}}
		tcpAddr, err := net.ResolveTCPAddr("tcp", u.Host)
		if err != nil {
			return nil, nil, err
		}
		ln, err := net.ListenTCP("tcp", tcpAddr)
		if err != nil {
			return nil, nil, err
		}
		return ln, tlsConfig, nil
	case "unix":
		unixAddr, err := net.ResolveUnixAddr("unix", u.Path)
		if err != nil {
			return nil, nil, err
		}
		ln, err := net.ListenUnix("unix", unixAddr)
		if err != nil {
			return nil, nil, err
		}
		return ln, nil, nil
	default:
		return nil, nil, &net.AddrError{Err: "unknown network type", Addr: a.Address}
	}
}

// DefaultSweepInterval is how often StartExpirySweep walks the whole
// store looking for expired values, absent an explicit interval.
const DefaultSweepInterval = 10 * time.Minute

// Server is a single DHT peer's network-facing side: it accepts
// connections, decodes one request per connection, and serves it out of
// db under a per-connection deadline.
type Server struct {
	db     kv.DB
	logger *logging.Logger
	now    func() time.Time

	mu       sync.Mutex // serializes read-modify-write on a single address's value list
	stop     chan struct{}
	waitStop sync.WaitGroup
}

// NewServer builds a Server storing values in db and logging through
// logger.
func NewServer(db kv.DB, logger *logging.Logger) *Server {
	return &Server{
		db:     db,
		logger: logger,
		now:    time.Now,
		stop:   make(chan struct{}),
	}
}

// ListenAndHandle starts accepting connections at addr in a background
// goroutine.
func (s *Server) ListenAndHandle(addr ServerAddress) error {
	ln, tlsConfig, err := addr.resolveAndListen()
	if err != nil {
		return err
	}
	s.waitStop.Add(1)
	go func() {
		defer s.waitStop.Done()
		s.logger.Info("dht node listening", "address", addr.Address)
		s.acceptLoop(ln, tlsConfig)
	}()
	return nil
}

func (s *Server) acceptLoop(ln net.Listener, tlsConfig *tls.Config) {
	defer ln.Close()
	go func() {
		<-s.stop
		if l, ok := ln.(interface{ SetDeadline(time.Time) error }); ok {
			l.SetDeadline(time.Now())
		}
	}()

	var wait sync.WaitGroup
	for {
		select {
		case <-s.stop:
			wait.Wait()
			return
		default:
		}
		conn, err := ln.Accept()
		if err != nil {
			if opErr, ok := err.(*net.OpError); ok && opErr.Timeout() {
				continue
			}
			s.logger.Error("accept failed", "err", err)
			continue
		}
		if _, ok := ln.(*net.TCPListener); ok {
			conn = tls.Server(conn, tlsConfig)
		}
		wait.Add(1)
		go func() {
			defer wait.Done()
			s.handleConn(conn)
		}()
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	reqID := requestID()

	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, conn, 1<<20); err != nil && err != io.EOF {
		s.logger.Error("read failed", "request", reqID, "address", conn.RemoteAddr().String(), "err", err)
		return
	}

	var req request
	if err := json.Unmarshal(buf.Bytes(), &req); err != nil {
		s.logger.Warn("malformed request", "request", reqID, "address", conn.RemoteAddr().String(), "err", err)
		return
	}

	var resp interface{}
	switch req.Type {
	case GetType:
		resp = s.handleGet(reqID, req.Body)
	case PutType:
		resp = s.handlePut(reqID, req.Body)
	default:
		resp = getResponse{OK: false}
	}

	out, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("marshal response failed", "request", reqID, "err", err)
		return
	}
	if _, err := conn.Write(out); err != nil {
		s.logger.Error("write failed", "request", reqID, "address", conn.RemoteAddr().String(), "err", err)
	}
}

// requestID returns a short hex tag for correlating a connection's log
// lines. It doesn't need to be unforgeable, only distinct enough to
// de-interleave concurrent connections in a log stream, so a truncated
// cryptoutil.MakeRand digest is plenty.
func requestID() string {
	r, err := cryptoutil.MakeRand()
	if err != nil {
		return "unknown"
	}
	return hex.EncodeToString(r[:4])
}

// StartExpirySweep launches a background goroutine that runs SweepExpired
// against the whole store every interval (DefaultSweepInterval if
// interval <= 0), so an address nobody ever Gets again still has its
// expired values reclaimed instead of lingering until, if ever, ordinary
// traffic touches it.
func (s *Server) StartExpirySweep(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	s.waitStop.Add(1)
	go func() {
		defer s.waitStop.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-t.C:
				scanned, removed, err := s.SweepExpired(nil)
				if err != nil {
					s.logger.Error("expiry sweep failed", "err", err)
					continue
				}
				if removed > 0 {
					s.logger.Info("expiry sweep reclaimed values", "scanned", scanned, "removed", removed)
				}
			}
		}
	}()
}

// SweepExpired walks every address whose stored key shares prefix (nil
// scans the whole store) in key order, dropping any value past its TTL.
// It reports how many addresses it visited and how many values it
// removed across all of them. Unlike a Get's lazy per-address sweep this
// runs proactively, so it is the only path that reclaims an address that
// is never looked up again.
func (s *Server) SweepExpired(prefix []byte) (scanned, removed int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it := s.db.NewIterator(kv.BytesPrefix(prefix))
	defer it.Release()

	batch := s.db.NewBatch()
	now := s.now()
	dirty := false
	for it.Next() {
		scanned++
		var values []wireValue
		if err := json.Unmarshal(it.Value(), &values); err != nil {
			continue
		}
		kept := values[:0:0]
		for _, w := range values {
			if !w.Expire.IsZero() && now.After(w.Expire) {
				continue
			}
			kept = append(kept, w)
		}
		if len(kept) == len(values) {
			continue
		}
		removed += len(values) - len(kept)
		dirty = true
		key := append([]byte(nil), it.Key()...)
		if len(kept) == 0 {
			batch.Delete(key)
			continue
		}
		raw, err := json.Marshal(kept)
		if err != nil {
			continue
		}
		batch.Put(key, raw)
	}
	if err := it.Error(); err != nil {
		return scanned, removed, err
	}
	if !dirty {
		return scanned, removed, nil
	}
	if err := s.db.Write(batch); err != nil {
		return scanned, removed, err
	}
	return scanned, removed, nil
}

// storedKey maps a dht.Address onto its storage/kv.DB key.
func storedKey(addr dht.Address) []byte {
	return addr[:]
}

func (s *Server) loadValues(addr dht.Address) ([]wireValue, error) {
	raw, err := s.db.Get(storedKey(addr))
	if err != nil {
		if err == s.db.ErrNotFound() {
			return nil, nil
		}
		return nil, err
	}
	var values []wireValue
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, err
	}
	return values, nil
}

func (s *Server) storeValues(addr dht.Address, values []wireValue) error {
	raw, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return s.db.Put(storedKey(addr), raw)
}

func (s *Server) handleGet(reqID string, body json.RawMessage) getResponse {
	var req getRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return getResponse{OK: false}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.loadValues(req.Addr)
	if err != nil {
		s.logger.Error("get failed", "request", reqID, "err", err)
		return getResponse{OK: false}
	}

	now := s.now()
	kept := stored[:0:0]
	for _, w := range stored {
		if !w.Expire.IsZero() && now.After(w.Expire) {
			continue
		}
		kept = append(kept, w)
	}
	if len(kept) != len(stored) {
		if err := s.storeValues(req.Addr, kept); err != nil {
			s.logger.Error("expiry sweep failed", "request", reqID, "err", err)
		}
	}
	return getResponse{OK: true, Values: kept}
}

func (s *Server) handlePut(reqID string, body json.RawMessage) putResponse {
	var req putRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return putResponse{OK: false}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.loadValues(req.Addr)
	if err != nil {
		s.logger.Error("put failed", "request", reqID, "err", err)
		return putResponse{OK: false}
	}
	stored = append(stored, req.Value)
	if err := s.storeValues(req.Addr, stored); err != nil {
		s.logger.Error("put failed", "request", reqID, "err", err)
		return putResponse{OK: false}
	}
	return putResponse{OK: true}
}

// Shutdown stops accepting new connections and waits for the listener
// goroutines started by ListenAndHandle to return.
func (s *Server) Shutdown() error {
	close(s.stop)
	s.waitStop.Wait()
	return nil
}
