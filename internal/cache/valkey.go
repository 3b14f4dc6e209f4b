package cache

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

// ValkeyProvider implements Provider against a Valkey/Redis-compatible server
// speaking RESP. Connections are opened per call: the console's cache traffic
// is a handful of small lookups per poll cycle, not enough to justify a pool.
type ValkeyProvider struct {
	cfg ValkeyConfig
}

// ValkeyConfig holds connection parameters for the Valkey server.
type ValkeyConfig struct {
	Addr         string
	Username     string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxRetries   int
	TLS          bool
}

// NewValkeyProvider validates the configuration and pings the target so that
// bad credentials or connectivity fail at boot rather than on first lookup.
func NewValkeyProvider(cfg ValkeyConfig) (*ValkeyProvider, error) {
	if cfg.Addr == "" {
		return nil, errors.New("valkey addr is required")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 500 * time.Millisecond
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 500 * time.Millisecond
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}

	p := &ValkeyProvider{cfg: cfg}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := p.ping(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// Get fetches bytes by key, returning ErrCacheMiss when the key is absent.
func (p *ValkeyProvider) Get(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := p.withConn(ctx, func(c *respConn) error {
		r, err := c.do([]byte("GET"), []byte(key))
		if err != nil {
			return err
		}
		switch r.kind {
		case respNil:
			return ErrCacheMiss
		case respBulk:
			payload = r.data
			return nil
		default:
			return fmt.Errorf("unexpected GET reply %c", r.kind)
		}
	})
	return payload, err
}

// Set stores bytes with the provided TTL; ttl <= 0 means no expiry.
func (p *ValkeyProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return p.withConn(ctx, func(c *respConn) error {
		r, err := c.do(setArgs(key, value, ttl)...)
		if err != nil {
			return err
		}
		if r.kind != respSimple || string(r.data) != "OK" {
			return fmt.Errorf("unexpected SET reply: %s", r.data)
		}
		return nil
	})
}

// SetNX stores the value only if the key does not already exist.
func (p *ValkeyProvider) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	var stored bool
	err := p.withConn(ctx, func(c *respConn) error {
		args := append(setArgs(key, value, ttl), []byte("NX"))
		r, err := c.do(args...)
		if err != nil {
			return err
		}
		switch r.kind {
		case respSimple:
			stored = true
			return nil
		case respNil:
			stored = false
			return nil
		default:
			return fmt.Errorf("unexpected SET NX reply %c", r.kind)
		}
	})
	return stored, err
}

// Del removes a key.
func (p *ValkeyProvider) Del(ctx context.Context, key string) error {
	return p.withConn(ctx, func(c *respConn) error {
		_, err := c.do([]byte("DEL"), []byte(key))
		return err
	})
}

// Close is a no-op: the provider holds no persistent connections.
func (p *ValkeyProvider) Close() error { return nil }

func (p *ValkeyProvider) ping(ctx context.Context) error {
	return p.withConn(ctx, func(c *respConn) error {
		r, err := c.do([]byte("PING"))
		if err != nil {
			return err
		}
		if r.kind != respSimple || string(r.data) != "PONG" {
			return fmt.Errorf("unexpected PING reply: %s", r.data)
		}
		return nil
	})
}

func setArgs(key string, value []byte, ttl time.Duration) [][]byte {
	args := [][]byte{[]byte("SET"), []byte(key), value}
	if ttl > 0 {
		args = append(args, []byte("PX"), []byte(strconv.FormatInt(ttl.Milliseconds(), 10)))
	}
	return args
}

// withConn dials, authenticates, runs fn and closes. Timeouts and transient
// network errors are retried up to MaxRetries with exponential backoff.
func (p *ValkeyProvider) withConn(ctx context.Context, fn func(*respConn) error) error {
	var lastErr error
	for attempt := 0; attempt < p.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := p.attempt(ctx, fn)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable(err) || attempt == p.cfg.MaxRetries-1 {
			return err
		}
		time.Sleep(time.Duration(1<<attempt) * 25 * time.Millisecond)
	}
	return lastErr
}

func (p *ValkeyProvider) attempt(ctx context.Context, fn func(*respConn) error) error {
	c, err := p.dial(ctx)
	if err != nil {
		return err
	}
	defer c.close()
	if err := p.handshake(c); err != nil {
		return err
	}
	return fn(c)
}

func (p *ValkeyProvider) dial(ctx context.Context) (*respConn, error) {
	dialer := net.Dialer{Timeout: dialDeadline(ctx, p.cfg.DialTimeout)}
	var (
		nc  net.Conn
		err error
	)
	if p.cfg.TLS {
		host := p.cfg.Addr
		if h, _, splitErr := net.SplitHostPort(p.cfg.Addr); splitErr == nil {
			host = h
		}
		nc, err = tls.DialWithDialer(&dialer, "tcp", p.cfg.Addr, &tls.Config{
			MinVersion: tls.VersionTLS12,
			ServerName: host,
		})
	} else {
		nc, err = dialer.DialContext(ctx, "tcp", p.cfg.Addr)
	}
	if err != nil {
		return nil, err
	}
	return &respConn{
		nc:           nc,
		r:            bufio.NewReader(nc),
		w:            bufio.NewWriter(nc),
		readTimeout:  p.cfg.ReadTimeout,
		writeTimeout: p.cfg.WriteTimeout,
	}, nil
}

func (p *ValkeyProvider) handshake(c *respConn) error {
	if p.cfg.Password != "" {
		args := [][]byte{[]byte("AUTH")}
		if p.cfg.Username != "" {
			args = append(args, []byte(p.cfg.Username))
		}
		args = append(args, []byte(p.cfg.Password))
		r, err := c.do(args...)
		if err != nil {
			return err
		}
		if r.kind != respSimple || !strings.EqualFold(string(r.data), "OK") {
			return fmt.Errorf("auth failed: %s", r.data)
		}
	}
	if p.cfg.DB > 0 {
		r, err := c.do([]byte("SELECT"), []byte(strconv.Itoa(p.cfg.DB)))
		if err != nil {
			return err
		}
		if r.kind != respSimple || !strings.EqualFold(string(r.data), "OK") {
			return fmt.Errorf("select failed: %s", r.data)
		}
	}
	return nil
}

// RESP reply kinds the provider understands.
const (
	respSimple  = '+'
	respBulk    = '$'
	respInteger = ':'
	respNil     = '_'
)

type respReply struct {
	kind byte
	data []byte
}

// respConn is one short-lived connection with RESP framing on top.
type respConn struct {
	nc           net.Conn
	r            *bufio.Reader
	w            *bufio.Writer
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func (c *respConn) close() { _ = c.nc.Close() }

// do writes one command as a RESP array of bulk strings and reads the reply.
func (c *respConn) do(args ...[]byte) (respReply, error) {
	if err := c.nc.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return respReply{}, err
	}
	fmt.Fprintf(c.w, "*%d\r\n", len(args))
	for _, arg := range args {
		fmt.Fprintf(c.w, "$%d\r\n", len(arg))
		c.w.Write(arg)
		c.w.WriteString("\r\n")
	}
	if err := c.w.Flush(); err != nil {
		return respReply{}, err
	}
	return c.readReply()
}

func (c *respConn) readReply() (respReply, error) {
	if err := c.nc.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
		return respReply{}, err
	}
	prefix, err := c.r.ReadByte()
	if err != nil {
		return respReply{}, err
	}
	switch prefix {
	case '+':
		line, err := c.readLine()
		return respReply{kind: respSimple, data: line}, err
	case ':':
		line, err := c.readLine()
		return respReply{kind: respInteger, data: line}, err
	case '-':
		line, err := c.readLine()
		if err != nil {
			return respReply{}, err
		}
		return respReply{}, errors.New(string(line))
	case '$':
		line, err := c.readLine()
		if err != nil {
			return respReply{}, err
		}
		size, err := strconv.Atoi(string(line))
		if err != nil {
			return respReply{}, err
		}
		if size < 0 {
			return respReply{kind: respNil}, nil
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(c.r, buf); err != nil {
			return respReply{}, err
		}
		if buf[size] != '\r' || buf[size+1] != '\n' {
			return respReply{}, errors.New("malformed bulk string terminator")
		}
		return respReply{kind: respBulk, data: buf[:size]}, nil
	default:
		return respReply{}, fmt.Errorf("unexpected RESP prefix %q", prefix)
	}
}

func (c *respConn) readLine() ([]byte, error) {
	line, err := c.r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	return []byte(strings.TrimRight(line, "\r\n")), nil
}

func dialDeadline(ctx context.Context, d time.Duration) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 && (d <= 0 || remaining < d) {
			return remaining
		}
	}
	if d <= 0 {
		return time.Millisecond
	}
	return d
}

func retryable(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
