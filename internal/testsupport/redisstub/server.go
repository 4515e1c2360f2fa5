// Package redisstub implements a minimal in-process RESP server covering the
// command surface the session store and login throttle use, so Redis-backed
// code paths can run in tests without an external server.
package redisstub

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

type Options struct {
	Password string
}

type Server struct {
	opts     Options
	listener net.Listener
	addr     string
	mu       sync.Mutex
	kv       map[string]*kvEntry
	closed   chan struct{}
}

type kvEntry struct {
	value  string
	expiry time.Time
}

func (e *kvEntry) expired(now time.Time) bool {
	return !e.expiry.IsZero() && now.After(e.expiry)
}

func Start(opts Options) (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	server := &Server{
		opts:     opts,
		listener: ln,
		addr:     ln.Addr().String(),
		kv:       make(map[string]*kvEntry),
		closed:   make(chan struct{}),
	}
	go server.serve()
	return server, nil
}

func (s *Server) Addr() string {
	return s.addr
}

func (s *Server) Close() error {
	s.mu.Lock()
	select {
	case <-s.closed:
		s.mu.Unlock()
		return nil
	default:
	}
	close(s.closed)
	s.mu.Unlock()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	return nil
}

// ClearExpiry drops the expiry on a key while keeping its value, simulating a
// counter that lost its TTL mid-window.
func (s *Server) ClearExpiry(key string) {
	s.mu.Lock()
	if entry, ok := s.kv[key]; ok {
		entry.expiry = time.Time{}
	}
	s.mu.Unlock()
}

func (s *Server) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closed:
				return
			default:
			}
			continue
		}
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()
	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)
	authenticated := s.opts.Password == ""
	for {
		args, err := readArray(reader)
		if err != nil {
			return
		}
		if len(args) == 0 {
			if err := writeError(writer, "ERR wrong number of arguments"); err != nil {
				return
			}
			continue
		}
		cmd := strings.ToUpper(args[0])
		switch cmd {
		case "PING":
			if err := writeSimpleString(writer, "PONG"); err != nil {
				return
			}
		case "HELLO":
			// Answering with an error keeps RESP2 clients on the
			// legacy handshake path.
			if err := writeError(writer, "ERR unknown command 'HELLO'"); err != nil {
				return
			}
		case "AUTH":
			password := ""
			switch len(args) {
			case 2:
				password = args[1]
			case 3:
				password = args[2]
			default:
				if err := writeError(writer, "ERR wrong number of arguments for 'auth'"); err != nil {
					return
				}
				continue
			}
			if s.opts.Password == "" || password == s.opts.Password {
				authenticated = true
				if err := writeSimpleString(writer, "OK"); err != nil {
					return
				}
			} else {
				if err := writeError(writer, "WRONGPASS invalid username-password pair"); err != nil {
					return
				}
			}
		case "SELECT", "CLIENT", "RESET":
			if err := writeSimpleString(writer, "OK"); err != nil {
				return
			}
		default:
			if !authenticated {
				if err := writeError(writer, "NOAUTH Authentication required."); err != nil {
					return
				}
				continue
			}
			if !s.dispatch(writer, cmd, args) {
				return
			}
		}
	}
}

func (s *Server) dispatch(writer *bufio.Writer, cmd string, args []string) bool {
	switch cmd {
	case "SET":
		if len(args) < 3 {
			return writeError(writer, "ERR wrong number of arguments for 'set'") == nil
		}
		var ttl time.Duration
		for i := 3; i+1 < len(args); i += 2 {
			value, err := strconv.ParseInt(args[i+1], 10, 64)
			if err != nil {
				return writeError(writer, "ERR value is not an integer") == nil
			}
			switch strings.ToUpper(args[i]) {
			case "EX":
				ttl = time.Duration(value) * time.Second
			case "PX":
				ttl = time.Duration(value) * time.Millisecond
			default:
				return writeError(writer, "ERR syntax error") == nil
			}
		}
		s.set(args[1], args[2], ttl)
		return writeSimpleString(writer, "OK") == nil
	case "GET":
		if len(args) != 2 {
			return writeError(writer, "ERR wrong number of arguments for 'get'") == nil
		}
		value, ok := s.get(args[1])
		if !ok {
			return writeBulkNil(writer) == nil
		}
		return writeBulkString(writer, value) == nil
	case "DEL":
		if len(args) < 2 {
			return writeError(writer, "ERR wrong number of arguments for 'del'") == nil
		}
		return writeInteger(writer, s.del(args[1:])) == nil
	case "INCR":
		if len(args) != 2 {
			return writeError(writer, "ERR wrong number of arguments for 'incr'") == nil
		}
		value, err := s.incr(args[1])
		if err != nil {
			return writeError(writer, "ERR value is not an integer or out of range") == nil
		}
		return writeInteger(writer, value) == nil
	case "EXPIRE":
		if len(args) != 3 {
			return writeError(writer, "ERR wrong number of arguments for 'expire'") == nil
		}
		seconds, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			return writeError(writer, "ERR invalid expire time") == nil
		}
		return writeInteger(writer, s.expire(args[1], time.Duration(seconds)*time.Second)) == nil
	case "TTL":
		if len(args) != 2 {
			return writeError(writer, "ERR wrong number of arguments for 'ttl'") == nil
		}
		return writeInteger(writer, s.ttl(args[1])) == nil
	default:
		return writeError(writer, "ERR unsupported command '"+cmd+"'") == nil
	}
}

func (s *Server) set(key, value string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := &kvEntry{value: value}
	if ttl > 0 {
		entry.expiry = time.Now().Add(ttl)
	}
	s.kv[key] = entry
}

func (s *Server) get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.kv[key]
	if !ok {
		return "", false
	}
	if entry.expired(time.Now()) {
		delete(s.kv, key)
		return "", false
	}
	return entry.value, true
}

func (s *Server) del(keys []string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for _, key := range keys {
		if _, ok := s.kv[key]; ok {
			delete(s.kv, key)
			removed++
		}
	}
	return removed
}

func (s *Server) incr(key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.kv[key]
	if !ok || entry.expired(time.Now()) {
		entry = &kvEntry{value: "0"}
		s.kv[key] = entry
	}
	value, err := strconv.ParseInt(entry.value, 10, 64)
	if err != nil {
		return 0, err
	}
	value++
	entry.value = strconv.FormatInt(value, 10)
	return value, nil
}

func (s *Server) expire(key string, ttl time.Duration) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.kv[key]
	if !ok || entry.expired(time.Now()) {
		return 0
	}
	entry.expiry = time.Now().Add(ttl)
	return 1
}

func (s *Server) ttl(key string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.kv[key]
	if !ok {
		return -2
	}
	if entry.expiry.IsZero() {
		return -1
	}
	remaining := time.Until(entry.expiry)
	if remaining <= 0 {
		delete(s.kv, key)
		return -2
	}
	seconds := int64(remaining / time.Second)
	if seconds == 0 {
		seconds = 1
	}
	return seconds
}

func readArray(r *bufio.Reader) ([]string, error) {
	prefix, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if prefix != '*' {
		return nil, fmt.Errorf("unexpected prefix %q", prefix)
	}
	length, err := readLength(r)
	if err != nil {
		return nil, err
	}
	args := make([]string, 0, length)
	for i := 0; i < length; i++ {
		arg, err := readBulkString(r)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return args, nil
}

func readLength(r *bufio.Reader) (int, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return 0, err
	}
	line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
	return strconv.Atoi(line)
}

func readBulkString(r *bufio.Reader) (string, error) {
	prefix, err := r.ReadByte()
	if err != nil {
		return "", err
	}
	if prefix != '$' {
		return "", fmt.Errorf("unexpected prefix %q", prefix)
	}
	length, err := readLength(r)
	if err != nil {
		return "", err
	}
	if length < 0 {
		return "", nil
	}
	buf := make([]byte, length+2)
	for read := 0; read < len(buf); {
		n, err := r.Read(buf[read:])
		if err != nil {
			return "", err
		}
		read += n
	}
	return string(buf[:length]), nil
}

func writeSimpleString(w *bufio.Writer, value string) error {
	if _, err := fmt.Fprintf(w, "+%s\r\n", value); err != nil {
		return err
	}
	return w.Flush()
}

func writeBulkString(w *bufio.Writer, value string) error {
	if _, err := fmt.Fprintf(w, "$%d\r\n%s\r\n", len(value), value); err != nil {
		return err
	}
	return w.Flush()
}

func writeBulkNil(w *bufio.Writer) error {
	if _, err := w.WriteString("$-1\r\n"); err != nil {
		return err
	}
	return w.Flush()
}

func writeInteger(w *bufio.Writer, value int64) error {
	if _, err := fmt.Fprintf(w, ":%d\r\n", value); err != nil {
		return err
	}
	return w.Flush()
}

func writeError(w *bufio.Writer, msg string) error {
	if _, err := fmt.Fprintf(w, "-%s\r\n", msg); err != nil {
		return err
	}
	return w.Flush()
}
