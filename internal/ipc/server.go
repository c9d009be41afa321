// Package ipc serves the engine over a local Unix-domain socket, per
// spec.md §6.1: newline-delimited JSON request/response framing with
// method dispatch for query, ping, status, and reload_policies.
package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"sysdesk/internal/observability"
	"sysdesk/internal/roles"
	"sysdesk/internal/servicedesk"
)

// request is the inbound envelope of spec.md §6.1.
type request struct {
	Method  string          `json:"method"`
	ID      string          `json:"id"`
	Query   string          `json:"query,omitempty"`
	Options *requestOptions `json:"options,omitempty"`
}

type requestOptions struct {
	// A pointer so an explicit 0 ("bypass the cache", spec.md §8.3) can be
	// told apart from the field being absent — a plain uint32 can't
	// distinguish "sent as 0" from "not sent".
	SnapshotMaxAgeSecs *uint32 `json:"snapshot_max_age_secs,omitempty"`
	ModelHint          string  `json:"model_hint,omitempty"`
	TurnCap            uint8   `json:"turn_cap,omitempty"`
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type statusResponse struct {
	Health           string `json:"health"`
	UptimeSecs       int64  `json:"uptime_secs"`
	PID              int    `json:"pid"`
	SnapshotSequence uint64 `json:"snapshot_sequence"`
}

// Server is the Unix-domain socket front end for one servicedesk.Engine.
type Server struct {
	Engine     *servicedesk.Engine
	SocketPath string
	SocketMode os.FileMode

	startedAt   time.Time
	snapshotSeq atomic.Uint64

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

// NewServer returns a Server bound to socketPath, not yet listening.
func NewServer(engine *servicedesk.Engine, socketPath string) *Server {
	return &Server{
		Engine:     engine,
		SocketPath: socketPath,
		SocketMode: 0o660,
	}
}

// BumpSnapshotSequence lets external collaborators (e.g. a cache
// invalidation hook) advance the counter the status method reports.
func (s *Server) BumpSnapshotSequence() { s.snapshotSeq.Add(1) }

// ErrWorldWritableParent is returned by Listen when the socket's parent
// directory is world-writable (spec.md §6.1: "the engine refuses to start
// if the socket parent is world-writable").
var ErrWorldWritableParent = errors.New("ipc: socket parent directory is world-writable")

// Listen binds the Unix-domain socket, validating the parent directory's
// permissions first and chmod'ing the socket itself afterward.
func (s *Server) Listen() error {
	dir := filepath.Dir(s.SocketPath)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("ipc: stat socket directory: %w", err)
	}
	if info.Mode().Perm()&0o002 != 0 {
		return ErrWorldWritableParent
	}

	_ = os.Remove(s.SocketPath) // stale socket from an unclean shutdown
	ln, err := net.Listen("unix", s.SocketPath)
	if err != nil {
		return fmt.Errorf("ipc: listen: %w", err)
	}
	if err := os.Chmod(s.SocketPath, s.SocketMode); err != nil {
		ln.Close()
		return fmt.Errorf("ipc: chmod socket: %w", err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.startedAt = time.Now()
	return nil
}

// Serve accepts connections until ctx is cancelled or Close is called.
// Each connection is handled on its own goroutine; Serve returns once the
// listener closes and all in-flight connections have drained.
func (s *Server) Serve(ctx context.Context) error {
	log := observability.LoggerWithTrace(ctx)
	go func() {
		<-ctx.Done()
		s.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			log.Error().Err(err).Msg("ipc: accept failed")
			return fmt.Errorf("ipc: accept: %w", err)
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

// Close stops accepting new connections. Already-accepted connections are
// given until the caller's context expires to finish via Serve's drain.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	err := s.listener.Close()
	_ = os.Remove(s.SocketPath)
	return err
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	log := observability.LoggerWithTrace(ctx)

	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)
	enc := json.NewEncoder(writer)

	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			s.handleLine(ctx, line, enc)
			if flushErr := writer.Flush(); flushErr != nil {
				log.Warn().Err(flushErr).Msg("ipc: flush response failed")
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				log.Warn().Err(err).Msg("ipc: connection read failed")
			}
			return
		}
	}
}

func (s *Server) handleLine(ctx context.Context, line []byte, enc *json.Encoder) {
	var req request
	if err := json.Unmarshal(line, &req); err != nil {
		_ = enc.Encode(errorResponse{Error: errorBody{Kind: "FramingError", Message: "invalid JSON request"}})
		return
	}

	switch req.Method {
	case "ping":
		_ = enc.Encode("pong")
	case "status":
		_ = enc.Encode(statusResponse{
			Health:           "ok",
			UptimeSecs:       int64(time.Since(s.startedAt).Seconds()),
			PID:              os.Getpid(),
			SnapshotSequence: s.snapshotSeq.Load(),
		})
	case "reload_policies":
		_ = enc.Encode(map[string]bool{"acknowledged": true})
	case "query":
		s.handleQuery(ctx, req, enc)
	default:
		_ = enc.Encode(errorResponse{Error: errorBody{Kind: "UnknownMethod", Message: "unknown method: " + req.Method}})
	}
}

func (s *Server) handleQuery(ctx context.Context, req request, enc *json.Encoder) {
	if req.Query == "" {
		_ = enc.Encode(errorResponse{Error: errorBody{Kind: "BadRequest", Message: "query must be non-empty"}})
		return
	}

	opts := servicedesk.Options{}
	if req.Options != nil {
		if req.Options.SnapshotMaxAgeSecs != nil {
			d := time.Duration(*req.Options.SnapshotMaxAgeSecs) * time.Second
			opts.SnapshotMaxAge = &d
		}
		opts.ModelHint = req.Options.ModelHint
		opts.TurnCap = int(req.Options.TurnCap)
	}

	var ticket *roles.TranslatorTicket
	res, err := s.Engine.Answer(ctx, req.Query, ticket, opts)
	if err != nil {
		_ = enc.Encode(errorResponse{Error: errorBody{Kind: "InternalError", Message: "request could not be answered"}})
		return
	}
	_ = enc.Encode(res)
}
