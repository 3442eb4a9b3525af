package peerlink

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/kekahyde/inferd/internal/infer"
)

// requestReadTimeout bounds how long a connection may take to deliver a
// complete request frame before it is dropped.
const requestReadTimeout = 30 * time.Second

// Server serves the peer side of the wire protocol: it accepts connections,
// reads one prompt request per connection, runs it through the local engine,
// and replies with the generated text and its digest.
type Server struct {
	listener net.Listener
	engine   infer.Engine
	logger   *slog.Logger
}

// NewServer creates a peer server on the given listener.
func NewServer(listener net.Listener, engine infer.Engine, logger *slog.Logger) *Server {
	return &Server{
		listener: listener,
		engine:   engine,
		logger:   logger,
	}
}

// Serve accepts connections and handles requests. It blocks until the
// listener is closed or an unrecoverable error occurs.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return fmt.Errorf("accept: %w", err)
		}
		go s.handle(conn)
	}
}

// handle processes a single request on conn. A malformed or unrecognized
// frame closes the connection without a response; nothing is echoed back.
func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	if err := conn.SetReadDeadline(time.Now().Add(requestReadTimeout)); err != nil {
		s.logger.Error("set read deadline", "error", err)
		return
	}

	prompt, err := ReadRequest(conn)
	if err != nil {
		s.logger.Warn("reject connection", "error", err)
		return
	}

	// Inference can outlast the request deadline; clear it.
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		s.logger.Error("clear read deadline", "error", err)
		return
	}

	output, err := s.engine.Run(context.Background(), prompt)
	if err != nil {
		// Close without a response; the caller treats this as a transport
		// failure and falls back to its own local execution.
		s.logger.Error("run prompt", "error", err)
		return
	}

	res := InferenceResult{
		Output: output,
		Hash:   DigestHex([]byte(output)),
	}
	if err := WriteResult(conn, res); err != nil {
		s.logger.Error("write result", "error", err)
	}
}
