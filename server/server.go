// Package server implements the Connection Acceptor: it owns the TCP
// listener and spawns one independent worker goroutine per accepted
// connection, each running the session orchestrator. Grounded on the
// teacher's server.Server.Run(ctx): a goroutine that waits on ctx.Done()
// and closes the listener, while the accept loop treats that induced error
// as a clean shutdown rather than a fault.
package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"

	log "github.com/sirupsen/logrus"

	"github.com/glennswest/robotserver/config"
	"github.com/glennswest/robotserver/session"
	"github.com/glennswest/robotserver/transport"
	"github.com/glennswest/robotserver/translog"
)

// Server is the Connection Acceptor.
type Server struct {
	cfg        config.ServerConfig
	transcript *translog.Writer
	listener   net.Listener
}

// New creates a Server bound to the given config. transcript may be nil to
// disable per-session wire transcripts.
func New(cfg config.ServerConfig, transcript *translog.Writer) *Server {
	return &Server{cfg: cfg, transcript: transcript}
}

// Run listens and accepts connections until ctx is cancelled, spawning one
// goroutine per connection. It returns once the listener is closed and the
// accept loop has unwound; in-flight sessions are not waited on, per the
// "graceful shutdown beyond closing sockets" non-goal.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.BindHost, s.cfg.BindPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.listener = ln

	go func() {
		<-ctx.Done()
		log.Info("context done, closing listener")
		ln.Close()
	}()

	log.Infof("listening on %s", addr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				log.Info("listener closed, shutting down")
				return nil
			}
			log.Errorf("accept failed: %v", err)
			return err
		}

		id := newSessionID()
		go func() {
			log.Infof("session %s: accepted from %s", id, conn.RemoteAddr())
			framed := transport.NewConn(conn, s.cfg.ReadTimeout, s.cfg.RechargeTimeout)
			if s.transcript != nil {
				framed.SetTranscript(s.transcript, id)
			}
			session.Run(framed, id)
		}()
	}
}

func newSessionID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(b)
}
