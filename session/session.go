// Package session composes the authenticator and navigator over a single
// connection and maps raised error categories to wire replies. Grounded on
// the teacher's sol.Manager.runSession: a per-connection driver that logs
// one line per lifecycle transition and always tears down its resources on
// the way out.
package session

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/glennswest/robotserver/auth"
	"github.com/glennswest/robotserver/navigator"
	"github.com/glennswest/robotserver/protoerr"
	"github.com/glennswest/robotserver/transport"
)

const maxSecretLen = 100

// Run drives one full session to completion over conn: authenticate,
// localize, navigate to the origin, pick up the secret message, log out.
// It never returns an error to its caller — every failure is either
// terminal-and-logged or mapped to a wire reply — because the acceptor's
// only remaining responsibility after Run returns is to close the socket,
// which the deferred conn.Close handles.
func Run(conn *transport.Conn, sessionID string) {
	defer conn.Close()

	started := time.Now()
	logf := func(format string, args ...interface{}) {
		log.Infof("session %s: "+format, append([]interface{}{sessionID}, args...)...)
	}

	result := auth.Authenticate(conn)
	if result.Err != nil {
		logClose(sessionID, result.Err, started)
		sendErrorReply(conn, result.Err)
		return
	}
	logf("authenticated robot %d", result.RobotID)

	nav := navigator.New(conn)
	if err := nav.Localize(); err != nil {
		logClose(sessionID, err, started)
		sendErrorReply(conn, err)
		return
	}
	logf("localized at %v facing %v", nav.Robot.Position, nav.Robot.Direction)

	if err := nav.GetToGoal(); err != nil {
		logClose(sessionID, err, started)
		sendErrorReply(conn, err)
		return
	}
	logf("reached goal")

	if err := conn.SendString("105 GET MESSAGE\a\b"); err != nil {
		logClose(sessionID, err, started)
		return
	}
	if _, err := conn.ReadExpected(maxSecretLen); err != nil {
		logClose(sessionID, err, started)
		sendErrorReply(conn, err)
		return
	}

	if err := conn.SendString("106 LOGOUT\a\b"); err != nil {
		logClose(sessionID, err, started)
		return
	}

	logf("closed: logged out after %s", time.Since(started).Round(time.Millisecond))
}

// sendErrorReply maps a protoerr.Error category to its wire reply. Errors
// without a reply (Transport, and the two AuthFailure kinds which already
// sent their inline reply in the auth package) are closed silently.
func sendErrorReply(conn *transport.Conn, err error) {
	perr, ok := err.(*protoerr.Error)
	if !ok {
		return
	}
	switch perr.Kind {
	case protoerr.Syntax:
		conn.SendString("301 SYNTAX ERROR\a\b")
	case protoerr.Logic:
		conn.SendString("302 LOGIC ERROR\a\b")
	case protoerr.Transport, protoerr.AuthOutOfRange, protoerr.AuthKeyMismatch:
		// No reply: AuthFailure kinds already sent their inline reply;
		// Transport failures get no reply by design.
	}
}

func logClose(sessionID string, err error, started time.Time) {
	perr, ok := err.(*protoerr.Error)
	if !ok {
		log.Warnf("session %s: closed: %v (after %s)", sessionID, err, time.Since(started).Round(time.Millisecond))
		return
	}
	switch perr.Kind {
	case protoerr.Transport:
		log.Infof("session %s: closed: %s (after %s)", sessionID, perr, time.Since(started).Round(time.Millisecond))
	case protoerr.AuthOutOfRange, protoerr.AuthKeyMismatch:
		log.Infof("session %s: closed: %s", sessionID, perr)
	default:
		log.Warnf("session %s: closed: %s (after %s)", sessionID, perr, time.Since(started).Round(time.Millisecond))
	}
}
