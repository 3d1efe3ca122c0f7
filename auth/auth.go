// Package auth implements the robot authentication handshake: a hash-based
// mutual key exchange against a fixed, read-only key table. Grounded on the
// teacher's vendored RAKP handshake (go-sol/session.go rakpHandshake): a
// sequence of named steps on a session-like struct, each one send+receive
// round, wrapping failures with context rather than losing them.
package auth

import (
	"fmt"
	"strconv"

	"github.com/glennswest/robotserver/protoerr"
	"github.com/glennswest/robotserver/transport"
)

// KeyCeiling is the modulus all hash and key arithmetic wraps around.
const KeyCeiling = 1 << 16

// Key holds the per-robot-id server/client constants used to derive and
// verify the authentication challenge.
type Key struct {
	Server int
	Client int
}

// Keys is the fixed, read-only key table, indexed by robot id. It is shared
// by reference across all sessions without synchronization.
var Keys = []Key{
	{23019, 32037},
	{32037, 29295},
	{18789, 13603},
	{16443, 29533},
	{18189, 21952},
}

const (
	maxUsernameLen = 20
	maxRobotIDLen  = 5
	maxClientKeyLen = 7
)

// Hash computes the robot hash: the sum of the message's bytes, taken as
// unsigned 8-bit values, times 1000, modulo KeyCeiling.
func Hash(b []byte) int {
	sum := 0
	for _, c := range b {
		sum += int(c)
	}
	return (sum * 1000) % KeyCeiling
}

// ServerKey computes the server's half of the challenge for robotID given
// the already-computed robot hash.
func ServerKey(robotHash, robotID int) int {
	return (robotHash + Keys[robotID].Server) % KeyCeiling
}

// VerifyClientKey reports whether clientKey is the correct response to
// robotHash for robotID.
func VerifyClientKey(clientKey, robotID, robotHash int) bool {
	diff := (clientKey - Keys[robotID].Client) % KeyCeiling
	if diff < 0 {
		diff += KeyCeiling
	}
	return diff == robotHash
}

// Result reports the outcome of an authentication attempt. When Success is
// false, Err is always set. An Err of kind AuthOutOfRange or AuthKeyMismatch
// means the inline reply (303 or 300) was already sent and the session
// should simply end.
type Result struct {
	Success bool
	RobotID int
	Err     error
}

// Authenticate runs the fixed 4-message handshake against conn.
func Authenticate(conn *transport.Conn) Result {
	username, err := conn.ReadExpected(maxUsernameLen)
	if err != nil {
		return Result{Err: err}
	}

	if err := conn.SendString("107 KEY REQUEST\a\b"); err != nil {
		return Result{Err: err}
	}

	robotID, err := readRobotID(conn)
	if err != nil {
		return Result{Err: err}
	}

	if robotID < 0 || robotID >= len(Keys) {
		if err := conn.SendString("303 KEY OUT OF RANGE\a\b"); err != nil {
			return Result{Err: err}
		}
		return Result{Success: false, Err: protoerr.AuthOutOfRangeError(fmt.Sprintf("robot id %d out of range", robotID))}
	}

	robotHash := Hash(username)
	serverKey := ServerKey(robotHash, robotID)
	if err := conn.SendString(strconv.Itoa(serverKey) + "\a\b"); err != nil {
		return Result{Err: err}
	}

	clientKey, err := readClientKey(conn)
	if err != nil {
		return Result{Err: err}
	}

	if !VerifyClientKey(clientKey, robotID, robotHash) {
		if err := conn.SendString("300 LOGIN FAILED\a\b"); err != nil {
			return Result{Err: err}
		}
		return Result{Success: false, RobotID: robotID, Err: protoerr.AuthKeyMismatchError("client key verification failed")}
	}

	if err := conn.SendString("200 OK\a\b"); err != nil {
		return Result{Err: err}
	}

	return Result{Success: true, RobotID: robotID}
}

func readRobotID(conn *transport.Conn) (int, error) {
	raw, err := conn.ReadExpected(maxRobotIDLen)
	if err != nil {
		return 0, err
	}
	n, perr := strconv.Atoi(string(raw))
	if perr != nil {
		return 0, protoerr.SyntaxError("robot id is not a decimal integer", perr)
	}
	return n, nil
}

func readClientKey(conn *transport.Conn) (int, error) {
	raw, err := conn.ReadExpected(maxClientKeyLen)
	if err != nil {
		return 0, err
	}
	n, perr := strconv.Atoi(string(raw))
	if perr != nil {
		return 0, protoerr.SyntaxError("client key is not a decimal integer", perr)
	}
	return n, nil
}
