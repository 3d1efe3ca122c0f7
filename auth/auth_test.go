package auth

import (
	"bufio"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glennswest/robotserver/transport"
)

func TestHash(t *testing.T) {
	assert.Equal(t, 0, Hash([]byte("")))
	assert.Equal(t, 40784, Hash([]byte("Mnau!")))
}

func TestVerifyClientKeyRoundTrip(t *testing.T) {
	for robotID := range Keys {
		hash := Hash([]byte("Oompa Loompa"))
		clientKey := (hash + Keys[robotID].Client) % KeyCeiling
		assert.True(t, VerifyClientKey(clientKey, robotID, hash))
	}
}

func TestVerifyClientKeyKnownVector(t *testing.T) {
	hash := Hash([]byte("Oompa Loompa"))
	assert.Equal(t, 41888, hash)
	assert.True(t, VerifyClientKey(8389, 0, hash))
	assert.Equal(t, 64907, ServerKey(hash, 0))
}

// pipeConn wires a transport.Conn to one end of a net.Pipe, with a buffered
// reader on the other end standing in for the robot client.
func pipeConn(t *testing.T) (*transport.Conn, *bufio.Reader, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() { server.Close(); client.Close() })
	return transport.NewConn(server, 0, 0), bufio.NewReader(client), client
}

func TestAuthenticateSuccess(t *testing.T) {
	conn, r, client := pipeConn(t)

	go func() {
		client.Write([]byte("Oompa Loompa\a\b"))
		readUntilDelim(r) // 107 KEY REQUEST
		client.Write([]byte("0\a\b"))
		readUntilDelim(r) // server key
		client.Write([]byte("8389\a\b"))
	}()

	result := Authenticate(conn)
	require.NoError(t, result.Err)
	assert.True(t, result.Success)
	assert.Equal(t, 0, result.RobotID)

	reply := readUntilDelim(r)
	assert.Equal(t, "200 OK", reply)
}

func TestAuthenticateKeyOutOfRange(t *testing.T) {
	conn, r, client := pipeConn(t)

	go func() {
		client.Write([]byte("Somebody\a\b"))
		readUntilDelim(r)
		client.Write([]byte("5\a\b"))
	}()

	result := Authenticate(conn)
	assert.False(t, result.Success)
	require.Error(t, result.Err)

	reply := readUntilDelim(r)
	assert.Equal(t, "303 KEY OUT OF RANGE", reply)
}

func TestAuthenticateLoginFailed(t *testing.T) {
	conn, r, client := pipeConn(t)

	go func() {
		client.Write([]byte("Somebody\a\b"))
		readUntilDelim(r)
		client.Write([]byte("0\a\b"))
		readUntilDelim(r)
		client.Write([]byte("1\a\b")) // wrong client key
	}()

	result := Authenticate(conn)
	assert.False(t, result.Success)
	require.Error(t, result.Err)

	reply := readUntilDelim(r)
	assert.Equal(t, "300 LOGIN FAILED", reply)
}

func readUntilDelim(r *bufio.Reader) string {
	var out []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return string(out)
		}
		if b == '\b' && len(out) > 0 && out[len(out)-1] == '\a' {
			return string(out[:len(out)-1])
		}
		out = append(out, b)
	}
}
