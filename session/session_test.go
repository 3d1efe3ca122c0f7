package session

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glennswest/robotserver/transport"
)

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

// TestRunSyntaxErrorOnOversizedUsername drives scenario S3 from the spec:
// a 21-byte username with no delimiter must produce a 301 reply and a
// closed connection.
func TestRunSyntaxErrorOnOversizedUsername(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	conn := transport.NewConn(server, time.Second, 5*time.Second)

	done := make(chan struct{})
	go func() {
		Run(conn, "test-session")
		close(done)
	}()

	go client.Write([]byte(strings.Repeat("x", 21)))

	r := bufio.NewReader(client)
	reply := readUntilDelim(r)
	assert.Equal(t, "301 SYNTAX ERROR", reply)

	<-done
}

// TestRunKeyOutOfRange drives scenario S2: the session ends after the
// inline 303 reply without the orchestrator mapping it to a second error
// reply.
func TestRunKeyOutOfRange(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	conn := transport.NewConn(server, time.Second, 5*time.Second)

	done := make(chan struct{})
	go func() {
		Run(conn, "test-session")
		close(done)
	}()

	r := bufio.NewReader(client)

	client.Write([]byte("Somebody\a\b"))
	require.Equal(t, "107 KEY REQUEST", readUntilDelim(r))
	client.Write([]byte("9\a\b"))
	assert.Equal(t, "303 KEY OUT OF RANGE", readUntilDelim(r))

	<-done
}
