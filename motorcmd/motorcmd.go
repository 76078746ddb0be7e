// Package motorcmd sends motor velocity commands to the simulator over UDP. This is
// a collaborator interface: the motor driver on the other end is out of scope here.
package motorcmd

import (
	"encoding/binary"
	"math"
	"net"
	"strconv"

	"github.com/pkg/errors"
)

// Command is one control-tick motor command: linear velocity (m/s) and angular
// velocity (rad/s).
type Command struct {
	V float64
	W float64
}

// Sender writes Command datagrams to a fixed UDP destination.
type Sender struct {
	conn net.Conn
}

// Dial opens the UDP socket used for every subsequent Send.
func Dial(host string, port int) (*Sender, error) {
	conn, err := net.Dial("udp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, errors.Wrap(err, "motorcmd: dial")
	}
	return &Sender{conn: conn}, nil
}

// Send writes cmd as a little-endian (float32 v, float32 w) payload.
func (s *Sender) Send(cmd Command) error {
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(float32(cmd.V)))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(float32(cmd.W)))
	_, err := s.conn.Write(buf[:])
	return errors.Wrap(err, "motorcmd: send")
}

// Close releases the UDP socket.
func (s *Sender) Close() error {
	return s.conn.Close()
}
