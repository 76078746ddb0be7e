// Package telemetry implements the fixed-size binary telemetry frame and the TCP
// listener that accepts exactly one connection delivering it. This is a collaborator
// interface: the simulator on the other end of the socket is out of scope here; this
// package only implements the wire contract.
package telemetry

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"math"
	"net"
	"strconv"

	"github.com/pkg/errors"
)

// NumBeams is the fixed lidar sample count per frame.
const NumBeams = 360

// FrameSize is the fixed wire size of one frame: 8-byte header, nine float32 pose/
// velocity/gyro fields, a uint32 lidar count, and 360 float32 ranges.
const FrameSize = 8 + 9*4 + 4 + NumBeams*4

// ErrShortRead is returned when a frame cannot be read in full; this is fatal to the
// process, not locally recoverable.
var ErrShortRead = errors.New("telemetry: short read decoding frame")

// Frame is one decoded telemetry frame.
type Frame struct {
	Header [8]byte

	PoseX       float64
	PoseY       float64
	PoseHeading float64
	VelX        float64
	VelY        float64
	VelHeading  float64
	GyroX       float64
	GyroY       float64
	GyroZ       float64

	LidarCount uint32
	Ranges     []float64
}

// decode reads exactly FrameSize bytes from r and parses them into a Frame. A short
// read returns ErrShortRead wrapping the underlying I/O error.
func decode(r io.Reader) (Frame, error) {
	buf := make([]byte, FrameSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Frame{}, errors.Wrap(ErrShortRead, err.Error())
	}

	var f Frame
	copy(f.Header[:], buf[0:8])

	floats := make([]float32, 9)
	off := 8
	for i := range floats {
		floats[i] = readFloat32(buf[off : off+4])
		off += 4
	}
	f.PoseX = float64(floats[0])
	f.PoseY = float64(floats[1])
	f.PoseHeading = float64(floats[2])
	f.VelX = float64(floats[3])
	f.VelY = float64(floats[4])
	f.VelHeading = float64(floats[5])
	f.GyroX = float64(floats[6])
	f.GyroY = float64(floats[7])
	f.GyroZ = float64(floats[8])

	f.LidarCount = binary.LittleEndian.Uint32(buf[off : off+4])
	off += 4

	f.Ranges = make([]float64, NumBeams)
	for i := 0; i < NumBeams; i++ {
		f.Ranges[i] = float64(readFloat32(buf[off : off+4]))
		off += 4
	}

	return f, nil
}

func readFloat32(b []byte) float32 {
	bits := binary.LittleEndian.Uint32(b)
	return math.Float32frombits(bits)
}

// Listener accepts exactly one TCP connection and decodes frames from it in order.
type Listener struct {
	ln   net.Listener
	conn net.Conn
	r    *bufio.Reader
}

// Listen binds host:port and returns a Listener ready to Accept.
func Listen(host string, port int) (*Listener, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, errors.Wrap(err, "telemetry: listen")
	}
	return &Listener{ln: ln}, nil
}

// Accept blocks until the single expected connection arrives.
func (l *Listener) Accept(ctx context.Context) error {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := l.ln.Accept()
		ch <- result{conn, err}
	}()

	select {
	case <-ctx.Done():
		l.ln.Close()
		return ctx.Err()
	case res := <-ch:
		if res.err != nil {
			return errors.Wrap(res.err, "telemetry: accept")
		}
		l.conn = res.conn
		l.r = bufio.NewReaderSize(res.conn, FrameSize)
		return nil
	}
}

// Next blocks for the next full frame. A short read or closed connection returns
// ErrShortRead; this is fatal and the caller should shut the process down.
func (l *Listener) Next() (Frame, error) {
	return decode(l.r)
}

// Close releases the listener and accepted connection.
func (l *Listener) Close() error {
	if l.conn != nil {
		l.conn.Close()
	}
	return l.ln.Close()
}
