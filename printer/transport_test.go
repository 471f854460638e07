package printer

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
	"go.uber.org/zap"
)

type bufferCloser struct {
	bytes.Buffer
	closed bool
}

func (b *bufferCloser) Close() error {
	b.closed = true
	return nil
}

// shortWriter accepts at most max bytes per call, then fails after limit.
type shortWriter struct {
	got   []byte
	max   int
	limit int
}

func (w *shortWriter) Write(p []byte) (int, error) {
	if len(w.got) >= w.limit {
		return 0, errors.New("device gone")
	}
	n := min(len(p), w.max)
	w.got = append(w.got, p[:n]...)
	return n, nil
}

func (w *shortWriter) Close() error { return nil }

func TestRawTransport(t *testing.T) {
	conn := &bufferCloser{}
	tr := NewRawTransport("mock", conn, nil)

	require.NoError(t, tr.Send([]byte{0x1B, 0x76}))
	require.NoError(t, tr.Send(nil))
	assert.Equal(t, []byte{0x1B, 0x76}, conn.Bytes())

	require.NoError(t, tr.Close())
	assert.True(t, conn.closed)
}

func TestRawTransportShortWrites(t *testing.T) {
	w := &shortWriter{max: 3, limit: 100}
	tr := NewRawTransport("mock", w, nil)

	data := bytes.Repeat([]byte{0x0A}, 10)
	require.NoError(t, tr.Send(data))
	assert.Equal(t, data, w.got)
}

func TestRawTransportSendError(t *testing.T) {
	tr := NewRawTransport(KindSerial, &shortWriter{max: 4, limit: 4}, nil)

	err := tr.Send(make([]byte, 10))
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, KindSerial, te.Kind)
	assert.Equal(t, "send", te.Op)
	assert.Contains(t, err.Error(), "device gone")
}

func TestOpenerUnknownKind(t *testing.T) {
	_, err := NewOpener(nil).Open(TransportConfig{Kind: "carrier-pigeon"})

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "open", te.Op)
	assert.Equal(t, "carrier-pigeon", te.Kind)
}

func TestRegisterTransport(t *testing.T) {
	conn := &bufferCloser{}
	RegisterTransport("memory", func(cfg TransportConfig, logger *zap.Logger) (Transport, error) {
		assert.NotNil(t, logger)
		return NewRawTransport("memory", conn, logger), nil
	})

	p := New()
	require.NoError(t, p.Initialize(TransportConfig{Kind: "memory"}))
	require.NoError(t, p.WriteLineAlignCenter("HI"))
	require.NoError(t, p.FlushAndClear())

	assert.Equal(t, []byte{0x1B, 0x61, 0x01, 'H', 'I', 0x0D, 0x0A}, conn.Bytes())
	require.NoError(t, p.Close())
	assert.True(t, conn.closed)
}

func TestRegisteredOpenErrorIsWrapped(t *testing.T) {
	RegisterTransport("broken", func(TransportConfig, *zap.Logger) (Transport, error) {
		return nil, io.ErrUnexpectedEOF
	})

	_, err := NewOpener(zap.NewNop()).Open(TransportConfig{Kind: "broken"})
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "broken", te.Kind)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestTCPTransport(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			received <- nil
			return
		}
		defer conn.Close()
		data, _ := io.ReadAll(conn)
		received <- data
	}()

	p := New()
	require.NoError(t, p.Initialize(TransportConfig{Kind: KindTCP, Address: ln.Addr().String(), Timeout: time.Second}))
	require.NoError(t, p.WriteLineAlignLeft("TABLE 4"))
	require.NoError(t, p.CutPaper(true))
	want := p.Bytes()
	require.NoError(t, p.FlushAndClear())
	require.NoError(t, p.Close())

	select {
	case got := <-received:
		assert.Equal(t, want, got)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not receive data")
	}
}

func TestTCPTransportDialError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	err = New().Initialize(TransportConfig{Kind: KindTCP, Address: addr, Timeout: time.Second})
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, KindTCP, te.Kind)
}

func TestWithDefaultPort(t *testing.T) {
	assert.Equal(t, "10.0.0.5:9100", withDefaultPort("10.0.0.5", rawPort))
	assert.Equal(t, "10.0.0.5:9101", withDefaultPort("10.0.0.5:9101", rawPort))
	assert.Equal(t, "printer.local:515", withDefaultPort("printer.local", lpdPort))
}

type lpdJob struct {
	queue   string
	control string
	data    []byte
	err     error
}

// serveLPD plays the server side of one job, acknowledging every step with
// ack.
func serveLPD(conn net.Conn, ack byte) lpdJob {
	defer conn.Close()
	r := bufio.NewReader(conn)
	var job lpdJob

	line, err := r.ReadString('\n')
	if err != nil {
		job.err = err
		return job
	}
	job.queue = strings.TrimSuffix(line[1:], "\n")
	if _, err := conn.Write([]byte{ack}); err != nil || ack != 0 {
		job.err = err
		return job
	}

	readFile := func(code byte) ([]byte, error) {
		hdr, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		if hdr[0] != code {
			return nil, errors.New("unexpected subcommand")
		}
		n, err := strconv.Atoi(strings.Fields(hdr[1:])[0])
		if err != nil {
			return nil, err
		}
		if _, err := conn.Write([]byte{0}); err != nil {
			return nil, err
		}
		body := make([]byte, n+1)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, err
		}
		if body[n] != 0 {
			return nil, errors.New("missing NUL")
		}
		_, err = conn.Write([]byte{0})
		return body[:n], err
	}

	control, err := readFile(0x02)
	if err != nil {
		job.err = err
		return job
	}
	job.control = string(control)
	job.data, job.err = readFile(0x03)
	return job
}

func pipeDialer(ack byte, jobs chan<- lpdJob) func() (net.Conn, error) {
	return func() (net.Conn, error) {
		client, server := net.Pipe()
		go func() { jobs <- serveLPD(server, ack) }()
		return client, nil
	}
}

func TestLPDTransport(t *testing.T) {
	jobs := make(chan lpdJob, 2)
	p := New()
	require.NoError(t, p.Attach(NewLPDTransport(pipeDialer(0, jobs), "receipts", time.Second, zap.NewNop())))

	require.NoError(t, p.WriteLineAlignCenter("THANK YOU"))
	require.NoError(t, p.CutPaper(false))
	want := p.Bytes()
	require.NoError(t, p.FlushAndClear())

	job := <-jobs
	require.NoError(t, job.err)
	assert.Equal(t, "receipts", job.queue)
	assert.Equal(t, want, job.data)
	assert.Contains(t, job.control, "Jescbuf-")
	assert.Contains(t, job.control, "\nldfA")

	// one job per flush
	require.NoError(t, p.WriteAlignLeft("second"))
	require.NoError(t, p.Flush())
	job = <-jobs
	require.NoError(t, job.err)
	assert.Equal(t, p.Bytes(), job.data)
}

func TestLPDTransportRejected(t *testing.T) {
	jobs := make(chan lpdJob, 1)
	tr := NewLPDTransport(pipeDialer(1, jobs), "", time.Second, nil)

	err := tr.Send([]byte("x"))
	<-jobs

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, KindLPD, te.Kind)
	assert.Contains(t, err.Error(), "not acknowledged")
}

func TestLPDTransportClosed(t *testing.T) {
	tr := NewLPDTransport(func() (net.Conn, error) {
		return nil, errors.New("should not dial")
	}, "", 0, nil)

	require.NoError(t, tr.Close())
	err := tr.Send([]byte("x"))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestOpenLPDRequiresAddress(t *testing.T) {
	_, err := NewOpener(nil).Open(TransportConfig{Kind: KindLPD})
	assert.Error(t, err)
}

func TestSerialMode(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		mode, err := serialMode(TransportConfig{})
		require.NoError(t, err)
		assert.Equal(t, 9600, mode.BaudRate)
		assert.Equal(t, 8, mode.DataBits)
		assert.Equal(t, serial.NoParity, mode.Parity)
		assert.Equal(t, serial.OneStopBit, mode.StopBits)
		assert.Nil(t, mode.InitialStatusBits)
	})

	t.Run("Custom", func(t *testing.T) {
		mode, err := serialMode(TransportConfig{
			BaudRate:  115200,
			DataBits:  7,
			Parity:    "even",
			StopBits:  2,
			Handshake: "rtscts",
		})
		require.NoError(t, err)
		assert.Equal(t, 115200, mode.BaudRate)
		assert.Equal(t, 7, mode.DataBits)
		assert.Equal(t, serial.EvenParity, mode.Parity)
		assert.Equal(t, serial.TwoStopBits, mode.StopBits)
		require.NotNil(t, mode.InitialStatusBits)
		assert.True(t, mode.InitialStatusBits.RTS)
		assert.False(t, mode.InitialStatusBits.DTR)
	})

	t.Run("DTRHandshake", func(t *testing.T) {
		mode, err := serialMode(TransportConfig{Handshake: "dtrdsr", StopBits: 1.5, Parity: "O"})
		require.NoError(t, err)
		assert.True(t, mode.InitialStatusBits.DTR)
		assert.Equal(t, serial.OnePointFiveStopBits, mode.StopBits)
		assert.Equal(t, serial.OddParity, mode.Parity)
	})

	invalid := []TransportConfig{
		{DataBits: 9},
		{Parity: "sometimes"},
		{StopBits: 3},
		{Handshake: "xonxoff"},
	}
	for _, cfg := range invalid {
		_, err := serialMode(cfg)
		assert.Error(t, err, "%+v", cfg)
	}
}

func TestOpenSerialMissingPort(t *testing.T) {
	_, err := NewOpener(nil).Open(TransportConfig{Kind: KindSerial, Port: "/dev/escbuf-does-not-exist"})
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, KindSerial, te.Kind)
}

func TestOpenSerialRequiresPort(t *testing.T) {
	_, err := NewOpener(nil).Open(TransportConfig{})
	assert.Error(t, err)
}

func TestOpenUSB(t *testing.T) {
	p := New()
	if err := p.Initialize(TransportConfig{Kind: KindUSB}); err != nil {
		t.Skip("No USB printer found, skipping test")
	}
	defer p.Close()

	assert.True(t, p.Ready())
}
