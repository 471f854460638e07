package printer

import (
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LPDTransport submits every Send as one RFC 1179 print job on a fresh
// connection.
type LPDTransport struct {
	dial    func() (net.Conn, error)
	queue   string
	timeout time.Duration
	logger  *zap.Logger

	closed bool
	mu     sync.Mutex
}

// NewLPDTransport returns a transport that calls dial once per job.
func NewLPDTransport(dial func() (net.Conn, error), queue string, timeout time.Duration, logger *zap.Logger) *LPDTransport {
	if queue == "" {
		queue = "lp"
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LPDTransport{
		dial:    dial,
		queue:   queue,
		timeout: timeout,
		logger:  logger,
	}
}

func openLPD(cfg TransportConfig, logger *zap.Logger) (Transport, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("lpd address is required")
	}
	addr := withDefaultPort(cfg.Address, lpdPort)
	timeout := cfg.timeout()
	dial := func() (net.Conn, error) {
		return net.DialTimeout("tcp", addr, timeout)
	}
	return NewLPDTransport(dial, cfg.Queue, timeout, logger.With(zap.String("address", addr))), nil
}

func (l *LPDTransport) Send(data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return &TransportError{Kind: KindLPD, Op: "send", Err: io.ErrClosedPipe}
	}

	conn, err := l.dial()
	if err != nil {
		return &TransportError{Kind: KindLPD, Op: "send", Err: fmt.Errorf("dial: %w", err)}
	}
	defer conn.Close()

	if err := l.submitJob(conn, data); err != nil {
		l.logger.Error("job failed", zap.Error(err))
		return &TransportError{Kind: KindLPD, Op: "send", Err: err}
	}
	return nil
}

func (l *LPDTransport) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

func (l *LPDTransport) submitJob(conn net.Conn, data []byte) error {
	host, _ := os.Hostname()
	if host == "" {
		host = "localhost"
	}
	user := os.Getenv("USER")
	if user == "" {
		user = "escbuf"
	}

	jobID := int(time.Now().UnixNano() % 1000)
	hostShort := host
	if i := strings.IndexByte(hostShort, '.'); i > 0 {
		hostShort = hostShort[:i]
	}
	jobName := "escbuf-" + uuid.NewString()
	cfName := fmt.Sprintf("cfA%03d%s", jobID, hostShort)
	dfName := fmt.Sprintf("dfA%03d%s", jobID, hostShort)

	// H host, P user, J job name, N source file name, l data file printed raw
	control := fmt.Sprintf(
		"H%s\nP%s\nJ%s\nN%s\nl%s\n",
		host, user, jobName, dfName, dfName,
	)

	if err := l.requestPrintJob(conn); err != nil {
		return fmt.Errorf("stage 1: %w", err)
	}
	if err := l.sendFile(conn, 0x02, cfName, []byte(control)); err != nil {
		return fmt.Errorf("stage 2: %w", err)
	}
	if err := l.sendFile(conn, 0x03, dfName, data); err != nil {
		return fmt.Errorf("stage 3: %w", err)
	}

	l.logger.Debug("job accepted",
		zap.String("queue", l.queue),
		zap.String("job", jobName),
		zap.Int("bytes", len(data)),
	)
	return nil
}

// requestPrintJob sends \x02<queue>\n.
func (l *LPDTransport) requestPrintJob(conn net.Conn) error {
	if err := writeAll(conn, []byte("\x02"+l.queue+"\n")); err != nil {
		return err
	}
	return l.readAck(conn)
}

// sendFile sends <code><size> <name>\n, the contents, then a NUL.
func (l *LPDTransport) sendFile(conn net.Conn, code byte, name string, contents []byte) error {
	header := []byte(string(code) + strconv.Itoa(len(contents)) + " " + name + "\n")
	if err := writeAll(conn, header); err != nil {
		return err
	}
	if err := l.readAck(conn); err != nil {
		return err
	}
	if err := writeAll(conn, contents); err != nil {
		return err
	}
	if err := writeAll(conn, []byte{0x00}); err != nil {
		return err
	}
	return l.readAck(conn)
}

func (l *LPDTransport) readAck(conn net.Conn) error {
	_ = conn.SetReadDeadline(time.Now().Add(l.timeout))
	defer conn.SetReadDeadline(time.Time{})

	ack := make([]byte, 1)
	if _, err := io.ReadFull(conn, ack); err != nil {
		return fmt.Errorf("read ack: %w", err)
	}
	if ack[0] != 0x00 {
		return fmt.Errorf("request not acknowledged (0x%02x)", ack[0])
	}
	return nil
}
