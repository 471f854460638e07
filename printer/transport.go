package printer

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

// Transport delivers a finished command buffer to a printer. Send must
// transmit all of data or fail. The printer passes a fresh copy on every
// Send, so data is the transport's to keep.
type Transport interface {
	Send(data []byte) error
	Close() error
}

const (
	KindSerial  = "serial"
	KindUSB     = "usb"
	KindTCP     = "tcp"
	KindLPD     = "lpd"
	KindSpooler = "spooler"
)

const (
	defaultTimeout = 5 * time.Second
	rawPort        = "9100"
	lpdPort        = "515"
)

// TransportConfig describes how to reach a printer. Only the fields used by
// Kind are read.
type TransportConfig struct {
	Kind string `mapstructure:"kind"`

	// serial
	Port      string  `mapstructure:"port"`
	BaudRate  int     `mapstructure:"baud_rate"`
	Parity    string  `mapstructure:"parity"`    // none, odd, even, mark, space
	DataBits  int     `mapstructure:"data_bits"` // 5-8
	StopBits  float64 `mapstructure:"stop_bits"` // 1, 1.5, 2
	Handshake string  `mapstructure:"handshake"` // none, rtscts, dtrdsr

	// usb; both zero selects the first printer-class device
	VendorID  uint16 `mapstructure:"vendor_id"`
	ProductID uint16 `mapstructure:"product_id"`

	// tcp, lpd; spooler uses Address as the printer name
	Address string `mapstructure:"address"`
	Queue   string `mapstructure:"queue"`

	Timeout time.Duration `mapstructure:"timeout"`
}

func (c TransportConfig) timeout() time.Duration {
	if c.Timeout <= 0 {
		return defaultTimeout
	}
	return c.Timeout
}

// Opener turns a TransportConfig into an open Transport.
type Opener interface {
	Open(cfg TransportConfig) (Transport, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(cfg TransportConfig) (Transport, error)

func (f OpenerFunc) Open(cfg TransportConfig) (Transport, error) { return f(cfg) }

// OpenFunc opens one kind of transport.
type OpenFunc func(cfg TransportConfig, logger *zap.Logger) (Transport, error)

var registry = xsync.NewMap[string, OpenFunc]()

func init() {
	RegisterTransport(KindSerial, openSerial)
	RegisterTransport(KindUSB, openUSB)
	RegisterTransport(KindTCP, openTCP)
	RegisterTransport(KindLPD, openLPD)
	RegisterTransport(KindSpooler, openSpooler)
}

// RegisterTransport makes kind available to NewOpener, replacing any
// earlier registration.
func RegisterTransport(kind string, fn OpenFunc) {
	registry.Store(kind, fn)
}

type registryOpener struct {
	logger *zap.Logger
}

// NewOpener returns an Opener that dispatches on TransportConfig.Kind.
// An empty Kind means serial.
func NewOpener(logger *zap.Logger) Opener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return registryOpener{logger: logger}
}

func (o registryOpener) Open(cfg TransportConfig) (Transport, error) {
	kind := cfg.Kind
	if kind == "" {
		kind = KindSerial
	}
	fn, ok := registry.Load(kind)
	if !ok {
		return nil, &TransportError{Kind: kind, Op: "open", Err: fmt.Errorf("unknown transport kind %q", kind)}
	}
	t, err := fn(cfg, o.logger.With(zap.String("transport", kind)))
	if err != nil {
		return nil, transportErr(kind, "open", err)
	}
	return t, nil
}

// -------------------- RAW --------------------

// RawTransport writes the buffer straight to a stream.
type RawTransport struct {
	kind   string
	conn   io.WriteCloser
	logger *zap.Logger
}

// NewRawTransport wraps conn. kind only labels errors and log lines.
func NewRawTransport(kind string, conn io.WriteCloser, logger *zap.Logger) *RawTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RawTransport{kind: kind, conn: conn, logger: logger}
}

func (r *RawTransport) Send(data []byte) error {
	if err := writeAll(r.conn, data); err != nil {
		r.logger.Error("send failed", zap.Int("bytes", len(data)), zap.Error(err))
		return &TransportError{Kind: r.kind, Op: "send", Err: err}
	}
	r.logger.Debug("sent", zap.Int("bytes", len(data)))
	return nil
}

func (r *RawTransport) Close() error {
	if err := r.conn.Close(); err != nil {
		return &TransportError{Kind: r.kind, Op: "close", Err: err}
	}
	return nil
}

// openTCP connects to a raw print port. An address on the LPD port gets an
// LPD transport instead, since such a server would not print raw data.
func openTCP(cfg TransportConfig, logger *zap.Logger) (Transport, error) {
	addr := withDefaultPort(cfg.Address, rawPort)
	if _, port, _ := net.SplitHostPort(addr); port == lpdPort {
		return openLPD(cfg, logger)
	}

	conn, err := net.DialTimeout("tcp", addr, cfg.timeout())
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	logger.Info("connected", zap.String("address", addr))
	return NewRawTransport(KindTCP, conn, logger), nil
}

// -------------------- helpers --------------------

func withDefaultPort(addr, port string) string {
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	return net.JoinHostPort(addr, port)
}

func writeAll(w io.Writer, b []byte) error {
	sent := 0
	for sent < len(b) {
		n, err := w.Write(b[sent:])
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		sent += n
	}
	return nil
}
