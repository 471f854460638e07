package printer

import (
	"bytes"
	"errors"
	"sync"

	"go.uber.org/zap"

	imgInternal "github.com/AlexStarov/escbuf/image"
)

// ImageSource loads the raw bytes of an image for DrawImage.
type ImageSource interface {
	Load(path string) ([]byte, error)
}

// Printer accumulates encoded commands for one printer and sends them to its
// transport on Flush. All methods are safe for concurrent use.
type Printer struct {
	mu sync.Mutex

	// pending, unsent commands
	buf []byte

	// destination; nil until Initialize or Attach
	t Transport

	opener Opener
	images ImageSource
	logger *zap.Logger
}

// Option configures a Printer.
type Option func(*Printer)

// WithOpener sets how Initialize turns a TransportConfig into a Transport.
func WithOpener(o Opener) Option {
	return func(p *Printer) { p.opener = o }
}

// WithImageSource sets where DrawImage(ImagePath) reads images from.
func WithImageSource(s ImageSource) Option {
	return func(p *Printer) { p.images = s }
}

// WithLogger sets the logger used for printer lifecycle events.
func WithLogger(l *zap.Logger) Option {
	return func(p *Printer) { p.logger = l }
}

// New returns an uninitialized printer. Call Initialize or Attach before use.
func New(opts ...Option) *Printer {
	p := &Printer{
		opener: NewOpener(zap.NewNop()),
		images: imgInternal.FileSource{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	return p
}

// Initialize opens the transport described by cfg. A previously opened
// transport is closed once the new one is ready; if opening fails the
// printer keeps its current transport.
func (p *Printer) Initialize(cfg TransportConfig) error {
	t, err := p.opener.Open(cfg)
	if err != nil {
		return transportErr(cfg.Kind, "open", err)
	}
	return p.Attach(t)
}

// Attach initializes the printer with an already open transport. Once t is
// installed the swap has succeeded: a failure closing the previous transport
// is logged, not returned.
func (p *Printer) Attach(t Transport) error {
	if t == nil {
		return errors.New("printer: attach nil transport")
	}

	p.mu.Lock()
	old := p.t
	p.t = t
	p.mu.Unlock()

	if old != nil && old != t {
		if err := old.Close(); err != nil {
			p.logger.Warn("close previous transport", zap.Error(err))
		}
	}
	return nil
}

// Close releases the transport. The buffer is kept, but the printer must be
// initialized again before it can be used.
func (p *Printer) Close() error {
	p.mu.Lock()
	t := p.t
	p.t = nil
	p.mu.Unlock()

	if t == nil {
		return nil
	}
	return t.Close()
}

// Ready reports whether the printer has a transport.
func (p *Printer) Ready() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.t != nil
}

// Append adds b to the end of the buffer.
func (p *Printer) Append(b []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.t == nil {
		return ErrInvalidState
	}
	p.buf = append(p.buf, b...)
	return nil
}

// AppendInts appends each value truncated to its low byte.
func (p *Printer) AppendInts(v ...int) error {
	b := make([]byte, len(v))
	for i, n := range v {
		b[i] = byte(n)
	}
	return p.Append(b)
}

// Clear empties the buffer. The transport is not touched.
func (p *Printer) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.t == nil {
		return ErrInvalidState
	}
	p.buf = p.buf[:0]
	return nil
}

// SetBuffer replaces the buffer with a copy of b.
func (p *Printer) SetBuffer(b []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.t == nil {
		return ErrInvalidState
	}
	p.buf = append(p.buf[:0], b...)
	return nil
}

// Bytes returns a copy of the pending buffer.
func (p *Printer) Bytes() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]byte, len(p.buf))
	copy(out, p.buf)
	return out
}

// Len returns the number of pending bytes.
func (p *Printer) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buf)
}

// Flush sends a copy of the whole buffer to the transport in one Send. The
// buffer is kept.
func (p *Printer) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushLocked()
}

// FlushAndClear flushes, then empties the buffer if the send succeeded.
func (p *Printer) FlushAndClear() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.flushLocked(); err != nil {
		return err
	}
	p.buf = p.buf[:0]
	return nil
}

func (p *Printer) flushLocked() error {
	if p.t == nil {
		return ErrInvalidState
	}
	return p.t.Send(bytes.Clone(p.buf))
}
