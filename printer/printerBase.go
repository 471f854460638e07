package printer

import (
	"github.com/AlexStarov/escbuf/command"
)

// appendOp appends the result of an encoder call. A failed encode appends
// nothing. The state check comes first so an uninitialized printer always
// reports ErrInvalidState.
func (p *Printer) appendOp(b []byte, err error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.t == nil {
		return ErrInvalidState
	}
	if err != nil {
		return err
	}
	p.buf = append(p.buf, b...)
	return nil
}

// LineFeed appends n line feeds. n <= 0 appends nothing.
func (p *Printer) LineFeed(n int) error {
	return p.Append(command.LineFeed(n))
}

// CarriageReturn appends CR.
func (p *Printer) CarriageReturn() error {
	return p.Append(command.CarriageReturn())
}

// CutPaper appends a cut. The knife sits about ten lines above the print
// head, so autoFeed feeds the end of the ticket past it first.
func (p *Printer) CutPaper(autoFeed bool) error {
	return p.Append(command.Cut(autoFeed))
}

// SetLeftRightMargins appends the margin command.
func (p *Printer) SetLeftRightMargins(x, x2 byte) error {
	return p.Append(command.LeftRightMargins(x, x2))
}

// SetJustify appends the justification command for j.
func (p *Printer) SetJustify(j command.Justify) error {
	return p.Append(command.SetJustify(j))
}

func (p *Printer) SetLeftJustify() error   { return p.SetJustify(command.Left) }
func (p *Printer) SetCenterJustify() error { return p.SetJustify(command.Center) }
func (p *Printer) SetRightJustify() error  { return p.SetJustify(command.Right) }

// DrawBarcode appends a barcode. width and height are sent as is.
func (p *Printer) DrawBarcode(data []byte, width, height byte) error {
	return p.Append(command.Barcode(data, width, height))
}

// DrawBarcodeString is DrawBarcode with s encoded as Windows-1252.
func (p *Printer) DrawBarcodeString(s string, width, height byte) error {
	data, err := command.EncodeText(s)
	if err != nil {
		return p.appendOp(nil, err)
	}
	return p.DrawBarcode(data, width, height)
}

// WriteText appends the justification for j followed by s.
func (p *Printer) WriteText(s string, j command.Justify) error {
	return p.appendOp(command.Text(s, j))
}

// WriteLine is WriteText followed by CR LF.
func (p *Printer) WriteLine(s string, j command.Justify) error {
	return p.appendOp(command.Line(s, j))
}

func (p *Printer) WriteAlignLeft(s string) error   { return p.WriteText(s, command.Left) }
func (p *Printer) WriteAlignCenter(s string) error { return p.WriteText(s, command.Center) }
func (p *Printer) WriteAlignRight(s string) error  { return p.WriteText(s, command.Right) }

func (p *Printer) WriteLineAlignLeft(s string) error   { return p.WriteLine(s, command.Left) }
func (p *Printer) WriteLineAlignCenter(s string) error { return p.WriteLine(s, command.Center) }
func (p *Printer) WriteLineAlignRight(s string) error  { return p.WriteLine(s, command.Right) }
