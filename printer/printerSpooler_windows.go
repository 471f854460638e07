//go:build windows

package printer

import (
	"fmt"
	"io"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/windows"
)

// spoolerConn writes RAW documents through the Windows spooler. Each Send
// becomes one document so the spooler prints it without waiting for Close.
type spoolerConn struct {
	hPrinter windows.Handle
}

func (s *spoolerConn) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	docName, _ := windows.UTF16PtrFromString("ESC RAW Ticket")
	dataType, _ := windows.UTF16PtrFromString("RAW")
	di := docInfo1{
		pDocName:  docName,
		pDatatype: dataType,
	}

	r1, _, err := procStartDocPrinter.Call(uintptr(s.hPrinter), 1, uintptr(unsafe.Pointer(&di)))
	if r1 == 0 {
		return 0, fmt.Errorf("StartDocPrinter failed: %w", err)
	}
	defer procEndDocPrinter.Call(uintptr(s.hPrinter))

	procStartPagePrinter.Call(uintptr(s.hPrinter))
	defer procEndPagePrinter.Call(uintptr(s.hPrinter))

	var written uint32
	r1, _, err = procWritePrinter.Call(
		uintptr(s.hPrinter),
		uintptr(unsafe.Pointer(&p[0])),
		uintptr(len(p)),
		uintptr(unsafe.Pointer(&written)),
	)
	if r1 == 0 {
		return int(written), err
	}
	if int(written) != len(p) {
		return int(written), io.ErrShortWrite
	}
	return int(written), nil
}

func (s *spoolerConn) Close() error {
	procClosePrinter.Call(uintptr(s.hPrinter))
	return nil
}

// openSpooler opens the printer named by cfg.Address.
func openSpooler(cfg TransportConfig, logger *zap.Logger) (Transport, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("spooler printer name is required")
	}

	var hPrinter windows.Handle
	pname, err := windows.UTF16PtrFromString(cfg.Address)
	if err != nil {
		return nil, err
	}
	r1, _, err := procOpenPrinter.Call(
		uintptr(unsafe.Pointer(pname)),
		uintptr(unsafe.Pointer(&hPrinter)),
		0,
	)
	if r1 == 0 {
		return nil, fmt.Errorf("failed to open printer %q: %w", cfg.Address, err)
	}

	logger.Info("spooler printer opened", zap.String("printer", cfg.Address))
	return NewRawTransport(KindSpooler, &spoolerConn{hPrinter: hPrinter}, logger), nil
}

// --- WinAPI binding ---
var (
	modwinspool          = windows.NewLazySystemDLL("winspool.drv")
	procOpenPrinter      = modwinspool.NewProc("OpenPrinterW")
	procClosePrinter     = modwinspool.NewProc("ClosePrinter")
	procStartDocPrinter  = modwinspool.NewProc("StartDocPrinterW")
	procEndDocPrinter    = modwinspool.NewProc("EndDocPrinter")
	procStartPagePrinter = modwinspool.NewProc("StartPagePrinter")
	procEndPagePrinter   = modwinspool.NewProc("EndPagePrinter")
	procWritePrinter     = modwinspool.NewProc("WritePrinter")
)

type docInfo1 struct {
	pDocName    *uint16
	pOutputFile *uint16
	pDatatype   *uint16
}
