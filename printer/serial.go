package printer

import (
	"fmt"
	"os"
	"slices"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

// serialMode builds the port mode from cfg. Zero values fall back to 9600 8N1.
func serialMode(cfg TransportConfig) (*serial.Mode, error) {
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
	}
	if mode.BaudRate == 0 {
		mode.BaudRate = 9600
	}
	if mode.DataBits == 0 {
		mode.DataBits = 8
	}
	if mode.DataBits < 5 || mode.DataBits > 8 {
		return nil, fmt.Errorf("invalid data bits %d", mode.DataBits)
	}

	switch cfg.Parity {
	case "", "none", "N":
		mode.Parity = serial.NoParity
	case "odd", "O":
		mode.Parity = serial.OddParity
	case "even", "E":
		mode.Parity = serial.EvenParity
	case "mark", "M":
		mode.Parity = serial.MarkParity
	case "space", "S":
		mode.Parity = serial.SpaceParity
	default:
		return nil, fmt.Errorf("invalid parity %q", cfg.Parity)
	}

	switch cfg.StopBits {
	case 0, 1:
		mode.StopBits = serial.OneStopBit
	case 1.5:
		mode.StopBits = serial.OnePointFiveStopBits
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("invalid stop bits %v", cfg.StopBits)
	}

	// The library has no flow control setting; assert the line the printer
	// waits on instead.
	switch cfg.Handshake {
	case "", "none":
	case "rtscts":
		mode.InitialStatusBits = &serial.ModemOutputBits{RTS: true}
	case "dtrdsr":
		mode.InitialStatusBits = &serial.ModemOutputBits{DTR: true}
	default:
		return nil, fmt.Errorf("invalid handshake %q", cfg.Handshake)
	}

	return mode, nil
}

// ValidateSerial reports whether cfg describes a usable serial line.
// Parity accepts both names (none, odd, even, mark, space) and their
// single-letter forms (N, O, E, M, S).
func ValidateSerial(cfg TransportConfig) error {
	_, err := serialMode(cfg)
	return err
}

func openSerial(cfg TransportConfig, logger *zap.Logger) (Transport, error) {
	if cfg.Port == "" {
		return nil, fmt.Errorf("serial port is required")
	}

	mode, err := serialMode(cfg)
	if err != nil {
		return nil, err
	}

	// Some devices (e.g. /dev/cu.usbmodem*) are missing from the list, so an
	// existing path is accepted as well.
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	if !slices.Contains(ports, cfg.Port) {
		if _, statErr := os.Stat(cfg.Port); statErr != nil {
			logger.Warn("port not found", zap.String("port", cfg.Port), zap.Strings("available", ports))
			return nil, fmt.Errorf("serial port %s not found", cfg.Port)
		}
	}

	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Port, err)
	}
	if err := port.SetReadTimeout(cfg.timeout()); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	logger.Info("serial port opened",
		zap.String("port", cfg.Port),
		zap.Int("baud_rate", mode.BaudRate),
		zap.String("handshake", cfg.Handshake),
	)
	return NewRawTransport(KindSerial, port, logger), nil
}
