//go:build !windows

package printer

import (
	"errors"

	"go.uber.org/zap"
)

var errNoSpooler = errors.New("windows spooler printing is only supported on windows")

func openSpooler(TransportConfig, *zap.Logger) (Transport, error) {
	return nil, errNoSpooler
}
