//go:build !linux && !darwin && !freebsd && !netbsd

package tun

import (
	"fmt"
	"runtime"
)

func Open(cfg Config) (Tun, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, runtime.GOOS)
}
