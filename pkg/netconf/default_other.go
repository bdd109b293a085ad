//go:build !linux

package netconf

func Default() Configurator {
	return NewIPCommand()
}
