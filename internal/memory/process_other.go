//go:build !linux && !windows

package memory

type handle struct{}

func openHandle(int) (handle, error) {
	return handle{}, ErrUnsupportedPlatform
}

func (handle) read(Address, []byte) error {
	return ErrUnsupportedPlatform
}

func (handle) close() error {
	return nil
}

func (handle) modules(int) ([]Module, error) {
	return nil, ErrUnsupportedPlatform
}
