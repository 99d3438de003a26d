package hardware

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

// ADC reads raw samples from an IIO device. Channel files are opened once
// and re-read with pread so sampling does not reopen sysfs files.
type ADC struct {
	dir string

	mu  sync.Mutex
	fds map[int]int
	buf [32]byte
}

// OpenADC opens the raw value files of the given channels. device is either
// an IIO device name ("iio:device0") or a directory path.
func OpenADC(device string, channels ...int) (*ADC, error) {
	dir := device
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(IIODevicesDir, device)
	}

	a := &ADC{dir: dir, fds: make(map[int]int)}
	for _, ch := range channels {
		if _, ok := a.fds[ch]; ok {
			continue
		}
		path := a.path(ch)
		fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to open ADC channel %s: %w", path, err)
		}
		a.fds[ch] = fd
	}
	return a, nil
}

func (a *ADC) path(channel int) string {
	return filepath.Join(a.dir, fmt.Sprintf("in_voltage%d_raw", channel))
}

// Read returns the current raw value of an opened channel.
func (a *ADC) Read(channel int) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	fd, ok := a.fds[channel]
	if !ok {
		return -1, fmt.Errorf("ADC channel %d not open", channel)
	}

	n, err := unix.Pread(fd, a.buf[:], 0)
	if err != nil {
		return -1, fmt.Errorf("failed reading %s: %w", a.path(channel), err)
	}

	value, err := strconv.Atoi(strings.TrimSpace(string(a.buf[:n])))
	if err != nil {
		return -1, fmt.Errorf("failed parsing ADC value: %w", err)
	}
	return value, nil
}

func (a *ADC) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	for ch, fd := range a.fds {
		errs = append(errs, unix.Close(fd))
		delete(a.fds, ch)
	}
	return errors.Join(errs...)
}
