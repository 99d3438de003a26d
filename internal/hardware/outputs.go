package hardware

import (
	"errors"
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"

	"driver-controls/internal/logger"
)

// OutputLine is one named digital output.
type OutputLine struct {
	Name    string
	Offset  int
	Initial bool
}

type valueSetter interface {
	SetValue(value int) error
	Close() error
}

// Outputs drives named GPIO output lines.
type Outputs struct {
	chip string
	cfg  []OutputLine
	log  *logger.Logger

	mu    sync.RWMutex
	lines map[string]valueSetter
}

func NewOutputs(chip string, cfg []OutputLine, log *logger.Logger) *Outputs {
	if log == nil {
		log = logger.Discard()
	}
	return &Outputs{
		chip:  chip,
		cfg:   cfg,
		log:   log.WithTag("gpio"),
		lines: make(map[string]valueSetter),
	}
}

func (o *Outputs) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, cfg := range o.cfg {
		val := 0
		if cfg.Initial {
			val = 1
		}

		line, err := gpiocdev.RequestLine(o.chip, cfg.Offset,
			gpiocdev.AsOutput(val),
			gpiocdev.WithConsumer(Consumer))
		if err != nil {
			return fmt.Errorf("failed to request output %s (%s:%d): %w", cfg.Name, o.chip, cfg.Offset, err)
		}

		o.lines[cfg.Name] = line
		o.log.Infof("Configured output %s: chip=%s, line=%d", cfg.Name, o.chip, cfg.Offset)
	}
	return nil
}

// SetLine drives the named output. Unknown names are an error.
func (o *Outputs) SetLine(name string, on bool) error {
	o.mu.RLock()
	line, ok := o.lines[name]
	o.mu.RUnlock()

	if !ok {
		return fmt.Errorf("unknown digital output: %s", name)
	}

	val := 0
	if on {
		val = 1
	}
	if err := line.SetValue(val); err != nil {
		return fmt.Errorf("failed to set output %s=%v: %w", name, on, err)
	}

	o.log.Debugf("Set output %s=%v", name, on)
	return nil
}

func (o *Outputs) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	var errs []error
	for name, line := range o.lines {
		errs = append(errs, line.Close())
		delete(o.lines, name)
	}
	return errors.Join(errs...)
}
