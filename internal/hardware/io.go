package hardware

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"

	"driver-controls/internal/event"
	"driver-controls/internal/logger"
	"driver-controls/internal/timer"
)

// Raiser queues events. *event.Queue implements it.
type Raiser interface {
	Raise(id event.ID, data uint16) error
	RaisePriority(p event.Priority, id event.ID, data uint16) error
}

// InputLine maps one GPIO input to events. Press is raised on the active
// edge, Release on the inactive one; a zero ID raises nothing.
type InputLine struct {
	Name      string
	Offset    int
	ActiveLow bool
	// Level inputs (switches) report their state at startup; momentary
	// buttons do not.
	Level   bool
	Press   event.ID
	Release event.ID
	Data    uint16
	// Priority of both events. The zero value is PriorityHighest, so
	// callers set it explicitly; config defaults it to normal.
	Priority event.Priority
}

// Inputs requests input lines with edge detection and turns edges into
// events.
type Inputs struct {
	chip     string
	debounce time.Duration
	byOffset map[int]InputLine
	raiser   Raiser
	log      *logger.Logger

	mu    sync.Mutex
	lines []*gpiocdev.Line
}

func NewInputs(chip string, debounce time.Duration, lines []InputLine, raiser Raiser, log *logger.Logger) *Inputs {
	if log == nil {
		log = logger.Discard()
	}
	byOffset := make(map[int]InputLine, len(lines))
	for _, l := range lines {
		byOffset[l.Offset] = l
	}
	return &Inputs{
		chip:     chip,
		debounce: debounce,
		byOffset: byOffset,
		raiser:   raiser,
		log:      log.WithTag("gpio"),
	}
}

func (in *Inputs) Start() error {
	in.mu.Lock()
	defer in.mu.Unlock()

	for _, cfg := range in.byOffset {
		opts := []gpiocdev.LineReqOption{
			gpiocdev.WithConsumer(Consumer),
			gpiocdev.AsInput,
			gpiocdev.WithBothEdges,
			gpiocdev.WithEventHandler(in.handle),
		}
		if in.debounce > 0 {
			opts = append(opts, gpiocdev.WithDebounce(in.debounce))
		}
		if cfg.ActiveLow {
			opts = append(opts, gpiocdev.AsActiveLow)
		}

		line, err := gpiocdev.RequestLine(in.chip, cfg.Offset, opts...)
		if err != nil {
			return fmt.Errorf("failed to request input %s (%s:%d): %w", cfg.Name, in.chip, cfg.Offset, err)
		}
		in.lines = append(in.lines, line)
		in.log.Infof("Configured input %s: chip=%s, line=%d", cfg.Name, in.chip, cfg.Offset)

		if !cfg.Level {
			continue
		}
		v, err := line.Value()
		if err != nil {
			in.log.Warnf("Failed to read initial state of %s: %v", cfg.Name, err)
			continue
		}
		in.level(cfg, v == 1)
	}
	return nil
}

func (in *Inputs) handle(evt gpiocdev.LineEvent) {
	cfg, ok := in.byOffset[evt.Offset]
	if !ok {
		in.log.Warnf("Edge on unknown line %d", evt.Offset)
		return
	}
	in.level(cfg, evt.Type == gpiocdev.LineEventRisingEdge)
}

func (in *Inputs) level(cfg InputLine, active bool) {
	id := cfg.Release
	if active {
		id = cfg.Press
	}
	if id == 0 {
		return
	}

	in.log.Debugf("Input %s active=%v", cfg.Name, active)
	if err := in.raiser.RaisePriority(cfg.Priority, id, cfg.Data); err != nil {
		in.log.Errorf("Dropped input %s: %v", cfg.Name, err)
	}
}

func (in *Inputs) Close() error {
	in.mu.Lock()
	defer in.mu.Unlock()

	var errs []error
	for _, l := range in.lines {
		errs = append(errs, l.Close())
	}
	in.lines = nil
	return errors.Join(errs...)
}

// Config describes all hardware the service drives.
type Config struct {
	Chip     string
	Debounce time.Duration
	Inputs   []InputLine
	Outputs  []OutputLine

	// ADCDevice is an IIO device name or directory. Empty disables the
	// throttle.
	ADCDevice      string
	Throttle       Calibration
	ThrottlePeriod time.Duration
	ThrottleEvents ThrottleEvents
}

// LinuxHardwareIO owns every hardware resource of the service.
type LinuxHardwareIO struct {
	cfg Config
	log *logger.Logger

	inputs   *Inputs
	outputs  *Outputs
	adc      *ADC
	throttle *Throttle
}

func NewLinuxHardwareIO(cfg Config, log *logger.Logger) *LinuxHardwareIO {
	if log == nil {
		log = logger.Discard()
	}
	return &LinuxHardwareIO{cfg: cfg, log: log.WithTag("hardware")}
}

// Initialize requests all lines, opens the ADC and starts sampling. Events
// are raised through raiser from gpiocdev and timer goroutines.
func (io *LinuxHardwareIO) Initialize(raiser Raiser, timers *timer.Service) error {
	io.log.Infof("Initializing hardware IO")

	io.outputs = NewOutputs(io.cfg.Chip, io.cfg.Outputs, io.log)
	if err := io.outputs.Start(); err != nil {
		return err
	}

	io.inputs = NewInputs(io.cfg.Chip, io.cfg.Debounce, io.cfg.Inputs, raiser, io.log)
	if err := io.inputs.Start(); err != nil {
		return err
	}

	if io.cfg.ADCDevice == "" {
		io.log.Infof("No ADC configured, throttle disabled")
		return nil
	}

	cal := io.cfg.Throttle
	adc, err := OpenADC(io.cfg.ADCDevice, cal.MainChannel, cal.SecondaryChannel)
	if err != nil {
		return err
	}
	io.adc = adc

	io.throttle, err = NewThrottle(cal, adc, raiser, timers, io.cfg.ThrottlePeriod, io.cfg.ThrottleEvents, io.log)
	if err != nil {
		return err
	}
	return io.throttle.Start()
}

// SetLine drives a named output.
func (io *LinuxHardwareIO) SetLine(name string, on bool) error {
	if io.outputs == nil {
		return fmt.Errorf("hardware not initialized")
	}
	return io.outputs.SetLine(name, on)
}

// ThrottlePosition is the last valid throttle reading.
func (io *LinuxHardwareIO) ThrottlePosition() (Position, bool) {
	if io.throttle == nil {
		return Position{}, false
	}
	return io.throttle.Position()
}

func (io *LinuxHardwareIO) Cleanup() {
	io.log.Infof("Cleaning up hardware resources")

	if io.throttle != nil {
		io.throttle.Stop()
	}
	if io.adc != nil {
		if err := io.adc.Close(); err != nil {
			io.log.Warnf("Failed to close ADC: %v", err)
		}
	}
	if io.inputs != nil {
		if err := io.inputs.Close(); err != nil {
			io.log.Warnf("Failed to release inputs: %v", err)
		}
	}
	if io.outputs != nil {
		if err := io.outputs.Close(); err != nil {
			io.log.Warnf("Failed to release outputs: %v", err)
		}
	}

	io.log.Infof("Hardware cleanup complete")
}
