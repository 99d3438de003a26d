package controls

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"driver-controls/internal/logger"
	"driver-controls/internal/timer"
)

// DriveSource is one input of the periodic drive command.
type DriveSource int

const (
	SourceThrottle DriveSource = iota
	SourceDirection
	SourceCruise
	SourceMechBrake
	numDriveSources
)

// Direction values carried in the drive command.
const (
	DriveDirectionNeutral int16 = iota
	DriveDirectionForward
	DriveDirectionReverse
)

// DefaultDrivePeriod is how often the drive command is broadcast.
const DefaultDrivePeriod = 100 * time.Millisecond

var ErrInvalidSource = errors.New("invalid drive output source")

// DriveData is one drive command.
type DriveData struct {
	Throttle  int16
	Direction int16
	Cruise    int16
	MechBrake int16
}

func (d DriveData) String() string {
	return fmt.Sprintf("throttle=%d direction=%d cruise=%d brake=%d", d.Throttle, d.Direction, d.Cruise, d.MechBrake)
}

// DriveOutput collects the latest value of every source and, while enabled,
// broadcasts them on a fixed period. Each broadcast also raises
// DriveUpdateRequested so the machines refresh their values for the next one.
type DriveOutput struct {
	mu      sync.Mutex
	data    [numDriveSources]int16
	enabled bool
	timerID timer.ID

	timers *timer.Service
	raiser Raiser
	tx     Transmitter
	period time.Duration
	log    *logger.Logger
}

func NewDriveOutput(timers *timer.Service, raiser Raiser, tx Transmitter, period time.Duration, log *logger.Logger) *DriveOutput {
	if period <= 0 {
		period = DefaultDrivePeriod
	}
	if log == nil {
		log = logger.Discard()
	}
	return &DriveOutput{
		timerID: timer.InvalidID,
		timers:  timers,
		raiser:  raiser,
		tx:      tx,
		period:  period,
		log:     log.WithTag("drive"),
	}
}

// Update stores the latest value of one source.
func (d *DriveOutput) Update(src DriveSource, v int16) error {
	if src < 0 || src >= numDriveSources {
		return fmt.Errorf("%w: %d", ErrInvalidSource, src)
	}

	d.mu.Lock()
	d.data[src] = v
	d.mu.Unlock()
	return nil
}

func (d *DriveOutput) Data() DriveData {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshot()
}

func (d *DriveOutput) snapshot() DriveData {
	return DriveData{
		Throttle:  d.data[SourceThrottle],
		Direction: d.data[SourceDirection],
		Cruise:    d.data[SourceCruise],
		MechBrake: d.data[SourceMechBrake],
	}
}

func (d *DriveOutput) Enabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.enabled
}

// SetEnabled starts or stops the periodic broadcast. Enabling an enabled
// output restarts the period.
func (d *DriveOutput) SetEnabled(enabled bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timerID != timer.InvalidID {
		d.timers.Cancel(d.timerID)
		d.timerID = timer.InvalidID
	}
	d.enabled = enabled
	if !enabled {
		return nil
	}

	id, err := d.timers.Start(d.period, d.broadcast, nil)
	if err != nil {
		d.enabled = false
		return fmt.Errorf("failed to start drive broadcast: %w", err)
	}
	d.timerID = id
	return nil
}

func (d *DriveOutput) broadcast(id timer.ID, _ any) {
	d.mu.Lock()
	if !d.enabled || id != d.timerID {
		d.mu.Unlock()
		return
	}

	data := d.snapshot()
	next, err := d.timers.Start(d.period, d.broadcast, nil)
	if err != nil {
		d.log.Errorf("Failed to re-arm drive broadcast: %v", err)
		d.enabled = false
		next = timer.InvalidID
	}
	d.timerID = next
	d.mu.Unlock()

	if d.raiser != nil {
		if err := d.raiser.Raise(DriveUpdateRequested, 0); err != nil {
			d.log.Warnf("Failed to request drive update: %v", err)
		}
	}

	// Regen braking is not commanded through the throttle.
	if data.Throttle < 0 {
		data.Throttle = 0
	}
	if d.tx != nil {
		if err := d.tx.Transmit(Message{Field: FieldDrive, Value: data.String()}); err != nil {
			d.log.Warnf("Failed to transmit drive command: %v", err)
		}
	}
}
