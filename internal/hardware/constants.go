package hardware

import "time"

const (
	// Consumer is the GPIO consumer label shown by gpioinfo.
	Consumer = "driver-controls"

	IIODevicesDir = "/sys/bus/iio/devices"

	// Denominator is full scale for throttle positions.
	Denominator = 4096

	DefaultDebounce       = 10 * time.Millisecond
	DefaultThrottlePeriod = 10 * time.Millisecond
)
