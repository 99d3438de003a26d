package core

import (
	"driver-controls/internal/controls"
	"driver-controls/internal/hardware"
	"driver-controls/internal/messaging"
	"driver-controls/internal/timer"
)

// MessagingClient defines the Redis operations needed by System
type MessagingClient interface {
	Connect() error
	StartListening(raiser messaging.Raiser) error
	Close() error

	Transmit(msg controls.Message) error

	ReportFaultPresent(code int, description string) error
	ReportFaultAbsent(code int) error
}

// HardwareIO defines the hardware operations needed by System
type HardwareIO interface {
	Initialize(raiser hardware.Raiser, timers *timer.Service) error
	Cleanup()

	SetLine(name string, on bool) error
	ThrottlePosition() (hardware.Position, bool)
}
