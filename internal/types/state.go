package types

// ServiceState is the lifecycle of the service, not of any vehicle
// machine.
type ServiceState string

const (
	StateInit         ServiceState = "init"
	StateRunning      ServiceState = "running"
	StateShuttingDown ServiceState = "shutting-down"
	StateStopped      ServiceState = "stopped"
)
