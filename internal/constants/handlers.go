package constants

// Handler constants
const (
	// SearchLimit is the maximum number of candidates returned by a manual lookup
	SearchLimit = 10

	// MaxRequestBodyBytes bounds JSON request bodies
	MaxRequestBodyBytes = 1 << 20
)

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for record stream listeners
	EventChannelBuffer = 100
)

// Device tags identify the capture path of an access record.
const (
	DeviceUnknown         = "unknown"
	DeviceScan            = "scan_web"
	DeviceSimulation      = "sim_btn_web"
	DeviceManualEntry     = "manual_entry_web"
	DeviceManualConfirmed = "manual_entry_web_confirmed"
	DeviceNewEntry        = "new_entry_web"
	DeviceCompanion       = "manual_companion"
	DeviceCheckout        = "checkout_totem"
)
