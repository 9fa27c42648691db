package voice

import "encoding/json"

// Intents defined by the smart-home fulfillment contract.
const (
	IntentSync       = "action.devices.SYNC"
	IntentQuery      = "action.devices.QUERY"
	IntentExecute    = "action.devices.EXECUTE"
	IntentDisconnect = "action.devices.DISCONNECT"
)

// CommandStartStop is the only execution command with plant semantics;
// start=true waters the plant, start=false is a no-op.
const CommandStartStop = "action.devices.commands.StartStop"

// Device type and trait reported during SYNC.
const (
	DeviceTypeSprinkler = "action.devices.types.SPRINKLER"
	TraitStartStop      = "action.devices.traits.StartStop"
)

// ErrorCode is the closed vendor enum surfaced to the platform. Values
// outside this set must never cross the boundary.
type ErrorCode string

const (
	ErrorCodeDeviceNotFound ErrorCode = "deviceNotFound"
	ErrorCodeTransient      ErrorCode = "transientError"
	ErrorCodeNotSupported   ErrorCode = "functionNotSupported"
	ErrorCodeAuthFailure    ErrorCode = "authFailure"
)

// Per-device status values.
const (
	StatusSuccess = "SUCCESS"
	StatusError   = "ERROR"
	StatusOffline = "OFFLINE"
)

// FulfillmentRequest is the inbound envelope for all four intents.
type FulfillmentRequest struct {
	RequestID string             `json:"requestId"`
	Inputs    []FulfillmentInput `json:"inputs"`
}

// FulfillmentInput carries one intent and its intent-specific payload.
type FulfillmentInput struct {
	Intent  string          `json:"intent"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// FulfillmentResponse echoes the request id with an intent-shaped payload.
type FulfillmentResponse struct {
	RequestID string `json:"requestId"`
	Payload   any    `json:"payload"`
}

// SyncPayload lists every device the user exposed.
type SyncPayload struct {
	AgentUserID string    `json:"agentUserId"`
	Devices     []Device  `json:"devices"`
	ErrorCode   ErrorCode `json:"errorCode,omitempty"`
}

// QueryRequest names the devices whose state is wanted.
type QueryRequest struct {
	Devices []DeviceRef `json:"devices"`
}

// QueryPayload maps device id to its computed state.
type QueryPayload struct {
	Devices map[string]DeviceState `json:"devices"`
}

// ExecuteRequest carries command batches.
type ExecuteRequest struct {
	Commands []ExecuteCommand `json:"commands"`
}

// ExecuteCommand applies every execution to every listed device.
type ExecuteCommand struct {
	Devices   []DeviceRef `json:"devices"`
	Execution []Execution `json:"execution"`
}

// Execution is a single command with free-form parameters.
type Execution struct {
	Command string         `json:"command"`
	Params  map[string]any `json:"params,omitempty"`
}

// ExecutePayload groups per-device outcomes; devices sharing an outcome are
// reported in one entry.
type ExecutePayload struct {
	Commands []ExecuteResult `json:"commands"`
}

// ExecuteResult is one outcome bucket of an EXECUTE batch.
type ExecuteResult struct {
	IDs       []string     `json:"ids"`
	Status    string       `json:"status"`
	States    *DeviceState `json:"states,omitempty"`
	ErrorCode ErrorCode    `json:"errorCode,omitempty"`
}

// DeviceRef identifies a device by its platform id.
type DeviceRef struct {
	ID string `json:"id"`
}

// Device is the platform-facing representation of a plant, rebuilt on every
// SYNC and never cached.
type Device struct {
	ID              string     `json:"id"`
	Type            string     `json:"type"`
	Traits          []string   `json:"traits"`
	Name            DeviceName `json:"name"`
	WillReportState bool       `json:"willReportState"`
	RoomHint        string     `json:"roomHint,omitempty"`
}

// DeviceName holds the display name plus voice-matchable aliases.
type DeviceName struct {
	Name         string   `json:"name"`
	DefaultNames []string `json:"defaultNames,omitempty"`
	Nicknames    []string `json:"nicknames,omitempty"`
}

// DeviceState is a point-in-time answer for QUERY and EXECUTE responses.
// IsRunning and IsPaused are always false: watering is instantaneous in this
// domain, there is nothing to stop or pause.
type DeviceState struct {
	Online       bool      `json:"online"`
	Status       string    `json:"status"`
	IsRunning    bool      `json:"isRunning"`
	IsPaused     bool      `json:"isPaused"`
	StatusReport string    `json:"statusReport,omitempty"`
	ErrorCode    ErrorCode `json:"errorCode,omitempty"`
}
