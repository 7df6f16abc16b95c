package types

// MessageType tags the JSON lines the CLI emits on stdout.
type MessageType string

const (
	ConnectionStatusMessage MessageType = "CONNECTION_STATUS"
	BatchMessage            MessageType = "BATCH"
)

type ConnectionStatus string

const (
	ConnectionSucceed ConnectionStatus = "SUCCEEDED"
	ConnectionFailed  ConnectionStatus = "FAILED"
)

type StatusRow struct {
	Status  ConnectionStatus `json:"status"`
	Message string           `json:"message,omitempty"`
}

// Message is the envelope for everything the CLI emits.
type Message struct {
	Type             MessageType `json:"type"`
	ConnectionStatus *StatusRow  `json:"connectionStatus,omitempty"`
	Batch            *Batch      `json:"batch,omitempty"`
}
