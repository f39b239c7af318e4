package schema

import "encoding/json"

// Request/reply subjects. These form the complete capability surface of the
// daemon; no other subject is answered.
const (
	SubjectPresets    = "simforge.v1.presets"
	SubjectStart      = "simforge.v1.start"
	SubjectCancel     = "simforge.v1.cancel"
	SubjectStatus     = "simforge.v1.status"
	SubjectExportJSON = "simforge.v1.export.json"
	SubjectExportCSV  = "simforge.v1.export.csv"
)

// Event subjects. Subscribers joining late receive no replay; SubjectStatus
// is the catch-up mechanism.
const (
	SubjectEvtStarted  = "simforge.v1.evt.started"
	SubjectEvtProgress = "simforge.v1.evt.progress"
)

// Envelope error codes.
const (
	CodeAlreadyRunning = "already_running"
	CodeInvalidPayload = "invalid_payload"
	CodeExportFailure  = "export_failure"
	CodeInternal       = "internal"
)

// Envelope wraps every reply. Exactly one of Error and Data is meaningful.
type Envelope struct {
	OK    bool            `json:"ok"`
	Error *ErrorInfo      `json:"error,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type StartRequest struct {
	Params SimulationParams `json:"params"`
}

type StartReply struct {
	JobID string `json:"job_id"`
}

type CancelReply struct {
	Cancelled bool `json:"cancelled"`
}

type PresetsReply struct {
	Presets []Preset `json:"presets"`
}

type ExportJSONRequest struct {
	Name string          `json:"name"`
	Data json.RawMessage `json:"data"`
}

type ExportCSVRequest struct {
	Name   string     `json:"name"`
	Header []string   `json:"header,omitempty"`
	Rows   [][]string `json:"rows"`
}

type ExportReply struct {
	Path string `json:"path"`
}
