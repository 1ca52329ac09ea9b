package core

import (
	"encoding/json"
	"io"

	"github.com/JonMunkholm/apdupes/internal/detect"
	"github.com/JonMunkholm/apdupes/internal/ledger"
)

// RequestType selects what an Engine does with a file.
type RequestType string

const (
	RequestParseHeaders RequestType = "parse-headers"
	RequestProcess      RequestType = "process"
)

// File is the ledger an analysis reads. Size is used only for progress and
// may be 0 when unknown.
type File struct {
	Name   string
	Size   int64
	Reader io.Reader
}

// Request is one unit of work for an Engine.
type Request struct {
	Type    RequestType
	File    File
	Mapping ledger.ColumnMapping
	Options detect.Options
}

// MessageType identifies an event sent back to the caller.
type MessageType string

const (
	MessageProgress MessageType = "progress"
	MessageHeaders  MessageType = "headers"
	MessageResult   MessageType = "result"
	MessageError    MessageType = "error"
)

// Progress stages.
const (
	StageParsing   = "Parsing CSV"
	StageDetecting = "Detecting duplicates"
)

// Message is an event from an Engine. Only the fields for Type are set;
// MarshalJSON writes the flat wire shape for that type.
type Message struct {
	Type     MessageType
	Stage    string
	Progress int
	Headers  []string
	Result   *Result
	Error    string
}

// Result is the payload of a result message.
type Result struct {
	Summary    detect.Summary `json:"summary"`
	Groups     []detect.Group `json:"groups"`
	Rows       []detect.Row   `json:"rows"`
	RawHeaders []string       `json:"rawHeaders"`
}

// Terminal reports whether m ends a request.
func (m Message) Terminal() bool {
	return m.Type == MessageHeaders || m.Type == MessageResult || m.Type == MessageError
}

func ProgressMessage(stage string, progress int) Message {
	return Message{Type: MessageProgress, Stage: stage, Progress: progress}
}

func HeadersMessage(headers []string) Message {
	return Message{Type: MessageHeaders, Headers: headers}
}

func ResultMessage(r *Result) Message {
	return Message{Type: MessageResult, Result: r}
}

func ErrorMessage(msg string) Message {
	return Message{Type: MessageError, Error: msg}
}

// MarshalJSON implements json.Marshaler.
func (m Message) MarshalJSON() ([]byte, error) {
	switch m.Type {
	case MessageProgress:
		return json.Marshal(struct {
			Type     MessageType `json:"type"`
			Stage    string      `json:"stage"`
			Progress int         `json:"progress"`
		}{m.Type, m.Stage, m.Progress})

	case MessageHeaders:
		headers := m.Headers
		if headers == nil {
			headers = []string{}
		}
		return json.Marshal(struct {
			Type    MessageType `json:"type"`
			Headers []string    `json:"headers"`
		}{m.Type, headers})

	case MessageResult:
		r := m.Result
		if r == nil {
			r = &Result{}
		}
		return json.Marshal(struct {
			Type MessageType `json:"type"`
			*Result
		}{m.Type, r})

	default:
		return json.Marshal(struct {
			Type    MessageType `json:"type"`
			Message string      `json:"message"`
		}{MessageError, m.Error})
	}
}
