package protocol

import "encoding/json"

// Command names one request or response kind carried in an Envelope.
type Command string

const (
	CmdError Command = "error"
	CmdOK    Command = "ok"

	CmdRuntimeMount   Command = "runtime.mount"
	CmdRuntimeRemount Command = "runtime.remount"
	CmdRuntimeReset   Command = "runtime.reset"
	CmdRuntimeCommit  Command = "runtime.commit"
	CmdRuntimeExec    Command = "runtime.exec"
	CmdRuntimeInfo    Command = "runtime.info"
	CmdRuntimeList    Command = "runtime.list"
	CmdRuntimeRemove  Command = "runtime.remove"
	CmdRuntimePrune   Command = "runtime.prune"

	CmdStatus   Command = "status"
	CmdShutdown Command = "shutdown"
)

// Envelope is the outer JSON object written to the wire; Payload carries a
// command-specific struct, deferred-decoded by the receiver once Command
// is known.
type Envelope struct {
	Command Command         `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ErrorResult is the payload of a CmdError response.
type ErrorResult struct {
	Message string `json:"message"`
}

// Encode marshals cmd and payload into a single framed Envelope.
func Encode(cmd Command, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = data
	}
	return json.Marshal(Envelope{Command: cmd, Payload: raw})
}

// Decode unmarshals a single line of wire data into its Envelope and raw
// payload.
func Decode(line []byte) (Envelope, json.RawMessage, error) {
	var env Envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return Envelope{}, nil, err
	}
	return env, env.Payload, nil
}

// DecodePayload decodes raw into a T, used by handlers once Command has
// selected the expected payload type.
func DecodePayload[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	err := json.Unmarshal(raw, &v)
	return v, err
}
