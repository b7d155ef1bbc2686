// Package envelope defines the flat JSON message envelope exchanged with the
// DocAgent realtime channel and the dispatch keys used to route it.
package envelope

import (
	"encoding/json"
	"errors"
)

// Known envelope types pushed by the server or sent by the client.
const (
	TypeSubscribeJob         = "subscribe_job"
	TypeSubscribed           = "subscribed"
	TypeJobProgress          = "job_progress"
	TypeRepoDocProgress      = "repo_doc_progress"
	TypeRepoDocAgentProgress = "repo_doc_agent_progress"
)

// ErrNotObject is returned when an inbound message is valid JSON but not an
// object, so it cannot carry an envelope.
var ErrNotObject = errors.New("envelope is not a JSON object")

// Envelope is the flat {type, job_id?, ...fields} object exchanged over the
// realtime channel in both directions. Fields holds the full decoded object,
// including "type" and "job_id", so payload fields survive a round trip.
type Envelope struct {
	Type   string
	JobID  string
	Fields map[string]any
}

// Decode parses raw bytes as an envelope. Unknown payload fields are kept in
// Fields. A missing or non-string "type" leaves Type empty; dispatching an
// empty type is the caller's no-op.
func Decode(raw []byte) (Envelope, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Envelope{}, err
	}
	if fields == nil {
		return Envelope{}, ErrNotObject
	}
	env := Envelope{Fields: fields}
	if v, ok := fields["type"].(string); ok {
		env.Type = v
	}
	if v, ok := fields["job_id"].(string); ok {
		env.JobID = v
	}
	return env, nil
}

// Encode marshals the envelope back to its wire form. Type and JobID take
// precedence over any stale copies in Fields.
func (e Envelope) Encode() ([]byte, error) {
	out := make(map[string]any, len(e.Fields)+2)
	for k, v := range e.Fields {
		out[k] = v
	}
	out["type"] = e.Type
	if e.JobID != "" {
		out["job_id"] = e.JobID
	} else {
		delete(out, "job_id")
	}
	return json.Marshal(out)
}

// String returns the named payload field when it is a string, or "".
func (e Envelope) String(key string) string {
	v, _ := e.Fields[key].(string)
	return v
}

// SubscribeJob builds the control envelope announcing a job subscription to
// the server.
func SubscribeJob(jobID string) Envelope {
	return Envelope{
		Type:  TypeSubscribeJob,
		JobID: jobID,
	}
}

// JobKey returns the dispatch key for job-scoped handlers. It shares the
// registry namespace with bare type keys, so job keys are prefixed.
func JobKey(jobID string) string {
	return "job:" + jobID
}
