package realtime

import (
	"github.com/docagent/docagent-go/internal/envelope"
)

// SubscribeToJob registers fn for envelopes carrying the given job ID,
// replacing any prior registration for the same job. If the channel is open
// the subscription is also announced to the server. Safe to call before the
// connection opens; registration is decoupled from connection liveness.
//
// The returned function removes the registration. No unsubscribe control
// message is sent to the server; its subscription state lives and dies with
// the connection.
func (c *Client) SubscribeToJob(jobID string, fn Handler) func() {
	unsubscribe := c.register(envelope.JobKey(jobID), fn)

	c.mu.Lock()
	open := c.state == StateOpen
	c.mu.Unlock()
	if open {
		if err := c.Send(envelope.SubscribeJob(jobID)); err != nil {
			c.log.Warn("failed to announce job subscription", "job_id", jobID, "err", err)
		}
	}
	return unsubscribe
}

// OnMessage registers fn for envelopes of the given bare type, replacing any
// prior registration for that type. The returned function removes the
// registration.
func (c *Client) OnMessage(msgType string, fn Handler) func() {
	return c.register(msgType, fn)
}

// register implements last-register-wins semantics: a key maps to zero or
// one handler. The unsubscribe closure removes only its own registration,
// so a stale unsubscribe after re-registration is a no-op, as is calling it
// twice.
func (c *Client) register(key string, fn Handler) func() {
	c.mu.Lock()
	c.nextReg++
	id := c.nextReg
	c.handlers[key] = registration{id: id, fn: fn}
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		if reg, ok := c.handlers[key]; ok && reg.id == id {
			delete(c.handlers, key)
		}
		c.mu.Unlock()
	}
}

// dispatch routes one inbound message. A parse failure is logged and the
// message dropped; the connection is unaffected. When both a type handler
// and a job handler match, the type handler fires first. Each invocation is
// isolated so a panicking handler cannot break delivery to the other.
func (c *Client) dispatch(raw []byte) {
	env, err := envelope.Decode(raw)
	if err != nil {
		c.log.Warn("dropping malformed envelope", "err", err)
		return
	}

	c.mu.Lock()
	typeReg, hasType := c.handlers[env.Type]
	var jobReg registration
	var hasJob bool
	if env.JobID != "" {
		jobReg, hasJob = c.handlers[envelope.JobKey(env.JobID)]
	}
	c.mu.Unlock()

	if env.Type != "" && hasType {
		c.invoke(env.Type, typeReg.fn, env)
	}
	if hasJob {
		c.invoke(envelope.JobKey(env.JobID), jobReg.fn, env)
	}
}

func (c *Client) invoke(key string, fn Handler, env envelope.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("handler panicked", "key", key, "panic", r)
		}
	}()
	fn(env)
}
