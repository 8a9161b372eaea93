package domain

import "encoding/json"

// ErrPayload is the shape of a failed probe outcome: {"error": "..."}.
type ErrPayload struct {
	Error string `json:"error"`
}

// Outcome is the tagged Ok/Err sum type every probe result is carried in,
// so that a download/ping/head failure never has to be smuggled through a
// shared "error" field or a sentinel zero value.
type Outcome[T any] struct {
	value *T
	err   *ErrPayload
}

// OkOutcome wraps a successful probe payload.
func OkOutcome[T any](v T) Outcome[T] {
	return Outcome[T]{value: &v}
}

// ErrOutcome wraps a failed probe payload with a human-readable reason.
func ErrOutcome[T any](reason string) Outcome[T] {
	return Outcome[T]{err: &ErrPayload{Error: reason}}
}

// IsOk reports whether this outcome carries a success payload.
func (o Outcome[T]) IsOk() bool {
	return o.err == nil
}

// Value returns the success payload and true, or the zero value and false.
func (o Outcome[T]) Value() (T, bool) {
	if o.value == nil {
		var zero T
		return zero, false
	}
	return *o.value, true
}

// ErrorMessage returns the failure reason, or "" if this outcome is Ok.
func (o Outcome[T]) ErrorMessage() string {
	if o.err == nil {
		return ""
	}
	return o.err.Error
}

type okEnvelope[T any] struct {
	Ok T `json:"Ok"`
}

type errEnvelope struct {
	Err ErrPayload `json:"Err"`
}

func (o Outcome[T]) MarshalJSON() ([]byte, error) {
	if o.err != nil {
		return json.Marshal(errEnvelope{Err: *o.err})
	}
	if o.value == nil {
		var zero T
		return json.Marshal(okEnvelope[T]{Ok: zero})
	}
	return json.Marshal(okEnvelope[T]{Ok: *o.value})
}

func (o *Outcome[T]) UnmarshalJSON(data []byte) error {
	var probe struct {
		Ok  *T          `json:"Ok"`
		Err *ErrPayload `json:"Err"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	o.value = probe.Ok
	o.err = probe.Err
	return nil
}
