package models

import (
	"encoding/json"
	"fmt"
)

// Contract is the capability a DAO proposal target must offer: an opaque,
// possibly-failing invocation. The caller address is the invoking component.
type Contract interface {
	Call(caller Address, data []byte) error
}

// EncodedCall is the wire form of a forwarded governance call. The DAO never
// interprets it; the target decodes and dispatches on Method.
type EncodedCall struct {
	Method string            `json:"method"`
	Args   []json.RawMessage `json:"args,omitempty"`
}

// EncodeCall marshals a method invocation into callData bytes.
func EncodeCall(method string, args ...any) ([]byte, error) {
	call := EncodedCall{Method: method}
	for _, arg := range args {
		raw, err := json.Marshal(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to encode argument: %w", err)
		}
		call.Args = append(call.Args, raw)
	}
	return json.Marshal(call)
}

// DecodeCall unmarshals callData bytes back into a method invocation.
func DecodeCall(data []byte) (EncodedCall, error) {
	var call EncodedCall
	if err := json.Unmarshal(data, &call); err != nil {
		return EncodedCall{}, fmt.Errorf("failed to decode call: %w", err)
	}
	return call, nil
}

// Arg decodes the i-th argument of the call into out.
func (c EncodedCall) Arg(i int, out any) error {
	if i >= len(c.Args) {
		return fmt.Errorf("call %q has no argument %d", c.Method, i)
	}
	if err := json.Unmarshal(c.Args[i], out); err != nil {
		return fmt.Errorf("failed to decode argument %d of %q: %w", i, c.Method, err)
	}
	return nil
}
