package results

import (
	"encoding/json"

	"github.com/cuemby/colony/pkg/colonyerr"
)

// Envelope is the encoder-neutral, canonical result record shape:
// either {"actor_result": V} or {"actor_exception": {...}}.
type Envelope struct {
	ActorResult    json.RawMessage    `json:"actor_result,omitempty"`
	ActorException *ExceptionEnvelope `json:"actor_exception,omitempty"`
}

// ExceptionEnvelope is the {type, mod, args} triple a stored task
// exception reconstructs from.
type ExceptionEnvelope struct {
	Type string `json:"type"`
	Mod  string `json:"mod,omitempty"`
	Args []any  `json:"args"`
}

func encodeValue(value any) (Envelope, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return Envelope{}, &colonyerr.BackendError{Op: "marshal", Err: err}
	}
	return Envelope{ActorResult: raw}, nil
}

func encodeException(exc *colonyerr.RemoteError) Envelope {
	return Envelope{ActorException: &ExceptionEnvelope{
		Type: exc.TypeName,
		Mod:  exc.ModuleName,
		Args: exc.Args,
	}}
}

// decodeEnvelope reconstructs the stored record: a normal result
// decodes to its value; an exception either reconstructs and is
// returned as the error (propagate=true) or as the value itself
// (propagate=false).
func decodeEnvelope(env Envelope, propagate bool) (any, error) {
	if env.ActorException != nil {
		remote := colonyerr.NewRemoteError(env.ActorException.Type, env.ActorException.Mod, env.ActorException.Args)
		if propagate {
			return nil, remote
		}
		return remote, nil
	}

	if len(env.ActorResult) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(env.ActorResult, &v); err != nil {
		return nil, &colonyerr.BackendError{Op: "decode", Err: err}
	}
	return v, nil
}

func decodePayload(payload []byte, propagate bool) (any, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, &colonyerr.BackendError{Op: "decode-envelope", Err: err}
	}
	return decodeEnvelope(env, propagate)
}
