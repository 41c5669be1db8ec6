package breaker

import "github.com/vmihailenco/msgpack/v5"

// EncodeState serializes a BreakerState to msgpack, the wire format a
// distributed Store implementation would use to persist it outside the
// process.
func EncodeState(state BreakerState) ([]byte, error) {
	return msgpack.Marshal(state)
}

// DecodeState deserializes a msgpack-encoded BreakerState.
func DecodeState(data []byte) (BreakerState, error) {
	var state BreakerState
	err := msgpack.Unmarshal(data, &state)
	return state, err
}
