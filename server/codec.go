package server

import "encoding/json"

// jsonCodec is a Connect codec over plain structs. The evaluation
// service's request and response shapes are simple enough that JSON is
// the wire format; registering a codec named "json" makes the handler
// serve the Connect protocol with application/json bodies.
type jsonCodec struct{}

func (jsonCodec) Name() string {
	return "json"
}

func (jsonCodec) Marshal(message any) ([]byte, error) {
	return json.Marshal(message)
}

func (jsonCodec) Unmarshal(data []byte, message any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, message)
}
