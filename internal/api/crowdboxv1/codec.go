// Package crowdboxv1 defines the crowdbox.v1 RPC messages.
package crowdboxv1

import (
	"encoding/json"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
)

// CodecName is the codec's registered name. It replaces connect's default
// protojson codec so plain Go structs can travel as JSON.
const CodecName = "json"

// Codec marshals messages as JSON.
type Codec struct{}

var _ connect.Codec = Codec{}

// Name implements connect.Codec.
func (Codec) Name() string {
	return CodecName
}

// Marshal implements connect.Codec.
func (Codec) Marshal(msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, errors.Wrapf(err, "marshal %T", msg)
	}
	return data, nil
}

// Unmarshal implements connect.Codec.
func (Codec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return errors.Wrapf(err, "unmarshal %T", msg)
	}
	return nil
}

// WithCodec is the option every handler and client of this package uses.
func WithCodec() connect.Option {
	return connect.WithCodec(Codec{})
}
