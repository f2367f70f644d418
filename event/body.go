package event

import (
	"encoding/json"

	"github.com/c360/semevents/errors"
)

// Body is an event payload able to render its wire text.
type Body interface {
	Text() (string, error)
}

// RawBody is a payload kept in its serialized form, either because its
// syntax has no codec or because parsing was deferred.
type RawBody string

// Text returns the payload unchanged.
func (b RawBody) Text() (string, error) {
	return string(b), nil
}

// JSONSyntax is the syntax tag of JSON content events.
const JSONSyntax = "application/json"

// JSONBody is a decoded JSON payload.
type JSONBody struct {
	Value any
}

// Text marshals the payload.
func (b JSONBody) Text() (string, error) {
	data, err := json.Marshal(b.Value)
	if err != nil {
		return "", errors.Wrap(err, "JSONBody", "Text", "marshal payload")
	}
	return string(data), nil
}

// JSONVariant decodes application/json bodies into JSONBody values.
var JSONVariant = Variant{
	Syntax: JSONSyntax,
	Construct: func(h Header, body string) (*Record, error) {
		var v any
		if err := json.Unmarshal([]byte(body), &v); err != nil {
			return nil, errors.Formatf(errors.ErrFormat, "invalid JSON body: %v", err)
		}
		return newRecord(h, KindGeneric, JSONBody{Value: v})
	},
}
