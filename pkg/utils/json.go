package utils

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// decodes a message body into a new T
func Unmarshal[T any](data []byte) (*T, error) {
	v := new(T)
	if err := json.Unmarshal(data, v); err != nil {
		return nil, errors.Wrapf(err, "decode %T", *v)
	}
	return v, nil
}

// for values that always encode, e.g. structs of strings and times. panics otherwise
func MustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(errors.Wrapf(err, "encode %T", v))
	}
	return data
}
