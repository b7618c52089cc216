// Package json wraps the sonic implementation behind the familiar
// encoding/json surface so call sites never import sonic directly.
package json

import "github.com/bytedance/sonic"

func Marshal(v interface{}) ([]byte, error) {
	return sonic.Marshal(v)
}

func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return sonic.ConfigDefault.MarshalIndent(v, prefix, indent)
}

func Unmarshal(data []byte, v interface{}) error {
	return sonic.Unmarshal(data, v)
}

func MarshalString(v interface{}) (string, error) {
	return sonic.MarshalString(v)
}

func UnmarshalString(data string, v interface{}) error {
	return sonic.UnmarshalString(data, v)
}
