package file

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/zhouzirui/digital-twin/backend/internal/model/chat"
)

// Codec encodes a session's message sequence into a single file.
type Codec interface {
	Ext() string
	Marshal(messages []chat.Message) ([]byte, error)
	Unmarshal(data []byte) ([]chat.Message, error)
}

// CodecFor maps a format name to its codec.
func CodecFor(format string) (Codec, error) {
	switch format {
	case "", "json":
		return JSONCodec{}, nil
	case "yaml", "yml":
		return YAMLCodec{}, nil
	default:
		return nil, fmt.Errorf("unsupported session format %q", format)
	}
}

// JSONCodec writes a two-space indented array of {role, content} objects.
type JSONCodec struct{}

func (JSONCodec) Ext() string { return ".json" }

func (JSONCodec) Marshal(messages []chat.Message) ([]byte, error) {
	if messages == nil {
		messages = []chat.Message{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(messages); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (JSONCodec) Unmarshal(data []byte) ([]chat.Message, error) {
	var messages []chat.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// YAMLCodec writes the same sequence as a YAML list.
type YAMLCodec struct{}

func (YAMLCodec) Ext() string { return ".yaml" }

func (YAMLCodec) Marshal(messages []chat.Message) ([]byte, error) {
	if messages == nil {
		messages = []chat.Message{}
	}
	return yaml.Marshal(messages)
}

func (YAMLCodec) Unmarshal(data []byte) ([]chat.Message, error) {
	var messages []chat.Message
	if err := yaml.Unmarshal(data, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}
