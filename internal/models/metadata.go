package rewards

import (
	"encoding/json"
	"fmt"
)

const DefaultMaxMetadataBytes = 8 * 1024

// Произвольные данные клиента, хранятся как JSON
type Metadata map[string]any

// Encode сериализует метаданные и проверяет размер
func (m Metadata) Encode(limit int) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, NewValidationError("metadata", "must be a JSON object")
	}
	if limit > 0 && len(b) > limit {
		return nil, NewValidationError("metadata", fmt.Sprintf("exceeds %d bytes", limit))
	}
	return b, nil
}

func DecodeMetadata(b []byte) (Metadata, error) {
	if len(b) == 0 {
		return nil, nil
	}
	m := Metadata{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Merge возвращает копию, ключи other перекрывают ключи m
func (m Metadata) Merge(other Metadata) Metadata {
	out := make(Metadata, len(m)+len(other))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}
