package transcript

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrMissingTurns is returned when a conversation document has no
	// "turns" array.
	ErrMissingTurns = errors.New("conversation document has no turns array")
	// ErrMissingMetrics is returned when a metrics document has no
	// "metrics" array.
	ErrMissingMetrics = errors.New("metrics document has no metrics array")
)

// DecodeConversation reads a conversation document.
func DecodeConversation(r io.Reader) (*ConversationRecord, error) {
	var probe struct {
		Turns json.RawMessage `json:"turns"`
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading conversation document: %w", err)
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("decoding conversation document: %w", err)
	}
	if !isArray(probe.Turns) {
		return nil, ErrMissingTurns
	}

	var rec ConversationRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decoding conversation document: %w", err)
	}
	return &rec, nil
}

// DecodeMetrics reads a metrics document.
func DecodeMetrics(r io.Reader) (*MetricsRecord, error) {
	var probe struct {
		Metrics json.RawMessage `json:"metrics"`
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading metrics document: %w", err)
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("decoding metrics document: %w", err)
	}
	if !isArray(probe.Metrics) {
		return nil, ErrMissingMetrics
	}

	var rec MetricsRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decoding metrics document: %w", err)
	}
	return &rec, nil
}

func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}
