package intent

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrSchemaInvalid marks a payload that carried a recognized type marker but
// failed variant decoding. The caller can surface a formatting error instead
// of treating the text as conversation content.
var ErrSchemaInvalid = errors.New("intent: schema invalid")

// SchemaError wraps ErrSchemaInvalid with the offending type and cause.
type SchemaError struct {
	Type string
	Err  error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("intent: invalid %q payload: %v", e.Type, e.Err)
}

func (e *SchemaError) Unwrap() error { return ErrSchemaInvalid }

var fenceRe = regexp.MustCompile("(?s)```([a-zA-Z0-9_-]*)[ \t]*\n(.*?)```")

// Decode turns raw model text into a typed response variant.
//
// It tries, in order: a direct parse of the trimmed text, json-labeled fenced
// code blocks, unlabeled fenced blocks, and a balanced-brace scan around the
// first "type" marker. If none yields a recognized variant the whole text is
// wrapped as an informative message — the exhaustive fallback. An object with
// an unrecognized type is deliberately treated the same way, protecting the
// conversation from protocol violations by the model. Only a recognized type
// with schema-invalid fields returns an error.
func Decode(raw string) (*Response, error) {
	text := strings.TrimSpace(raw)

	if resp, err, ok := tryDecode(text); ok {
		return resp, err
	}

	var generic []string
	for _, m := range fenceRe.FindAllStringSubmatch(text, -1) {
		label, body := m[1], m[2]
		if label == "json" {
			if resp, err, ok := tryDecode(strings.TrimSpace(body)); ok {
				return resp, err
			}
			continue
		}
		if label == "" {
			generic = append(generic, body)
		}
	}
	for _, body := range generic {
		if resp, err, ok := tryDecode(strings.TrimSpace(body)); ok {
			return resp, err
		}
	}

	if obj, ok := braceObjectAroundTypeMarker(text); ok {
		if resp, err, ok := tryDecode(obj); ok {
			return resp, err
		}
	}

	return &Response{Kind: KindInformative, Informative: &Informative{Message: text}}, nil
}

// tryDecode attempts one candidate payload. ok is false when the candidate
// holds no recognized structured variant; err is non-nil only for a
// recognized type with invalid fields.
func tryDecode(candidate string) (*Response, error, bool) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(candidate), &probe); err != nil {
		return nil, nil, false
	}
	switch Kind(probe.Type) {
	case KindPlan, KindToolCall, KindAskUser, KindInformative:
	default:
		// Unknown or missing type: same as no structured data found.
		return nil, nil, false
	}

	resp, err := decodeVariant(Kind(probe.Type), candidate)
	if err != nil {
		return nil, &SchemaError{Type: probe.Type, Err: err}, true
	}
	return resp, nil, true
}

func decodeVariant(kind Kind, payload string) (*Response, error) {
	switch kind {
	case KindPlan:
		var wire struct {
			Action               string         `json:"action"`
			CollectedFields      map[string]any `json:"collected_fields"`
			MissingFields        []string       `json:"missing_fields"`
			SuggestedActions     []string       `json:"suggested_actions"`
			RequiresConfirmation *bool          `json:"requires_confirmation"`
			Message              string         `json:"message"`
		}
		if err := json.Unmarshal([]byte(payload), &wire); err != nil {
			return nil, err
		}
		if wire.Action == "" {
			return nil, errors.New("plan requires an action")
		}
		p := &Plan{
			Action:               wire.Action,
			CollectedFields:      wire.CollectedFields,
			MissingFields:        wire.MissingFields,
			SuggestedActions:     wire.SuggestedActions,
			RequiresConfirmation: true,
			Message:              wire.Message,
		}
		if p.CollectedFields == nil {
			p.CollectedFields = map[string]any{}
		}
		if p.MissingFields == nil {
			p.MissingFields = []string{}
		}
		if p.SuggestedActions == nil {
			p.SuggestedActions = []string{}
		}
		if wire.RequiresConfirmation != nil {
			p.RequiresConfirmation = *wire.RequiresConfirmation
		}
		return &Response{Kind: KindPlan, Plan: p}, nil

	case KindToolCall:
		var wire struct {
			Tool   string         `json:"tool"`
			Params map[string]any `json:"params"`
		}
		if err := json.Unmarshal([]byte(payload), &wire); err != nil {
			return nil, err
		}
		if wire.Tool == "" {
			return nil, errors.New("tool_call requires a tool")
		}
		if wire.Params == nil {
			wire.Params = map[string]any{}
		}
		return &Response{Kind: KindToolCall, ToolCall: &ToolCall{Tool: wire.Tool, Params: wire.Params}}, nil

	case KindAskUser:
		var wire AskUser
		if err := json.Unmarshal([]byte(payload), &wire); err != nil {
			return nil, err
		}
		if wire.Question == "" {
			return nil, errors.New("ask_user requires a question")
		}
		return &Response{Kind: KindAskUser, AskUser: &wire}, nil

	case KindInformative:
		var wire Informative
		if err := json.Unmarshal([]byte(payload), &wire); err != nil {
			return nil, err
		}
		if wire.Message == "" {
			return nil, errors.New("informative requires a message")
		}
		return &Response{Kind: KindInformative, Informative: &wire}, nil
	}
	return nil, fmt.Errorf("unhandled kind %q", kind)
}

// braceObjectAroundTypeMarker locates the brace-delimited object enclosing
// the first "type" marker, scanning braces with string awareness.
func braceObjectAroundTypeMarker(text string) (string, bool) {
	marker := strings.Index(text, `"type"`)
	if marker == -1 {
		return "", false
	}
	start := strings.LastIndex(text[:marker], "{")
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
