package triesync

import (
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/attestate/leafsync/codec"
)

// ErrInvalidMessage is returned for messages that do not match their schema.
var ErrInvalidMessage = errors.New("invalid message")

const (
	levelsRequestType  = "levels-request"
	levelsResponseType = "levels-response"
	leavesPushType     = "leaves-push"
)

// LevelsRequest asks the remote to compare nodes of one level.
type LevelsRequest struct {
	Type  string       `cbor:"type"`
	Nodes []Descriptor `cbor:"nodes"`
}

// LevelsResponse partitions the requested nodes.
type LevelsResponse struct {
	Type     string       `cbor:"type"`
	Missing  []Descriptor `cbor:"missing"`
	Mismatch []Descriptor `cbor:"mismatch"`
	Match    []Descriptor `cbor:"match"`
}

// LeavesPush carries leaves the remote is missing.
type LeavesPush struct {
	Type  string       `cbor:"type"`
	Nodes []Descriptor `cbor:"nodes"`
}

// RootAdvertisement is gossiped on RootsTopic.
type RootAdvertisement struct {
	Root string `cbor:"root"`
}

const descriptorsDef = `"$defs": {
	"descriptor": {
		"type": "object",
		"required": ["key", "hash"],
		"properties": {
			"key": {"type": "string", "pattern": "^(0[0-9a-f])+$"},
			"hash": {"type": "string", "pattern": "^[0-9a-f]{64}$"},
			"node": {"type": "string", "pattern": "^([0-9a-f]{2})+$"}
		},
		"additionalProperties": false
	},
	"descriptors": {"type": "array", "items": {"$ref": "#/$defs/descriptor"}}
}`

var (
	levelsRequestSchema = jsonschema.MustCompileString("levels-request.json", `{
	"type": "object",
	"required": ["type", "nodes"],
	"properties": {
		"type": {"const": "levels-request"},
		"nodes": {"$ref": "#/$defs/descriptors", "minItems": 1}
	},
	"additionalProperties": false,
	`+descriptorsDef+`
}`)
	levelsResponseSchema = jsonschema.MustCompileString("levels-response.json", `{
	"type": "object",
	"required": ["type", "missing", "mismatch", "match"],
	"properties": {
		"type": {"const": "levels-response"},
		"missing": {"$ref": "#/$defs/descriptors"},
		"mismatch": {"$ref": "#/$defs/descriptors"},
		"match": {"$ref": "#/$defs/descriptors"}
	},
	"additionalProperties": false,
	`+descriptorsDef+`
}`)
	leavesPushSchema = jsonschema.MustCompileString("leaves-push.json", `{
	"type": "object",
	"required": ["type", "nodes"],
	"properties": {
		"type": {"const": "leaves-push"},
		"nodes": {"$ref": "#/$defs/descriptors", "minItems": 1}
	},
	"additionalProperties": false,
	`+descriptorsDef+`
}`)
	rootSchema = jsonschema.MustCompileString("root.json", `{
	"type": "object",
	"required": ["root"],
	"properties": {
		"root": {"type": "string", "pattern": "^[0-9a-f]{64}$"}
	},
	"additionalProperties": false
}`)
)

// decodeMessage checks payload against schema before decoding it into v.
func decodeMessage(schema *jsonschema.Schema, payload []byte, v any) error {
	generic, err := codec.UnmarshalGeneric(payload)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if err := jsonShaped(generic); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if err := schema.Validate(generic); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if err := codec.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	return nil
}

// jsonShaped rejects values that have no JSON counterpart, such as byte
// strings and tags. Numbers never appear in the messages and are rejected too.
func jsonShaped(v any) error {
	switch v := v.(type) {
	case nil, bool, string:
		return nil
	case []any:
		for _, item := range v {
			if err := jsonShaped(item); err != nil {
				return err
			}
		}
		return nil
	case map[string]any:
		for key, item := range v {
			if err := jsonShaped(item); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("unexpected value of type %T", v)
	}
}
