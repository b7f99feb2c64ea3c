package document

import "encoding/json"

// Attribute keys used by the Nostr pipeline.
const (
	AttrEventID     = "event_id"
	AttrPubkey      = "pubkey"
	AttrKind        = "kind"
	AttrTags        = "tags"
	AttrMetadata    = "metadata"
	AttrAddressable = "addressable"
	AttrContentHash = "content_hash"
	AttrLanguage    = "language"
)

// Attributes is an open JSON bag for source-specific metadata.
type Attributes struct {
	values map[string]any
}

// NewAttributes creates an Attributes bag from a map. The map is copied.
func NewAttributes(values map[string]any) Attributes {
	cp := make(map[string]any, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return Attributes{values: cp}
}

// ParseAttributes decodes an Attributes bag from JSON. Empty input yields an
// empty bag, not an error.
func ParseAttributes(raw []byte) (Attributes, error) {
	if len(raw) == 0 {
		return NewAttributes(nil), nil
	}
	var values map[string]any
	if err := json.Unmarshal(raw, &values); err != nil {
		return Attributes{}, err
	}
	return Attributes{values: values}, nil
}

// Get returns a value by key.
func (a Attributes) Get(key string) (any, bool) {
	v, ok := a.values[key]
	return v, ok
}

// GetString returns a string value by key, or "" when absent or not a string.
func (a Attributes) GetString(key string) string {
	if v, ok := a.values[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetInt returns an integer value by key, tolerating JSON float decoding.
func (a Attributes) GetInt(key string) (int, bool) {
	switch v := a.values[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// Set returns a copy with the key set.
func (a Attributes) Set(key string, value any) Attributes {
	cp := make(map[string]any, len(a.values)+1)
	for k, v := range a.values {
		cp[k] = v
	}
	cp[key] = value
	return Attributes{values: cp}
}

// Len returns the number of entries.
func (a Attributes) Len() int { return len(a.values) }

// Map returns a copy of the underlying map.
func (a Attributes) Map() map[string]any {
	cp := make(map[string]any, len(a.values))
	for k, v := range a.values {
		cp[k] = v
	}
	return cp
}

// JSON encodes the bag for persistence.
func (a Attributes) JSON() ([]byte, error) {
	if a.values == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(a.values)
}
