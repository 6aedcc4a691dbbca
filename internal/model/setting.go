package model

import (
	"encoding/json"
	"time"
)

// Setting is one policy override row: key_name holds a policy document key
// and value its JSON encoded value.
type Setting struct {
	KeyName   string          `json:"key_name"`
	Value     json.RawMessage `json:"value"`
	UpdatedAt time.Time       `json:"updated_at"`
}
