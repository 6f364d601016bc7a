package endoflife

import (
	"encoding/json"
	"strings"
)

// Release matches one entry of the endoflife.date per-product API
// (https://endoflife.date/api/<product>.json).
type Release struct {
	Cycle        Cycle      `json:"cycle"`
	ReleaseLabel string     `json:"releaseLabel"`
	Codename     string     `json:"codename"`
	Latest       string     `json:"latest"`
	ReleaseDate  string     `json:"releaseDate"`
	Support      Expiration `json:"support"`
	EOL          Expiration `json:"eol"`
}

// Cycle is a string in most products but a bare number in a few older ones.
type Cycle string

func (c *Cycle) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = Cycle(s)
		return nil
	}
	*c = Cycle(strings.TrimSpace(string(data)))
	return nil
}

// Expiration is a date string, or a boolean meaning "already over" (true) /
// "not yet determined" (false). Anything else is kept verbatim in Date so the
// catalog normalizer can report it.
type Expiration struct {
	Date string
	Bool *bool
}

func (e *Expiration) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		e.Bool = &b
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		e.Date = s
		return nil
	}
	e.Date = strings.TrimSpace(string(data))
	return nil
}
