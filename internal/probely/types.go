package probely

import (
	"encoding/json"
	"fmt"
)

// ID is an opaque identifier. The API sends ids as JSON strings or numbers;
// both decode to their literal text.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("probely: id must be a string or a number, got %s", b)
	}
	*id = ID(n.String())
	return nil
}

// Site is the nested site object carried by targets.
type Site struct {
	Name string `json:"name"`
}

// TargetRecord is one entry of GET /targets/.
type TargetRecord struct {
	ID   ID   `json:"id"`
	Site Site `json:"site"`
}

// ScheduledScan is one entry of GET /scheduledscans/.
type ScheduledScan struct {
	ID         ID           `json:"id"`
	DateTime   string       `json:"date_time"`
	Recurrence string       `json:"recurrence"`
	Timezone   string       `json:"timezone,omitempty"`
	Target     TargetRecord `json:"target"`
}

// Page is the envelope every list endpoint returns.
type Page[T any] struct {
	Count     int `json:"count"`
	Page      int `json:"page"`
	Length    int `json:"length"`
	PageTotal int `json:"page_total"`
	Results   []T `json:"results"`
}
