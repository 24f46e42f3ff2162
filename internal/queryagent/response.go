// ABOUTME: Query agent response model with every field optional
// ABOUTME: Absent fields decode to nil so renderers never probe for presence

package queryagent

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Response is the structured result of one Run. Any field may be absent:
// pointers are nil and slices are nil when the service omitted them.
type Response struct {
	// OriginalQuestion echoes the question the agent answered.
	OriginalQuestion *string `json:"original_query,omitempty"`

	// FinalAnswer is the synthesized answer in markdown.
	FinalAnswer *string `json:"final_answer,omitempty"`

	// Searches lists the search attempts the agent generated, in order.
	Searches SearchList `json:"searches,omitempty"`

	// Sources lists the objects the answer was built from.
	Sources []Source `json:"sources,omitempty"`

	CollectionNames    []string `json:"collection_names,omitempty"`
	IsPartialAnswer    *bool    `json:"is_partial_answer,omitempty"`
	MissingInformation []string `json:"missing_information,omitempty"`

	// TotalTime is the service-side duration in seconds.
	TotalTime *float64 `json:"total_time,omitempty"`
	Usage     *Usage   `json:"usage,omitempty"`
}

// Search is one search attempt. Queries is nil when the attempt carried no
// queries field and non-nil (possibly empty) when it did.
type Search struct {
	Collection string   `json:"collection,omitempty"`
	Queries    []string `json:"queries"`
}

// Source identifies one retrieved object.
type Source struct {
	ObjectID   string `json:"object_id"`
	Collection string `json:"collection,omitempty"`
}

// Usage reports model usage for the run.
type Usage struct {
	Requests       int `json:"requests"`
	RequestTokens  int `json:"request_tokens"`
	ResponseTokens int `json:"response_tokens"`
	TotalTokens    int `json:"total_tokens"`
}

// SearchList accepts both the flat list of searches and the older
// list-of-lists shape (one inner list per collection), flattening the latter.
// An empty collection group still takes a slot, as a Search with nil Queries,
// so a list whose first group is empty is not mistaken for an empty list.
type SearchList []Search

func (s *SearchList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*s = nil
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return fmt.Errorf("searches: %w", err)
	}

	out := make(SearchList, 0, len(raw))
	for i, item := range raw {
		item = bytes.TrimSpace(item)
		if len(item) > 0 && item[0] == '[' {
			var nested []Search
			if err := json.Unmarshal(item, &nested); err != nil {
				return fmt.Errorf("searches[%d]: %w", i, err)
			}
			if len(nested) == 0 {
				out = append(out, Search{})
				continue
			}
			out = append(out, nested...)
			continue
		}
		var one Search
		if err := json.Unmarshal(item, &one); err != nil {
			return fmt.Errorf("searches[%d]: %w", i, err)
		}
		out = append(out, one)
	}
	*s = out
	return nil
}
