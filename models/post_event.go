package models

import (
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

var ErrMissingPostID = errors.New("record.id is required")

// PostRecord is the subset of a posts row the dispatcher reads
type PostRecord struct {
	ID      string `json:"id" mapstructure:"id"`
	Title   string `json:"title" mapstructure:"title"`
	Details string `json:"details" mapstructure:"details"`
}

// PostEvent is the database webhook body: {type, table, record, old_record}
type PostEvent struct {
	Type   string                 `json:"type"`
	Table  string                 `json:"table"`
	Record map[string]interface{} `json:"record"`
}

// Post decodes the record. Ids are weakly typed since a webhook can send
// an integer primary key, and unknown columns are ignored.
func (e *PostEvent) Post() (PostRecord, error) {
	var post PostRecord
	if e.Record == nil {
		return post, ErrMissingPostID
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &post,
	})
	if err != nil {
		return post, err
	}
	if err := decoder.Decode(e.Record); err != nil {
		return post, fmt.Errorf("decoding post record: %w", err)
	}
	if post.ID == "" {
		return post, ErrMissingPostID
	}
	return post, nil
}
