package jobs

import (
	"go.uber.org/zap"
)

// PrimaryKey builds the composite identity "company - title".
func PrimaryKey(r Record) string {
	return r.Field(FieldCompany) + " - " + r.Field(FieldTitle)
}

// DerivePrimaryKey sets primary_key on a mapping item and returns it. Items
// that are not mappings come back unchanged with a RecordShapeError.
func DerivePrimaryKey(item any) (any, error) {
	var rec Record
	switch v := item.(type) {
	case Record:
		rec = v
	case map[string]any:
		rec = Record(v)
	default:
		return item, &RecordShapeError{Item: item}
	}
	if rec == nil {
		return item, &RecordShapeError{Item: item}
	}
	rec[FieldPrimaryKey] = PrimaryKey(rec)
	return rec, nil
}

// KeyStats counts the outcome of AddPrimaryKeys.
type KeyStats struct {
	Keyed     int `json:"keyed"`
	Malformed int `json:"malformed"`
}

// AddPrimaryKeys derives a key for every item. Malformed items are logged
// and passed through without a key.
func AddPrimaryKeys(items []any, logger *zap.Logger) ([]any, KeyStats) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("adding primary keys", zap.Int("records", len(items)))
	var stats KeyStats
	out := make([]any, len(items))
	for i, item := range items {
		keyed, err := DerivePrimaryKey(item)
		if err != nil {
			stats.Malformed++
			logger.Error("record shape error, leaving record without primary key",
				zap.Int("index", i),
				zap.Any("item", item),
				zap.Error(err),
			)
			out[i] = item
			continue
		}
		stats.Keyed++
		out[i] = keyed
	}
	return out, stats
}

// AsRecord returns item as a Record when it is a mapping.
func AsRecord(item any) (Record, bool) {
	switch v := item.(type) {
	case Record:
		return v, v != nil
	case map[string]any:
		return Record(v), v != nil
	default:
		return nil, false
	}
}

// KeyedRecord returns item as a Record together with its primary_key.
func KeyedRecord(item any) (Record, string, error) {
	rec, ok := AsRecord(item)
	if !ok {
		return nil, "", &RecordShapeError{Item: item}
	}
	key, ok := rec[FieldPrimaryKey].(string)
	if !ok {
		return nil, "", ErrMissingPrimaryKey
	}
	return rec, key, nil
}
