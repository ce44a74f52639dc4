package stream

import "github.com/tarungka/sluice/internal/models"

// MapFunction is a function that maps a record to another record.
type MapFunction func(record *models.Record) *models.Record

// MapOperator is an operator that applies a function to each record in the
// stream.
type MapOperator struct {
	BaseOperator
	mapFn MapFunction
}

// NewMapOperator creates a new MapOperator.
func NewMapOperator(id string, mapFn MapFunction) *MapOperator {
	return &MapOperator{
		BaseOperator: *NewBaseOperator(id),
		mapFn:        mapFn,
	}
}

// ProcessRecord processes a record.
func (o *MapOperator) ProcessRecord(record *models.Record) *models.Record {
	return o.mapFn(record)
}

// FilterFunction decides whether a record is kept.
type FilterFunction func(record *models.Record) bool

// FilterOperator drops records the predicate rejects.
type FilterOperator struct {
	BaseOperator
	filterFn FilterFunction
}

// NewFilterOperator creates a new FilterOperator.
func NewFilterOperator(id string, filterFn FilterFunction) *FilterOperator {
	return &FilterOperator{
		BaseOperator: *NewBaseOperator(id),
		filterFn:     filterFn,
	}
}

// ProcessRecord processes a record.
func (o *FilterOperator) ProcessRecord(record *models.Record) *models.Record {
	if o.filterFn(record) {
		return record
	}
	return nil
}
