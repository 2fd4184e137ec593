package storage

import "liquidityBook/internal/model"

// Storage defines a sink for applied event records.
type Storage interface {
	PutEventBatch(events []model.AppliedEvent) error
}
