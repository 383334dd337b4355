package model

import "time"

// Family selects which public-id counter a task draws from.
type Family string

const (
	FamilyIndividual Family = "P"
	FamilyGroup      Family = "G"
)

// Sequence is a per-family counter row. The value is only ever advanced with
// a single-statement atomic increment, never read-then-write.
type Sequence struct {
	Family    string `gorm:"primaryKey;size:4"`
	Value     uint64
	UpdatedAt time.Time
}
