package domain

import "time"

// derived deposit addresses
type Addresses struct {
	ID        uint   `gorm:"primaryKey"`
	Address   string `gorm:"size:42;uniqueIndex;not null"`
	Index     uint32 `gorm:"uniqueIndex;not null"`
	Swept     bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
}

// single row, next free derivation index
type AddressCounters struct {
	ID   uint   `gorm:"primaryKey"`
	Next uint32 `gorm:"not null;default:0"`
}

const ADDRESS_COUNTER_ID = 1
