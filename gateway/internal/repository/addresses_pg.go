package repository

import (
	"chainpay/gateway/internal/domain"
	"chainpay/gateway/internal/infra/postgres"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AddressesRepo struct {
}

func InitAddressesRepo() *AddressesRepo {
	return &AddressesRepo{}
}

func (r *AddressesRepo) EnsureCounter(tx *gorm.DB) error {
	return tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.AddressCounters{ID: domain.ADDRESS_COUNTER_ID}).Error
}

func (r *AddressesRepo) ReserveIndex(tx *gorm.DB) (uint32, error) {
	var counter domain.AddressCounters

	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", domain.ADDRESS_COUNTER_ID).First(&counter).Error
	if err != nil {
		if !postgres.IsNotFound(err) {
			return 0, err
		}
		// not seeded yet
		counter = domain.AddressCounters{ID: domain.ADDRESS_COUNTER_ID}
		if err := tx.Create(&counter).Error; err != nil {
			return 0, err
		}
	}

	index := counter.Next
	if err := tx.Model(&counter).Update("next", index+1).Error; err != nil {
		return 0, err
	}

	return index, nil
}

func (r *AddressesRepo) Create(tx *gorm.DB, address *domain.Addresses) error {
	return tx.Create(address).Error
}

func (r *AddressesRepo) FindByAddress(tx *gorm.DB, address string) (*domain.Addresses, error) {
	var a domain.Addresses
	return &a, tx.Where("LOWER(address) = ?", domain.AddressKey(address)).First(&a).Error
}

func (r *AddressesRepo) MarkSwept(tx *gorm.DB, address string) error {
	return tx.Model(&domain.Addresses{}).Where("LOWER(address) = ?", domain.AddressKey(address)).Update("swept", true).Error
}
