package db

import (
	"context"

	"gorm.io/gorm"
)

// SellerRepository defines decoupled operations for seller persistence.
type SellerRepository interface {
	Create(ctx context.Context, s *Seller) error
	GetByID(ctx context.Context, id uint) (*Seller, error)
	GetByEmail(ctx context.Context, email string) (*Seller, error)
	List(ctx context.Context, skip, limit int) ([]Seller, error)
	Update(ctx context.Context, s *Seller) error
	Delete(ctx context.Context, id uint) error
}

// TotemRepository defines decoupled operations for totem persistence.
type TotemRepository interface {
	Create(ctx context.Context, t *Totem) error
	GetByID(ctx context.Context, id uint) (*Totem, error)
	GetByExternalID(ctx context.Context, externalPosID string) (*Totem, error)
	List(ctx context.Context, skip, limit int, ownerID *uint) ([]Totem, error)
	Update(ctx context.Context, t *Totem) error
	Delete(ctx context.Context, id uint) error
}

// EventRepository appends totem-reported events. Inserts are unconditional:
// a batch sent twice is stored twice.
type EventRepository interface {
	AddPayment(ctx context.Context, e *PaymentEvent) error
	AddParkingEvents(ctx context.Context, events []ParkingEvent) error
}

// gormSellerRepo is a GORM-backed implementation of SellerRepository.
type gormSellerRepo struct{ db *gorm.DB }

// gormTotemRepo is a GORM-backed implementation of TotemRepository.
type gormTotemRepo struct{ db *gorm.DB }

// gormEventRepo is a GORM-backed implementation of EventRepository.
type gormEventRepo struct{ db *gorm.DB }

// NewSellerRepository creates a SellerRepository. Accepts *gorm.DB to avoid global access.
func NewSellerRepository(gdb *gorm.DB) SellerRepository { return &gormSellerRepo{db: gdb} }

// NewTotemRepository creates a TotemRepository. Accepts *gorm.DB to avoid global access.
func NewTotemRepository(gdb *gorm.DB) TotemRepository { return &gormTotemRepo{db: gdb} }

// NewEventRepository creates an EventRepository. Accepts *gorm.DB to avoid global access.
func NewEventRepository(gdb *gorm.DB) EventRepository { return &gormEventRepo{db: gdb} }

func (r *gormSellerRepo) Create(ctx context.Context, s *Seller) error {
	if r.db == nil {
		return errNotInitialized
	}
	return storeErr(r.db.WithContext(ctx).Create(s).Error)
}

func (r *gormSellerRepo) GetByID(ctx context.Context, id uint) (*Seller, error) {
	if r.db == nil {
		return nil, errNotInitialized
	}
	var s Seller
	if err := r.db.WithContext(ctx).Preload("Totems").First(&s, id).Error; err != nil {
		return nil, storeErr(err)
	}
	return &s, nil
}

func (r *gormSellerRepo) GetByEmail(ctx context.Context, email string) (*Seller, error) {
	if r.db == nil {
		return nil, errNotInitialized
	}
	var s Seller
	if err := r.db.WithContext(ctx).Preload("Totems").Where("email = ?", email).First(&s).Error; err != nil {
		return nil, storeErr(err)
	}
	return &s, nil
}

func (r *gormSellerRepo) List(ctx context.Context, skip, limit int) ([]Seller, error) {
	if r.db == nil {
		return nil, errNotInitialized
	}
	var sellers []Seller
	if err := r.db.WithContext(ctx).Preload("Totems").Order("id").Offset(skip).Limit(limit).Find(&sellers).Error; err != nil {
		return nil, storeErr(err)
	}
	return sellers, nil
}

// Update persists the profile fields of s. Credential fields are never
// written here; see CredentialRepository.
func (r *gormSellerRepo) Update(ctx context.Context, s *Seller) error {
	if r.db == nil {
		return errNotInitialized
	}
	res := r.db.WithContext(ctx).Model(s).Select("name", "email", "is_admin").Updates(s)
	if res.Error != nil {
		return storeErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the seller and detaches their totems in one transaction.
func (r *gormSellerRepo) Delete(ctx context.Context, id uint) error {
	if r.db == nil {
		return errNotInitialized
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Totem{}).Where("owner_id = ?", id).Update("owner_id", nil).Error; err != nil {
			return err
		}
		res := tx.Delete(&Seller{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	return storeErr(err)
}

func (r *gormTotemRepo) Create(ctx context.Context, t *Totem) error {
	if r.db == nil {
		return errNotInitialized
	}
	return storeErr(r.db.WithContext(ctx).Create(t).Error)
}

func (r *gormTotemRepo) GetByID(ctx context.Context, id uint) (*Totem, error) {
	if r.db == nil {
		return nil, errNotInitialized
	}
	var t Totem
	if err := r.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, storeErr(err)
	}
	return &t, nil
}

// GetByExternalID loads the totem together with its owner, if any.
func (r *gormTotemRepo) GetByExternalID(ctx context.Context, externalPosID string) (*Totem, error) {
	if r.db == nil {
		return nil, errNotInitialized
	}
	var t Totem
	err := r.db.WithContext(ctx).Preload("Owner").Where("external_pos_id = ?", externalPosID).First(&t).Error
	if err != nil {
		return nil, storeErr(err)
	}
	return &t, nil
}

func (r *gormTotemRepo) List(ctx context.Context, skip, limit int, ownerID *uint) ([]Totem, error) {
	if r.db == nil {
		return nil, errNotInitialized
	}
	q := r.db.WithContext(ctx).Order("id")
	if ownerID != nil {
		q = q.Where("owner_id = ?", *ownerID)
	}
	var totems []Totem
	if err := q.Offset(skip).Limit(limit).Find(&totems).Error; err != nil {
		return nil, storeErr(err)
	}
	return totems, nil
}

func (r *gormTotemRepo) Update(ctx context.Context, t *Totem) error {
	if r.db == nil {
		return errNotInitialized
	}
	res := r.db.WithContext(ctx).Model(t).
		Select("external_pos_id", "location", "is_active", "owner_id").
		Updates(t)
	if res.Error != nil {
		return storeErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormTotemRepo) Delete(ctx context.Context, id uint) error {
	if r.db == nil {
		return errNotInitialized
	}
	res := r.db.WithContext(ctx).Delete(&Totem{}, id)
	if res.Error != nil {
		return storeErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormEventRepo) AddPayment(ctx context.Context, e *PaymentEvent) error {
	if r.db == nil {
		return errNotInitialized
	}
	return storeErr(r.db.WithContext(ctx).Create(e).Error)
}

func (r *gormEventRepo) AddParkingEvents(ctx context.Context, events []ParkingEvent) error {
	if r.db == nil {
		return errNotInitialized
	}
	if len(events) == 0 {
		return nil
	}
	return storeErr(r.db.WithContext(ctx).CreateInBatches(events, 100).Error)
}
