package db

import "time"

// Seller is an account that owns totems and, once linked, a Mercado Pago
// credential. The three MP fields are written together by
// CredentialRepository and never individually.
type Seller struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	Name           string `gorm:"size:100;not null" json:"name"`
	Email          string `gorm:"size:100;uniqueIndex;not null" json:"email"`
	HashedPassword string `gorm:"size:255;not null" json:"-"`
	IsAdmin        bool   `gorm:"not null" json:"is_admin"`

	MPAccessToken      *string    `gorm:"size:255" json:"-"`
	MPRefreshToken     *string    `gorm:"size:255" json:"-"`
	MPTokenLastUpdated *time.Time `json:"-"`
	CredentialVersion  int64      `gorm:"not null;default:0" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Totems []Totem `gorm:"foreignKey:OwnerID" json:"totems"`
}

// MPLinked reports whether the seller holds a complete Mercado Pago credential.
func (s *Seller) MPLinked() bool {
	return credentialOf(s).Linked()
}

// Totem is a field kiosk identified by its external point-of-sale id.
type Totem struct {
	ID            uint    `gorm:"primaryKey" json:"id"`
	ExternalPosID string  `gorm:"size:50;uniqueIndex;not null" json:"external_pos_id"` // e.g. QR_CAJA_01
	Location      *string `gorm:"size:255" json:"location"`
	IsActive      bool    `gorm:"not null" json:"is_active"`
	OwnerID       *uint   `gorm:"index" json:"owner_id"`
	Owner         *Seller `gorm:"foreignKey:OwnerID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PaymentEvent is a payment confirmation reported by a totem.
type PaymentEvent struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	TotemID       uint      `gorm:"index;not null" json:"totem_id"`
	ExternalPosID string    `gorm:"size:50;index;not null" json:"external_pos_id"`
	PaymentID     string    `gorm:"size:100;not null" json:"payment_id"`
	AmountCents   int64     `gorm:"not null" json:"amount_cents"`
	Currency      string    `gorm:"size:3;not null" json:"currency"`
	Status        string    `gorm:"size:30;not null" json:"status"`
	OccurredAt    time.Time `gorm:"not null" json:"occurred_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// Parking event kinds.
const (
	ParkingEntry = "entry"
	ParkingExit  = "exit"
)

// ParkingEvent is a vehicle entry or exit reported by a totem.
type ParkingEvent struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	TotemID       uint      `gorm:"index;not null" json:"totem_id"`
	ExternalPosID string    `gorm:"size:50;index;not null" json:"external_pos_id"`
	Plate         string    `gorm:"size:20" json:"plate"`
	Kind          string    `gorm:"size:10;not null" json:"kind"`
	OccurredAt    time.Time `gorm:"not null" json:"occurred_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// SellerUpdate lists the seller fields a seller may change about themselves.
// Nil fields are left untouched.
type SellerUpdate struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

// Apply copies the non-nil fields of u onto s.
func (u SellerUpdate) Apply(s *Seller) {
	if u.Name != nil {
		s.Name = *u.Name
	}
	if u.Email != nil {
		s.Email = *u.Email
	}
}

// Empty reports whether the update changes nothing.
func (u SellerUpdate) Empty() bool {
	return u.Name == nil && u.Email == nil
}

// TotemUpdate lists the totem fields that may be changed after creation.
type TotemUpdate struct {
	ExternalPosID *string `json:"external_pos_id"`
	Location      *string `json:"location"`
	IsActive      *bool   `json:"is_active"`
	OwnerID       *uint   `json:"owner_id"`
}

// Apply copies the non-nil fields of u onto t.
func (u TotemUpdate) Apply(t *Totem) {
	if u.ExternalPosID != nil {
		t.ExternalPosID = *u.ExternalPosID
	}
	if u.Location != nil {
		t.Location = u.Location
	}
	if u.IsActive != nil {
		t.IsActive = *u.IsActive
	}
	if u.OwnerID != nil {
		id := *u.OwnerID
		t.OwnerID = &id
	}
}
