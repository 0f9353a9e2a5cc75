package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID           string `gorm:"type:varchar(36);primaryKey"`
	Username     string `gorm:"size:80;not null;uniqueIndex"`
	Email        string `gorm:"size:255;not null;uniqueIndex"`
	PasswordHash string `gorm:"not null"`
	Avatar       string
	Role         string `gorm:"size:20;not null;default:'user'"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Sitter struct {
	ID              string `gorm:"type:varchar(36);primaryKey"`
	UserID          string `gorm:"type:varchar(36);not null;uniqueIndex"`
	Name            string `gorm:"size:120;not null"`
	Avatar          string
	Description     string
	BasePrice       int    `gorm:"not null;check:base_price >= 0"`
	City            string `gorm:"size:80;index"`
	Address         string
	Latitude        float64
	Longitude       float64
	Experience      int
	Certifications  []string `gorm:"serializer:json"`
	Rating          float64  `gorm:"not null;default:0"`
	ReviewCount     int      `gorm:"not null;default:0"`
	LastActive      time.Time
	CalendarUpdated time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time

	User     *User           `gorm:"foreignKey:UserID"`
	Services []SitterService `gorm:"foreignKey:SitterID"`
}

type SitterService struct {
	ID          string `gorm:"type:varchar(36);primaryKey"`
	SitterID    string `gorm:"type:varchar(36);not null;uniqueIndex:idx_sitter_service_type"`
	ServiceType string `gorm:"size:40;not null;uniqueIndex:idx_sitter_service_type"`
	Price       int    `gorm:"not null;check:price >= 0"`
	Description string
	Duration    int // minutes
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SitterAvailability is a single offerable slot. Date is a calendar day (2006-01-02),
// StartTime and EndTime are wall-clock times (15:04).
type SitterAvailability struct {
	ID          string `gorm:"type:varchar(36);primaryKey"`
	SitterID    string `gorm:"type:varchar(36);not null;uniqueIndex:idx_sitter_slot"`
	Date        string `gorm:"type:varchar(10);not null;uniqueIndex:idx_sitter_slot"`
	StartTime   string `gorm:"type:varchar(5);not null;uniqueIndex:idx_sitter_slot"`
	EndTime     string `gorm:"type:varchar(5);not null"`
	IsAvailable bool   `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

type Booking struct {
	ID            string `gorm:"type:varchar(36);primaryKey"`
	SitterID      string `gorm:"type:varchar(36);not null;index"`
	UserID        string `gorm:"type:varchar(36);not null;index"`
	Date          string `gorm:"type:varchar(10);not null;index"`
	StartTime     string `gorm:"type:varchar(5);not null"`
	EndTime       string `gorm:"type:varchar(5);not null"`
	ServiceType   string `gorm:"size:40;not null"`
	Price         int    `gorm:"not null"`
	PetInfo       string
	SpecialNeeds  string
	Status        string `gorm:"size:20;not null;default:'pending';index"`
	LastContacted *time.Time
	// SlotKey is set only while the booking is pending or confirmed; the unique index
	// keeps a slot from being held twice.
	SlotKey   *string `gorm:"size:128;uniqueIndex"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Sitter *Sitter `gorm:"foreignKey:SitterID"`
	User   *User   `gorm:"foreignKey:UserID"`
}

type SitterReview struct {
	ID        string `gorm:"type:varchar(36);primaryKey"`
	SitterID  string `gorm:"type:varchar(36);not null;index"`
	UserID    string `gorm:"type:varchar(36);not null;index"`
	Rating    int    `gorm:"not null;check:rating >= 1 AND rating <= 5"`
	Comment   string
	Images    []string `gorm:"serializer:json"`
	CreatedAt time.Time
	UpdatedAt time.Time

	User *User `gorm:"foreignKey:UserID"`
}

// All lists every model in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Sitter{},
		&SitterService{},
		&SitterAvailability{},
		&Booking{},
		&SitterReview{},
	}
}

func newID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	newID(&u.ID)
	return nil
}

func (s *Sitter) BeforeCreate(tx *gorm.DB) error {
	newID(&s.ID)
	return nil
}

func (s *SitterService) BeforeCreate(tx *gorm.DB) error {
	newID(&s.ID)
	return nil
}

func (a *SitterAvailability) BeforeCreate(tx *gorm.DB) error {
	newID(&a.ID)
	return nil
}

func (b *Booking) BeforeCreate(tx *gorm.DB) error {
	newID(&b.ID)
	return nil
}

func (r *SitterReview) BeforeCreate(tx *gorm.DB) error {
	newID(&r.ID)
	return nil
}
