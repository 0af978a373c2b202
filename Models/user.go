package Models

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleDispatcher Role = "dispatcher"
	RoleDriver     Role = "driver"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDispatcher, RoleDriver:
		return true
	}
	return false
}

type User struct {
	gorm.Model
	Name     string `json:"name"`
	Email    string `json:"email" gorm:"uniqueIndex;not null"`
	Password []byte `json:"-"`
	Role     Role   `json:"role" gorm:"type:varchar(16);not null"`
}

// HashPassword is called explicitly before a user row is written. Nothing
// hashes implicitly on save.
func HashPassword(plain string) ([]byte, error) {
	if len(strings.TrimSpace(plain)) < 6 {
		return nil, Invalid("password", "must be at least 6 characters")
	}
	return bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
}

// CheckPassword compares a plaintext candidate with the stored hash.
func (u User) CheckPassword(plain string) bool {
	return bcrypt.CompareHashAndPassword(u.Password, []byte(plain)) == nil
}

// Truck, Trailer and Client are owned by the fleet and client screens; trips
// and fuel entries only need to know they exist.
type Truck struct {
	gorm.Model
	Plate string `json:"plate" gorm:"uniqueIndex;not null"`
	Brand string `json:"brand"`
}

type Trailer struct {
	gorm.Model
	Plate string `json:"plate" gorm:"uniqueIndex;not null"`
}

type Client struct {
	gorm.Model
	Name  string `json:"name" gorm:"not null"`
	TaxID string `json:"tax_id"`
	Email string `json:"email"`
}
