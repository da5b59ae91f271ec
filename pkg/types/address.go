package types

import "strings"

// Address is a delivery/contact record owned by the remote account service.
type Address struct {
	ID        int64  `json:"id,omitempty"`
	Name      string `json:"name" validate:"required,max=120"`
	Phone     string `json:"phone" validate:"required,max=32"`
	Email     string `json:"email,omitempty" validate:"omitempty,email"`
	Street    string `json:"street" validate:"required,max=255"`
	City      string `json:"city" validate:"required,max=120"`
	Apartment string `json:"apartment,omitempty" validate:"max=120"`
}

// IsZero reports whether no deliverable field is populated.
func (a Address) IsZero() bool {
	return a.ID == 0 &&
		strings.TrimSpace(a.Name) == "" &&
		strings.TrimSpace(a.Street) == "" &&
		strings.TrimSpace(a.City) == ""
}

// Normalize trims whitespace from every text field.
func (a Address) Normalize() Address {
	a.Name = strings.TrimSpace(a.Name)
	a.Phone = strings.TrimSpace(a.Phone)
	a.Email = strings.TrimSpace(a.Email)
	a.Street = strings.TrimSpace(a.Street)
	a.City = strings.TrimSpace(a.City)
	a.Apartment = strings.TrimSpace(a.Apartment)
	return a
}
