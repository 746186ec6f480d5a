package model

import (
	"time"

	"service_finder/internal/common/geo"
)

type ContactType string

const (
	ContactMobile   ContactType = "mobile"
	ContactLandline ContactType = "landline"
	ContactEmail    ContactType = "email"
)

const DefaultPriceRange = "Varies"

type Address struct {
	Street  string `json:"street" bson:"street" validate:"required"`
	City    string `json:"city" bson:"city" validate:"required"`
	State   string `json:"state" bson:"state" validate:"required"`
	ZipCode string `json:"zipCode" bson:"zipCode" validate:"required"`
	Label   string `json:"label" bson:"label" validate:"required"` // Full formatted address
}

type Contact struct {
	Type  ContactType `json:"type" bson:"type" validate:"required,oneof=mobile landline email"`
	Value string      `json:"value" bson:"value" validate:"required"`
}

type DayHours struct {
	Open  string `json:"open,omitempty" bson:"open,omitempty"`
	Close string `json:"close,omitempty" bson:"close,omitempty"`
}

type OpeningHours struct {
	Monday    *DayHours `json:"monday,omitempty" bson:"monday,omitempty"`
	Tuesday   *DayHours `json:"tuesday,omitempty" bson:"tuesday,omitempty"`
	Wednesday *DayHours `json:"wednesday,omitempty" bson:"wednesday,omitempty"`
	Thursday  *DayHours `json:"thursday,omitempty" bson:"thursday,omitempty"`
	Friday    *DayHours `json:"friday,omitempty" bson:"friday,omitempty"`
	Saturday  *DayHours `json:"saturday,omitempty" bson:"saturday,omitempty"`
	Sunday    *DayHours `json:"sunday,omitempty" bson:"sunday,omitempty"`
}

type ServiceProvider struct {
	ID              string       `json:"id" bson:"_id"`
	Name            string       `json:"name" bson:"name"`
	CategoryID      string       `json:"categoryId" bson:"category"`
	Category        *Category    `json:"category,omitempty" bson:"-"` // Populated on read
	Address         Address      `json:"address" bson:"address"`
	Location        geo.Point    `json:"location" bson:"location"`
	Contacts        []Contact    `json:"contacts" bson:"contacts"`
	Rating          float64      `json:"rating" bson:"rating"`
	Reviews         int          `json:"reviews" bson:"reviews"`
	PriceRange      string       `json:"priceRange" bson:"priceRange"`
	IsVerified      bool         `json:"isVerified" bson:"isVerified"`
	IsAvailable     bool         `json:"isAvailable" bson:"isAvailable"`
	Description     string       `json:"description,omitempty" bson:"description,omitempty"`
	Images          []string     `json:"images" bson:"images"`
	OpeningHours    OpeningHours `json:"openingHours" bson:"openingHours"`
	Services        []string     `json:"services" bson:"services"`
	ExperienceYears int          `json:"experienceYears,omitempty" bson:"experienceYears,omitempty"`
	Certifications  []string     `json:"certifications" bson:"certifications"`
	CreatedAt       time.Time    `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt" bson:"updatedAt"`
}

// NearbyProvider is a search hit annotated with its distance in km.
type NearbyProvider struct {
	ServiceProvider
	Distance float64 `json:"distance"`
}
