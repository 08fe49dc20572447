package models

import "time"

type Landscape string

const (
	LandscapeBeach    Landscape = "Beach"
	LandscapeMountain Landscape = "Mountain"
	LandscapeHeritage Landscape = "Heritage"
	LandscapeCity     Landscape = "City"
)

// DestinationContent is the set of catalogue fields a destination request
// proposes and an approval copies verbatim.
type DestinationContent struct {
	Name        string    `json:"name" bson:"name"`
	Landscape   Landscape `json:"landscape" bson:"landscape"`
	Description string    `json:"description" bson:"description"`
	Image       string    `json:"image" bson:"image"`
	Rating      float64   `json:"rating" bson:"rating"`
	Price       float64   `json:"price" bson:"price"`
	Duration    string    `json:"duration" bson:"duration"`
	Popular     bool      `json:"popular" bson:"popular"`
}

type Destination struct {
	ID                 string `json:"id" bson:"_id"`
	DestinationContent `bson:",inline"`
	// SourceRequest is the request this destination was materialised from.
	SourceRequest string    `json:"sourceRequest,omitempty" bson:"sourceRequest,omitempty"`
	CreatedAt     time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt" bson:"updatedAt"`
}
