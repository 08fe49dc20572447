package models

import "time"

// DestinationRequest is a user's proposal for a new catalogue destination.
type DestinationRequest struct {
	ID                 string `json:"id" bson:"_id"`
	UserID             string `json:"user" bson:"user"`
	DestinationContent `bson:",inline"`
	Status             RequestStatus `json:"status" bson:"status"`
	CreatedAt          time.Time     `json:"createdAt" bson:"createdAt"`
	UpdatedAt          time.Time     `json:"updatedAt" bson:"updatedAt"`
}

// RequestPatch is an administrator edit; nil fields keep their value.
type RequestPatch struct {
	Name        *string
	Landscape   *Landscape
	Description *string
	Image       *string
	Rating      *float64
	Price       *float64
	Duration    *string
	Popular     *bool
}

// Apply overwrites the supplied fields of c.
func (p RequestPatch) Apply(c *DestinationContent) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Landscape != nil {
		c.Landscape = *p.Landscape
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.Image != nil {
		c.Image = *p.Image
	}
	if p.Rating != nil {
		c.Rating = *p.Rating
	}
	if p.Price != nil {
		c.Price = *p.Price
	}
	if p.Duration != nil {
		c.Duration = *p.Duration
	}
	if p.Popular != nil {
		c.Popular = *p.Popular
	}
}
