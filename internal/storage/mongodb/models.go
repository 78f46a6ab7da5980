package mongodb

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"hotelbook/internal/domain"
)

// listingDocument is the stored shape of a listing. Field names follow the
// public JSON names so documents and API payloads line up.
type listingDocument struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	UserID        string             `bson:"userId"`
	Name          string             `bson:"name"`
	City          string             `bson:"city"`
	Country       string             `bson:"country"`
	Description   string             `bson:"description"`
	Type          string             `bson:"type"`
	AdultCount    int                `bson:"adultCount"`
	ChildCount    int                `bson:"childCount"`
	Facilities    []string           `bson:"facilities"`
	PricePerNight float64            `bson:"pricePerNight"`
	StarRating    int                `bson:"starRating"`
	ImageURLs     []string           `bson:"imageUrls"`
	LastUpdated   time.Time          `bson:"lastUpdated"`
}

func toDocument(l domain.Listing) listingDocument {
	return listingDocument{
		UserID:        l.OwnerID,
		Name:          l.Name,
		City:          l.City,
		Country:       l.Country,
		Description:   l.Description,
		Type:          l.Type,
		AdultCount:    l.AdultCount,
		ChildCount:    l.ChildCount,
		Facilities:    nonNil(l.Facilities),
		PricePerNight: l.PricePerNight,
		StarRating:    l.StarRating,
		ImageURLs:     nonNil(l.ImageURLs),
		LastUpdated:   l.LastUpdated,
	}
}

func toDomain(d listingDocument) domain.Listing {
	return domain.Listing{
		ID:            d.ID.Hex(),
		OwnerID:       d.UserID,
		Name:          d.Name,
		City:          d.City,
		Country:       d.Country,
		Description:   d.Description,
		Type:          d.Type,
		AdultCount:    d.AdultCount,
		ChildCount:    d.ChildCount,
		Facilities:    nonNil(d.Facilities),
		PricePerNight: d.PricePerNight,
		StarRating:    d.StarRating,
		ImageURLs:     nonNil(d.ImageURLs),
		LastUpdated:   d.LastUpdated.UTC(),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
