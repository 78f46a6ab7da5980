package mongodb

import (
	"errors"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"hotelbook/internal/domain"
)

// errNoMatch marks a filter that cannot match any document, e.g. an id that
// is not a valid ObjectID.
var errNoMatch = errors.New("filter matches nothing")

func toQuery(f domain.Filter) (bson.M, error) {
	q := bson.M{}
	if f.ID != "" {
		oid, err := primitive.ObjectIDFromHex(f.ID)
		if err != nil {
			return nil, errNoMatch
		}
		q["_id"] = oid
	}
	if f.OwnerID != "" {
		q["userId"] = f.OwnerID
	}
	if f.Destination != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(f.Destination), Options: "i"}
		q["$or"] = bson.A{
			bson.M{"city": re},
			bson.M{"country": re},
		}
	}
	if f.MinAdults != nil {
		q["adultCount"] = bson.M{"$gte": *f.MinAdults}
	}
	if f.MinChildren != nil {
		q["childCount"] = bson.M{"$gte": *f.MinChildren}
	}
	if len(f.Facilities) > 0 {
		q["facilities"] = bson.M{"$all": f.Facilities}
	}
	if len(f.Types) > 0 {
		q["type"] = bson.M{"$in": f.Types}
	}
	if len(f.Stars) > 0 {
		q["starRating"] = bson.M{"$in": f.Stars}
	}
	if f.MaxPrice != nil {
		q["pricePerNight"] = bson.M{"$lte": *f.MaxPrice}
	}
	return q, nil
}

// toSort always ends with _id so equal keys page deterministically.
func toSort(k domain.SortKey) bson.D {
	switch k {
	case domain.SortRatingDesc:
		return bson.D{{Key: "starRating", Value: -1}, {Key: "_id", Value: 1}}
	case domain.SortPriceAsc:
		return bson.D{{Key: "pricePerNight", Value: 1}, {Key: "_id", Value: 1}}
	case domain.SortPriceDesc:
		return bson.D{{Key: "pricePerNight", Value: -1}, {Key: "_id", Value: 1}}
	default:
		return bson.D{{Key: "_id", Value: 1}}
	}
}

func toSet(u domain.ListingUpdate) bson.M {
	d := u.Draft
	return bson.M{
		"name":          d.Name,
		"city":          d.City,
		"country":       d.Country,
		"description":   d.Description,
		"type":          d.Type,
		"adultCount":    d.AdultCount,
		"childCount":    d.ChildCount,
		"facilities":    nonNil(domain.UniqueStrings(d.Facilities)),
		"pricePerNight": d.PricePerNight,
		"starRating":    d.StarRating,
		"imageUrls":     nonNil(u.ImageURLs),
		"lastUpdated":   u.LastUpdated,
	}
}

// withImages narrows q to documents whose image list still equals prev. A nil
// prev leaves q as is.
func withImages(q bson.M, prev []string) bson.M {
	switch {
	case prev == nil:
	case len(prev) == 0:
		q["imageUrls"] = bson.M{"$in": bson.A{nil, bson.A{}}}
	default:
		q["imageUrls"] = prev
	}
	return q
}
