package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Domenick1991/travelquotes/internal/domain"
)

// SearchClient runs one flight-offer search per call. Implementations must return
// transport and non-2xx failures as errors, never as an empty batch.
type SearchClient interface {
	Search(ctx context.Context, criteria domain.SearchCriteria) (*RawOfferBatch, error)
}

// RawOfferBatch is one page of provider offers.
type RawOfferBatch struct {
	Offers       []RawOffer
	Dictionaries Dictionaries
	NextLink     string
}

// MoreResultsAvailable reports whether the provider signalled another page.
func (b *RawOfferBatch) MoreResultsAvailable() bool {
	return b != nil && b.NextLink != ""
}

type Dictionaries struct {
	Carriers map[string]string `json:"carriers"`
	Aircraft map[string]string `json:"aircraft"`
}

type RawOffer struct {
	ID               string            `json:"id"`
	OneWay           bool              `json:"oneWay"`
	OpenTicket       bool              `json:"openTicket"`
	Itineraries      []RawItinerary    `json:"itineraries"`
	Price            RawPrice          `json:"price"`
	TravelerPricings []RawTravelerFare `json:"travelerPricings"`
	Policies         RawPolicies       `json:"policies"`

	// Raw is the offer exactly as received.
	Raw json.RawMessage `json:"-"`
}

type RawItinerary struct {
	Duration string       `json:"duration"`
	Segments []RawSegment `json:"segments"`
}

type RawSegment struct {
	ID          string      `json:"id"`
	Departure   RawEndpoint `json:"departure"`
	Arrival     RawEndpoint `json:"arrival"`
	CarrierCode string      `json:"carrierCode"`
	Number      string      `json:"number"`
	Aircraft    struct {
		Code string `json:"code"`
	} `json:"aircraft"`
	Operating *struct {
		CarrierCode string `json:"carrierCode"`
	} `json:"operating,omitempty"`
	Duration   string `json:"duration"`
	SeatLayout string `json:"seatLayout"`
}

type RawEndpoint struct {
	IataCode string `json:"iataCode"`
	Terminal string `json:"terminal"`
	At       string `json:"at"`
}

type RawPrice struct {
	Currency   string `json:"currency"`
	Total      string `json:"total"`
	GrandTotal string `json:"grandTotal"`
}

type RawTravelerFare struct {
	TravelerID           string           `json:"travelerId"`
	TravelerType         string           `json:"travelerType"`
	FareDetailsBySegment []RawSegmentFare `json:"fareDetailsBySegment"`
	Price                RawPrice         `json:"price"`
}

type RawSegmentFare struct {
	SegmentID           string       `json:"segmentId"`
	Cabin               string       `json:"cabin"`
	BrandedFare         string       `json:"brandedFare"`
	IncludedCheckedBags *RawBagCount `json:"includedCheckedBags,omitempty"`
	IncludedCabinBags   *RawBagCount `json:"includedCabinBags,omitempty"`
	Amenities           []RawAmenity `json:"amenities"`
	Policies            RawPolicies  `json:"policies"`
}

type RawBagCount struct {
	Quantity   int    `json:"quantity"`
	Weight     int    `json:"weight"`
	WeightUnit string `json:"weightUnit"`
}

type RawAmenity struct {
	Description  string `json:"description"`
	IsChargeable bool   `json:"isChargeable"`
	AmenityType  string `json:"amenityType"`
}

// RawPolicies carries free-text fare rules. Any field may be absent.
type RawPolicies struct {
	Baggage string `json:"baggage"`
	Change  string `json:"change"`
	Refund  string `json:"refund"`
	Seat    string `json:"seat"`
}

type offersResponse struct {
	Meta struct {
		Count int `json:"count"`
		Links struct {
			Self string `json:"self"`
			Next string `json:"next"`
		} `json:"links"`
	} `json:"meta"`
	Data         []json.RawMessage `json:"data"`
	Dictionaries Dictionaries      `json:"dictionaries"`
}

// ParseOfferBatch decodes a flight-offers response body, keeping each offer's raw JSON.
func ParseOfferBatch(body []byte) (*RawOfferBatch, error) {
	var resp offersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode flight offers: %w", err)
	}
	batch := &RawOfferBatch{
		Offers:       make([]RawOffer, 0, len(resp.Data)),
		Dictionaries: resp.Dictionaries,
		NextLink:     resp.Meta.Links.Next,
	}
	for i, raw := range resp.Data {
		var offer RawOffer
		if err := json.Unmarshal(raw, &offer); err != nil {
			return nil, fmt.Errorf("decode flight offer %d: %w", i, err)
		}
		offer.Raw = append(json.RawMessage(nil), raw...)
		batch.Offers = append(batch.Offers, offer)
	}
	return batch, nil
}
