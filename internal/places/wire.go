package places

// Proxy response statuses, mirroring the provider's taxonomy.
const (
	StatusOK             = "OK"
	StatusZeroResults    = "ZERO_RESULTS"
	StatusInvalidRequest = "INVALID_REQUEST"
	StatusRequestDenied  = "REQUEST_DENIED"
	StatusUnknownError   = "UNKNOWN_ERROR"
	StatusNotFound       = "NOT_FOUND"
)

// GeocodePlaceIDPrefix marks prediction ids minted by the proxy rather than the provider.
const GeocodePlaceIDPrefix = "geocode_"

// LatLng is the provider's coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Geometry wraps a location.
type Geometry struct {
	Location LatLng `json:"location"`
}

// StructuredFormatting splits a description for display.
type StructuredFormatting struct {
	MainText      string `json:"main_text"`
	SecondaryText string `json:"secondary_text"`
}

// Prediction is one autocomplete entry.
type Prediction struct {
	PlaceID              string               `json:"place_id"`
	Description          string               `json:"description"`
	StructuredFormatting StructuredFormatting `json:"structured_formatting"`
	Geometry             *Geometry            `json:"geometry,omitempty"`
}

// AutocompleteRequest is the body of POST /api/places/autocomplete.
type AutocompleteRequest struct {
	Query string `json:"query"`
}

// AutocompleteResponse is the proxy's autocomplete answer.
type AutocompleteResponse struct {
	Status       string       `json:"status"`
	Predictions  []Prediction `json:"predictions"`
	ErrorMessage string       `json:"error_message,omitempty"`
}

// DetailsRequest is the body of POST /api/places/details.
type DetailsRequest struct {
	PlaceID string `json:"placeId"`
}

// PlaceResult is a resolved place.
type PlaceResult struct {
	FormattedAddress string   `json:"formatted_address"`
	Geometry         Geometry `json:"geometry"`
}

// DetailsResponse answers both details and reverse lookups.
type DetailsResponse struct {
	Status       string       `json:"status"`
	Result       *PlaceResult `json:"result,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
}

// ReverseRequest is the body of POST /api/places/reverse.
type ReverseRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ToPrediction converts a candidate for the wire.
func (c Candidate) ToPrediction() Prediction {
	p := Prediction{
		PlaceID:     c.PlaceID,
		Description: c.Description,
		StructuredFormatting: StructuredFormatting{
			MainText:      c.MainText,
			SecondaryText: c.SecondaryText,
		},
	}
	if c.HasLocation {
		p.Geometry = &Geometry{Location: LatLng{Lat: c.Latitude, Lng: c.Longitude}}
	}
	return p
}

// FromPrediction converts a wire prediction back into a candidate.
func FromPrediction(p Prediction) Candidate {
	c := Candidate{
		PlaceID:       p.PlaceID,
		Description:   p.Description,
		MainText:      p.StructuredFormatting.MainText,
		SecondaryText: p.StructuredFormatting.SecondaryText,
	}
	if c.MainText == "" {
		c.MainText, c.SecondaryText = SplitAddress(p.Description)
	}
	if p.Geometry != nil {
		c.Latitude = p.Geometry.Location.Lat
		c.Longitude = p.Geometry.Location.Lng
		c.HasLocation = true
	}
	return c
}
