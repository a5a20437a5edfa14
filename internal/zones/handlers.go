package zones

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/kylegordy/cpd-zones/internal/geocoding"
)

// ZoneResolver is what the HTTP layer needs from the resolver.
type ZoneResolver interface {
	FindZone(ctx context.Context, lat, lon float64) (uint, bool, error)
	FindOfficers(ctx context.Context, zoneID uint) ([]Officer, error)
	GetZone(ctx context.Context, id uint) (*Zone, error)
}

// Handler exposes the resolution flow over HTTP: address (or coordinates) in,
// zone and responsible officers out.
type Handler struct {
	resolver ZoneResolver
	geocoder geocoding.Geocoder // nil when no API key is configured
}

func NewHandler(resolver ZoneResolver, geocoder geocoding.Geocoder) *Handler {
	return &Handler{resolver: resolver, geocoder: geocoder}
}

type OfficerOut struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Title string `json:"title"`
}

type LookupResponse struct {
	Found       bool                `json:"found"`
	Coordinates *geocoding.Location `json:"coordinates,omitempty"`
	ZoneID      uint                `json:"zone_id,omitempty"`
	ZoneName    string              `json:"zone_name,omitempty"`
	Officers    []OfficerOut        `json:"officers"`
}

func emptyLookup() LookupResponse {
	return LookupResponse{Officers: []OfficerOut{}}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// SearchByAddress geocodes ?address= and resolves the zone covering it. Every
// failure stage (geocoding, zone lookup, officer lookup) degrades to an empty
// result; only a missing parameter is a client error.
func (h *Handler) SearchByAddress(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	if address == "" {
		http.Error(w, "address query parameter is required", http.StatusBadRequest)
		return
	}

	if h.geocoder == nil {
		writeJSON(w, emptyLookup())
		return
	}

	loc, err := h.geocoder.Geocode(r.Context(), address)
	if err != nil || loc == nil {
		// A geocoding failure is indistinguishable from an unknown address.
		if err != nil {
			log.Printf("geocode %q: %v", address, err)
		}
		writeJSON(w, emptyLookup())
		return
	}

	resp := h.lookup(r.Context(), loc.Lat, loc.Lng)
	resp.Coordinates = loc
	writeJSON(w, resp)
}

// ResolvePoint resolves ?lat=&lon= directly, bypassing geocoding.
func (h *Handler) ResolvePoint(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if errLat != nil || errLon != nil {
		http.Error(w, "lat and lon query parameters are required", http.StatusBadRequest)
		return
	}

	writeJSON(w, h.lookup(r.Context(), lat, lon))
}

func (h *Handler) lookup(ctx context.Context, lat, lon float64) LookupResponse {
	zoneID, found, err := h.resolver.FindZone(ctx, lat, lon)
	if err != nil {
		log.Printf("find zone (%f, %f): %v", lat, lon, err)
		return emptyLookup()
	}
	if !found {
		return emptyLookup()
	}

	resp := emptyLookup()
	resp.Found = true
	resp.ZoneID = zoneID

	if zone, err := h.resolver.GetZone(ctx, zoneID); err != nil {
		log.Printf("get zone %d: %v", zoneID, err)
	} else if zone != nil {
		resp.ZoneName = zone.Name
	}

	officers, err := h.resolver.FindOfficers(ctx, zoneID)
	if err != nil {
		log.Printf("find officers for zone %d: %v", zoneID, err)
		return emptyLookup()
	}
	for _, o := range officers {
		resp.Officers = append(resp.Officers, OfficerOut{
			Name:  o.Name,
			Email: o.Email,
			Phone: o.Phone,
			Title: o.Title,
		})
	}
	return resp
}
