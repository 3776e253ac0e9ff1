// Package ranking selects the agencies eligible for an alert and orders them
// by relevance. Everything here is pure.
package ranking

import (
	"math"
	"sort"

	"emergency-dispatch/internal/models"
)

const earthRadiusKm = 6371.0

// Eligibility maps an alert type to the agency types that respond to it.
var Eligibility = map[models.AlertType][]models.AgencyType{
	models.AlertTerrorism:     {models.AgencyMilitary, models.AgencyPolice, models.AgencySecurityForce},
	models.AlertBanditry:      {models.AgencyPolice, models.AgencySecurityForce},
	models.AlertKidnapping:    {models.AgencyPolice, models.AgencySecurityForce},
	models.AlertArmedRobbery:  {models.AgencyPolice},
	models.AlertRobbery:       {models.AgencyPolice},
	models.AlertFireIncidence: {models.AgencyFire},
	models.AlertAccident:      {models.AgencyMedical},
	models.AlertOther:         {models.AgencyPolice},
}

var fallbackTypes = []models.AgencyType{models.AgencyPolice}

// EligibleTypes returns the agency types for t. Unmapped types get POLICE.
func EligibleTypes(t models.AlertType) []models.AgencyType {
	if types, ok := Eligibility[t]; ok {
		return types
	}
	return fallbackTypes
}

// Ranked is one agency in dispatch order. DistanceKm is nil when either side
// has no position.
type Ranked struct {
	Agency     models.Agency
	DistanceKm *float64
}

// Rank filters agencies to the active, eligible ones and orders them:
// geolocated agencies closest first, then the rest by id. Without a usable
// alert location every eligible agency is returned by id with no distance.
func Rank(agencies []models.Agency, alertType models.AlertType, loc *models.Location) []Ranked {
	eligible := make(map[models.AgencyType]bool)
	for _, t := range EligibleTypes(alertType) {
		eligible[t] = true
	}

	var candidates []models.Agency
	for _, a := range agencies {
		if a.Active && eligible[a.Type] {
			candidates = append(candidates, a)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })

	if !usable(loc) {
		out := make([]Ranked, 0, len(candidates))
		for _, a := range candidates {
			out = append(out, Ranked{Agency: a})
		}
		return out
	}

	var located, unlocated []Ranked
	for _, a := range candidates {
		lat, lng, ok := a.Coordinates()
		if !ok {
			unlocated = append(unlocated, Ranked{Agency: a})
			continue
		}
		d := HaversineKm(loc.Latitude, loc.Longitude, lat, lng)
		located = append(located, Ranked{Agency: a, DistanceKm: &d})
	}
	sort.SliceStable(located, func(i, j int) bool {
		return *located[i].DistanceKm < *located[j].DistanceKm
	})

	return append(located, unlocated...)
}

// usable treats a missing or malformed location as no location at all.
func usable(loc *models.Location) bool {
	if loc == nil {
		return false
	}
	for _, v := range []float64{loc.Latitude, loc.Longitude} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// HaversineKm is the great-circle distance between two points in kilometres.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
