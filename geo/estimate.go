package geo

import "strings"

// DefaultEstimateKm is used when no known district name appears in the address.
const DefaultEstimateKm = 5.0

var districtDistances = []struct {
	keywords []string
	km       float64
}{
	{[]string{"mirobod", "mirabad"}, 2.5},
	{[]string{"shayxontohur", "shaykhantakhur"}, 3},
	{[]string{"yakkasaroy", "yakkasaray"}, 3.5},
	{[]string{"olmazor", "almazar"}, 5.5},
	{[]string{"chilonzor", "chilanzar"}, 7},
	{[]string{"yunusobod", "yunusabad"}, 7.5},
	{[]string{"mirzo ulug'bek", "mirzo ulugbek", "mirzo-ulugbek"}, 6},
	{[]string{"yashnobod", "yashnabad"}, 6.5},
	{[]string{"uchtepa"}, 9},
	{[]string{"sergeli"}, 11},
	{[]string{"bektemir"}, 13},
	{[]string{"yangihayot"}, 14},
	{[]string{"qibray", "kibray"}, 16},
	{[]string{"zangiota", "zangiata"}, 18},
	{[]string{"chirchiq", "chirchik"}, 35},
}

// EstimateDistanceKm guesses the distance to an address from district
// keywords. The result depends only on the text, so dispatch stays
// reproducible when the geocoder is down.
func EstimateDistanceKm(address string) float64 {
	lower := strings.ToLower(address)
	for _, d := range districtDistances {
		for _, kw := range d.keywords {
			if strings.Contains(lower, kw) {
				return d.km
			}
		}
	}
	return DefaultEstimateKm
}
