// Package dataset collects and persists the metro economic indicators that
// feed the resilience scorer: Census ACS demographics fetched over HTTP,
// plus unemployment and diversity figures synthesized deterministically
// until real BLS/BEA series are wired in.
package dataset

import (
	"hash/fnv"
	"math"
)

// Metro holds the economic indicators for one metropolitan statistical area.
// Zero-valued floats are written as empty CSV cells; NaN marks "missing".
type Metro struct {
	Name                 string  `json:"metro_name"`
	Code                 string  `json:"metro_code"`
	TotalPopulation      float64 `json:"total_population"`
	MedianIncome         float64 `json:"median_household_income"`
	MedianHomeValue      float64 `json:"median_home_value"`
	BachelorsDegree      float64 `json:"bachelors_degree"`
	PublicTransportation float64 `json:"public_transportation"`
	UnemploymentRate     float64 `json:"unemployment_rate"`
	UnemploymentChange1Y float64 `json:"unemployment_change_1yr"`
	DiversityScore       float64 `json:"economic_diversity_score"`
	TopIndustryShare     float64 `json:"top_industry_share"`
}

// MajorMetros maps the 20 largest metro areas to their CBSA codes.
var MajorMetros = map[string]string{
	"New York-Newark-Jersey City, NY-NJ-PA":        "35620",
	"Los Angeles-Long Beach-Anaheim, CA":           "31080",
	"Chicago-Naperville-Elgin, IL-IN-WI":           "16980",
	"Dallas-Fort Worth-Arlington, TX":              "19100",
	"Houston-The Woodlands-Sugar Land, TX":         "26420",
	"Washington-Arlington-Alexandria, DC-VA-MD-WV": "47900",
	"Philadelphia-Camden-Wilmington, PA-NJ-DE-MD":  "37980",
	"Miami-Fort Lauderdale-West Palm Beach, FL":    "33100",
	"Atlanta-Sandy Springs-Roswell, GA":            "12060",
	"Boston-Cambridge-Newton, MA-NH":               "14460",
	"Phoenix-Mesa-Scottsdale, AZ":                  "38060",
	"San Francisco-Oakland-Hayward, CA":            "41860",
	"Riverside-San Bernardino-Ontario, CA":         "40140",
	"Detroit-Warren-Dearborn, MI":                  "19820",
	"Seattle-Tacoma-Bellevue, WA":                  "42660",
	"Minneapolis-St. Paul-Bloomington, MN-WI":      "33460",
	"San Diego-Carlsbad, CA":                       "41740",
	"Tampa-St. Petersburg-Clearwater, FL":          "45300",
	"Denver-Aurora-Lakewood, CO":                   "19740",
	"Baltimore-Columbia-Towson, MD":                "12580",
}

// nameHash produces a stable small integer from a metro name. The synthetic
// indicators must not change between runs, so this replaces math/rand.
func nameHash(name string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return h.Sum64()
}

// SynthesizeUnemployment fills in unemployment figures for a metro.
// Values are derived from the metro name: rate in [4.2, 7.2), 1-yr change
// in [-0.5, 1.5). Placeholder for the BLS LAUS series.
func SynthesizeUnemployment(name string) (rate, change1y float64) {
	h := nameHash(name)
	rate = 4.2 + float64(h%3)
	change1y = -0.5 + float64(h%2)
	return rate, change1y
}

// SynthesizeDiversity fills in economic diversity figures for a metro.
// Score in [50, 90), top-industry share in [0.15, 0.35).
func SynthesizeDiversity(name string) (score, topShare float64) {
	h := nameHash(name)
	score = 50 + float64(h%40)
	topShare = 0.15 + float64(h%20)/100
	return score, topShare
}

// Missing reports whether a float represents a missing value.
func Missing(v float64) bool {
	return math.IsNaN(v)
}

// HasRequiredFields reports whether a metro has every indicator the scorer
// needs. Rows failing this check are dropped before scoring.
func (m Metro) HasRequiredFields() bool {
	return !Missing(m.UnemploymentRate) &&
		!Missing(m.DiversityScore) &&
		!Missing(m.MedianIncome) &&
		!Missing(m.TotalPopulation) &&
		m.TotalPopulation > 0
}
