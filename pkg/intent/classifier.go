package intent

import (
	"regexp"
	"strings"
)

// Intent identifies which lexical handler should serve a query.
type Intent string

const (
	IntentAskCountry    Intent = "ask.country"
	IntentCommitRegion  Intent = "commit.region"
	IntentCommitCountry Intent = "commit.country"
	IntentLawLookup     Intent = "law.lookup"
)

// Slots holds everything the rule-based classifier extracted from a query.
// Absent slots are empty strings, never nil. A Slots value is produced once
// per query and not mutated afterward.
type Slots struct {
	Intent    Intent `json:"intent"`
	Country   string `json:"country"`
	Region    string `json:"region"`
	Indicator string `json:"indicator"`
	Period    string `json:"period"`
}

// alias pairs are matched in order, so longer/more specific aliases must
// come before their prefixes ("saudi arabia" before "saudi").
type alias struct {
	match string
	value string
}

var countryAliases = []alias{
	{"saudi arabia", "Saudi Arabia"},
	{"saudi", "Saudi Arabia"},
	{"ksa", "Saudi Arabia"},
	{"沙特", "Saudi Arabia"},
}

var regionAliases = []alias{
	{"middle east and north africa", "Middle East and North Africa"},
	{"middle east", "Middle East and North Africa"},
	{"north africa", "Middle East and North Africa"},
	{"mena", "Middle East and North Africa"},
	{"sub-saharan africa", "Sub-Saharan Africa"},
	{"sub saharan africa", "Sub-Saharan Africa"},
	{"ssa", "Sub-Saharan Africa"},
	{"africa", "Sub-Saharan Africa"},
	{"asia", "Asia"},
	{"europe", "Europe"},
	{"americas", "Americas"},
	{"oceania", "Oceania"},
}

var indicatorKeywords = []alias{
	{"wildfire", "wildfires"},
	{"fire", "wildfires"},
	{"drought", "drought"},
	{"vegetation", "vegetation productivity"},
	{"carbon", "soil organic carbon"},
	{"degradation", "land degradation"},
	{"productivity", "vegetation productivity"},
}

var (
	yearRangePattern  = regexp.MustCompile(`(\d{4})\s*-\s*(\d{4})`)
	lastYearsPattern  = regexp.MustCompile(`last\s+(\d+)\s+years|最近(\d+)年`)
	singleYearPattern = regexp.MustCompile(`\b(\d{4})\b`)
)

var lawKeywords = []string{"law", "act", "regulation", "legislation", "法规", "条例", "细则"}
var commitmentKeywords = []string{"commitment", "承诺", "restore", "restoration"}
var regionScopeKeywords = []string{"by region", "region", "地区", "区域"}
var countryScopeKeywords = []string{"by country", "country", "国家"}

// Classifier maps free text to an intent plus extracted slots. It is a pure
// function of the query text and its fixed alias tables; it never fails and
// never returns empty required slots.
type Classifier struct {
	defaultCountry string
}

func NewClassifier(defaultCountry string) *Classifier {
	if defaultCountry == "" {
		defaultCountry = "Saudi Arabia"
	}
	return &Classifier{defaultCountry: defaultCountry}
}

// Classify extracts slots in a fixed order: country, region, period,
// indicator, then intent. First match wins at each step.
func (c *Classifier) Classify(query string) Slots {
	lower := strings.ToLower(query)

	slots := Slots{Intent: IntentAskCountry}

	for _, a := range countryAliases {
		if strings.Contains(lower, a.match) {
			slots.Country = a.value
			break
		}
	}
	if slots.Country == "" {
		slots.Country = c.defaultCountry
	}

	for _, a := range regionAliases {
		if strings.Contains(lower, a.match) {
			slots.Region = a.value
			break
		}
	}

	slots.Period = extractPeriod(query, lower)

	for _, a := range indicatorKeywords {
		if strings.Contains(lower, a.match) {
			slots.Indicator = a.value
			break
		}
	}

	slots.Intent = resolveIntent(lower)
	return slots
}

func extractPeriod(query, lower string) string {
	if m := yearRangePattern.FindStringSubmatch(query); m != nil {
		return m[1] + "-" + m[2]
	}
	if m := lastYearsPattern.FindStringSubmatch(lower); m != nil {
		years := m[1]
		if years == "" {
			years = m[2]
		}
		return "last " + years + " years"
	}
	if m := singleYearPattern.FindStringSubmatch(query); m != nil {
		return m[1]
	}
	return ""
}

// resolveIntent applies the fixed precedence: legislation keywords first,
// then commitment keywords (region-scoped vs country-scoped), else the
// default card lookup.
func resolveIntent(lower string) Intent {
	for _, kw := range lawKeywords {
		if strings.Contains(lower, kw) {
			return IntentLawLookup
		}
	}

	for _, kw := range commitmentKeywords {
		if strings.Contains(lower, kw) {
			for _, r := range regionScopeKeywords {
				if strings.Contains(lower, r) {
					return IntentCommitRegion
				}
			}
			for _, cw := range countryScopeKeywords {
				if strings.Contains(lower, cw) {
					return IntentCommitCountry
				}
			}
			// Ambiguous commitment queries default to country level
			return IntentCommitCountry
		}
	}

	return IntentAskCountry
}
