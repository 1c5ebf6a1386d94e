package model

// Severity is the normalized severity of an alert
type Severity string

const (
	SeverityExtreme  Severity = "Extreme"
	SeveritySevere   Severity = "Severe"
	SeverityModerate Severity = "Moderate"
	SeverityMinor    Severity = "Minor"
	SeverityInfo     Severity = "Info"
	SeverityUnknown  Severity = "Unknown"
)

// Urgency is the normalized urgency of an alert
type Urgency string

const (
	UrgencyImmediate Urgency = "Immediate"
	UrgencyExpected  Urgency = "Expected"
	UrgencyFuture    Urgency = "Future"
	UrgencyPast      Urgency = "Past"
	UrgencyUnknown   Urgency = "Unknown"
)

// Status is the normalized status of an alert
type Status string

const (
	StatusActual   Status = "Actual"
	StatusExercise Status = "Exercise"
	StatusSystem   Status = "System"
	StatusTest     Status = "Test"
	StatusDraft    Status = "Draft"
	StatusUnknown  Status = "Unknown"
)

// AreaNotSpecified is the sentinel used when a feed omits the affected area
const AreaNotSpecified = "Area not specified"

// Coordinates is a parsed latitude/longitude pair
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Geometry carries a GeoJSON-style point from feeds that ship one
type Geometry struct {
	Type        string    `json:"type,omitempty"`
	Coordinates []float64 `json:"coordinates,omitempty"` // [lon, lat]
}

// UniversalAlert is the raw shape alerts arrive in from external feeds.
// Every field except ID and Source is untrusted: possibly absent,
// malformed, or inconsistently cased.
type UniversalAlert struct {
	ID           string    `json:"id"`
	Source       string    `json:"source"`
	Title        string    `json:"title,omitempty"`
	Description  string    `json:"description,omitempty"`
	Severity     string    `json:"severity,omitempty"`
	Urgency      string    `json:"urgency,omitempty"`
	Status       string    `json:"status,omitempty"`
	Area         string    `json:"area,omitempty"`
	Published    string    `json:"published,omitempty"`
	Updated      string    `json:"updated,omitempty"`
	Effective    string    `json:"effective,omitempty"`
	Expires      string    `json:"expires,omitempty"`
	Instructions string    `json:"instructions,omitempty"`
	Author       string    `json:"author,omitempty"`
	URL          string    `json:"url,omitempty"`
	Geometry     *Geometry `json:"geometry,omitempty"`
	Latitude     *float64  `json:"latitude,omitempty"`
	Longitude    *float64  `json:"longitude,omitempty"`
	Lat          *float64  `json:"lat,omitempty"`
	Lng          *float64  `json:"lng,omitempty"`
}

// NormalizedAlert is a UniversalAlert whose fields have been forced
// into their closed domains. Normalizing an already-normalized alert
// yields the same alert.
type NormalizedAlert struct {
	ID           string       `json:"id"`
	Source       string       `json:"source"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Severity     Severity     `json:"severity"`
	Urgency      Urgency      `json:"urgency"`
	Status       Status       `json:"status"`
	Area         string       `json:"area"`
	Published    string       `json:"published"`
	Updated      string       `json:"updated,omitempty"`
	Effective    string       `json:"effective,omitempty"`
	Expires      string       `json:"expires,omitempty"`
	Instructions string       `json:"instructions,omitempty"`
	Author       string       `json:"author,omitempty"`
	URL          string       `json:"url,omitempty"`
	Coordinates  *Coordinates `json:"coordinates,omitempty"`
}

// ConfidenceLevel buckets a data quality score into four labels
type ConfidenceLevel string

const (
	ConfidenceHigh    ConfidenceLevel = "high"
	ConfidenceMedium  ConfidenceLevel = "medium"
	ConfidenceLow     ConfidenceLevel = "low"
	ConfidenceVeryLow ConfidenceLevel = "very-low"
)

// AlertWithConfidence is a NormalizedAlert plus its derived quality
// projection. Computed on read, never persisted.
type AlertWithConfidence struct {
	NormalizedAlert
	DataQualityScore          float64         `json:"data_quality_score"`
	ConfidenceLevel           ConfidenceLevel `json:"confidence_level"`
	IsFromAuthoritativeSource bool            `json:"is_from_authoritative_source"`
}
