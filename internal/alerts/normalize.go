package alerts

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/travelsafe/security-barometer/internal/model"
)

// Fallbacks used when a feed ships nothing usable
const (
	UntitledAlert          = "Untitled Alert"
	NoDescriptionAvailable = "No description available"
)

// KnownSourceNames are feed names stripped from alert title suffixes
var KnownSourceNames = []string{
	"Alert Ready",
	"Environment Canada",
	"Environment and Climate Change Canada",
	"BC Emergency",
	"Government of Canada",
	"Immigration Refugees and Citizenship Canada",
	"Public Safety Canada",
	"Everbridge",
}

var severityWords = map[string]model.Severity{
	"extreme":       model.SeverityExtreme,
	"critical":      model.SeverityExtreme,
	"catastrophic":  model.SeverityExtreme,
	"severe":        model.SeveritySevere,
	"major":         model.SeveritySevere,
	"high":          model.SeveritySevere,
	"moderate":      model.SeverityModerate,
	"medium":        model.SeverityModerate,
	"warning":       model.SeverityModerate,
	"minor":         model.SeverityMinor,
	"low":           model.SeverityMinor,
	"advisory":      model.SeverityMinor,
	"info":          model.SeverityInfo,
	"information":   model.SeverityInfo,
	"informational": model.SeverityInfo,
}

var urgencyWords = map[string]model.Urgency{
	"immediate": model.UrgencyImmediate,
	"urgent":    model.UrgencyImmediate,
	"now":       model.UrgencyImmediate,
	"expected":  model.UrgencyExpected,
	"soon":      model.UrgencyExpected,
	"future":    model.UrgencyFuture,
	"later":     model.UrgencyFuture,
	"past":      model.UrgencyPast,
	"expired":   model.UrgencyPast,
}

var statusWords = map[string]model.Status{
	"actual":   model.StatusActual,
	"active":   model.StatusActual,
	"real":     model.StatusActual,
	"exercise": model.StatusExercise,
	"drill":    model.StatusExercise,
	"system":   model.StatusSystem,
	"test":     model.StatusTest,
	"testing":  model.StatusTest,
	"draft":    model.StatusDraft,
}

// NormalizeSeverity maps a free-text severity onto the closed Severity
// enumeration. Matching is exact-set membership, case-insensitive.
// Anything unrecognized, including the empty string, maps to Unknown.
func NormalizeSeverity(value string) model.Severity {
	key := strings.ToLower(strings.TrimSpace(value))
	if sev, ok := severityWords[key]; ok {
		return sev
	}
	return model.SeverityUnknown
}

// NormalizeUrgency maps a free-text urgency onto the Urgency enumeration
func NormalizeUrgency(value string) model.Urgency {
	key := strings.ToLower(strings.TrimSpace(value))
	if urg, ok := urgencyWords[key]; ok {
		return urg
	}
	return model.UrgencyUnknown
}

// NormalizeStatus maps a free-text status onto the Status enumeration
func NormalizeStatus(value string) model.Status {
	key := strings.ToLower(strings.TrimSpace(value))
	if st, ok := statusWords[key]; ok {
		return st
	}
	return model.StatusUnknown
}

var (
	titlePrefixRe  = regexp.MustCompile(`(?i)^(alert|warning|advisory|notice)\s*:\s*`)
	bracketTagRe   = regexp.MustCompile(`^\[[^\]]*\]\s*`)
	htmlTagRe      = regexp.MustCompile(`<[^>]*>`)
	issuedByRe     = regexp.MustCompile(`(?i)emergency alert issued by`)
	thisIsRe       = regexp.MustCompile(`(?i)^this is an?\s+`)
	descPrefixRe   = regexp.MustCompile(`(?i)^alert\s*:\s*`)
	whitespaceRe   = regexp.MustCompile(`\s+`)
	terminalPunct  = ".!?"
)

// NormalizeTitle strips feed boilerplate from an alert title: a leading
// "Alert:"/"Warning:"/"Advisory:"/"Notice:" prefix, a leading bracketed
// tag, and a trailing "- <known source>" suffix. The result is trimmed
// and its first character capitalized.
func NormalizeTitle(value string) string {
	title := strings.TrimSpace(value)

	// Prefix and bracket tags can nest in either order ("Alert: [CAP] ..."),
	// so strip until the title stops changing
	for {
		previous := title
		title = bracketTagRe.ReplaceAllString(title, "")
		title = titlePrefixRe.ReplaceAllString(title, "")
		title = strings.TrimSpace(title)
		if title == previous {
			break
		}
	}

	for _, source := range KnownSourceNames {
		lower := strings.ToLower(title)
		suffix := "- " + strings.ToLower(source)
		if strings.HasSuffix(lower, suffix) {
			title = strings.TrimSpace(title[:len(title)-len(suffix)])
			break
		}
	}

	title = strings.TrimSpace(title)
	if title == "" {
		return UntitledAlert
	}

	runes := []rune(title)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// NormalizeDescription strips HTML and boilerplate phrases from a
// description and guarantees terminal punctuation.
func NormalizeDescription(value string) string {
	desc := htmlTagRe.ReplaceAllString(value, "")
	desc = issuedByRe.ReplaceAllString(desc, "Issued by")
	desc = strings.TrimSpace(desc)
	desc = thisIsRe.ReplaceAllString(desc, "")
	desc = descPrefixRe.ReplaceAllString(desc, "")
	desc = strings.TrimSpace(whitespaceRe.ReplaceAllString(desc, " "))

	if desc == "" || desc == NoDescriptionAvailable {
		return NoDescriptionAvailable
	}
	if !strings.ContainsRune(terminalPunct, rune(desc[len(desc)-1])) {
		desc += "."
	}
	return desc
}

// NormalizeArea collapses whitespace and maps absent or placeholder
// values onto the AreaNotSpecified sentinel.
func NormalizeArea(value string) string {
	area := strings.TrimSpace(whitespaceRe.ReplaceAllString(value, " "))
	switch strings.ToLower(area) {
	case "", "unknown", "n/a":
		return model.AreaNotSpecified
	}
	return area
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// NormalizeDate parses a free-text timestamp and returns it as RFC 3339
// in UTC. Unparseable input is replaced with the current instant and
// logged as a warning; the result is always a valid timestamp.
func NormalizeDate(value string, logger *zap.Logger) string {
	trimmed := strings.TrimSpace(value)
	if trimmed != "" {
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, trimmed); err == nil {
				return t.UTC().Format(time.RFC3339)
			}
		}
	}
	if logger != nil {
		logger.Warn("Unparseable alert date, substituting current time",
			zap.String("value", value))
	}
	return time.Now().UTC().Format(time.RFC3339)
}

// ExtractCoordinates pulls a coordinate pair out of the raw alert.
// Precedence is fixed: GeoJSON geometry wins over {latitude,longitude},
// which wins over {lat,lng}. Returns nil when no shape matches.
func ExtractCoordinates(alert model.UniversalAlert) *model.Coordinates {
	if alert.Geometry != nil && len(alert.Geometry.Coordinates) >= 2 {
		return &model.Coordinates{
			Longitude: alert.Geometry.Coordinates[0],
			Latitude:  alert.Geometry.Coordinates[1],
		}
	}
	if alert.Latitude != nil && alert.Longitude != nil {
		return &model.Coordinates{
			Latitude:  *alert.Latitude,
			Longitude: *alert.Longitude,
		}
	}
	if alert.Lat != nil && alert.Lng != nil {
		return &model.Coordinates{
			Latitude:  *alert.Lat,
			Longitude: *alert.Lng,
		}
	}
	return nil
}

// NormalizeAlert runs every field normalizer over a raw alert. It never
// fails; malformed fields resolve to safe defaults.
func NormalizeAlert(alert model.UniversalAlert, logger *zap.Logger) model.NormalizedAlert {
	normalized := model.NormalizedAlert{
		ID:           alert.ID,
		Source:       alert.Source,
		Title:        NormalizeTitle(alert.Title),
		Description:  NormalizeDescription(alert.Description),
		Severity:     NormalizeSeverity(alert.Severity),
		Urgency:      NormalizeUrgency(alert.Urgency),
		Status:       NormalizeStatus(alert.Status),
		Area:         NormalizeArea(alert.Area),
		Published:    NormalizeDate(alert.Published, logger),
		Instructions: alert.Instructions,
		Author:       alert.Author,
		URL:          alert.URL,
		Coordinates:  ExtractCoordinates(alert),
	}

	if alert.Updated != "" {
		normalized.Updated = NormalizeDate(alert.Updated, logger)
	}
	if alert.Effective != "" {
		normalized.Effective = NormalizeDate(alert.Effective, logger)
	}
	if alert.Expires != "" {
		normalized.Expires = NormalizeDate(alert.Expires, logger)
	}

	return normalized
}
