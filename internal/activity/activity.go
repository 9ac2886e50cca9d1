// Package activity normalizes raw activity-stream records into a typed,
// deterministic shape the rest of the pipeline consumes. Parsing is pure:
// no I/O, no side effects, same input always yields the same output.
package activity

import "strings"

// ActivityType classifies a parsed activity record.
type ActivityType string

const (
	TypeSearched     ActivityType = "searched"
	TypeVisited      ActivityType = "visited"
	TypeViewed       ActivityType = "viewed"
	TypeNotification ActivityType = "notification"
	TypeUnknown      ActivityType = "unknown"
)

// Subtitle is a single subtitle entry on a raw record.
type Subtitle struct {
	Name string `json:"name"`
}

// LocationInfo is a single location-info entry on a raw record.
type LocationInfo struct {
	Source string `json:"source"`
}

// Record is one raw activity-stream entry as read from the input JSON.
type Record struct {
	Time          string         `json:"time"`
	Title         string         `json:"title"`
	Subtitles     []Subtitle     `json:"subtitles,omitempty"`
	LocationInfos []LocationInfo `json:"locationInfos,omitempty"`
}

// ParsedActivity is the normalized shape produced by ParseTitle.
type ParsedActivity struct {
	Type     ActivityType
	Content  string
	RawTitle string
}

// noOpContentTitles are titles that parse to unknown/empty content rather
// than carrying the title itself forward.
var noOpContentTitles = map[string]bool{
	"Used Search":             true,
	"Ran internet speed test": true,
}

// ParseTitle applies the fixed, ordered rule set: the first matching prefix
// or exact-title rule wins.
func ParseTitle(title string) ParsedActivity {
	switch {
	case strings.HasPrefix(title, "Searched for "):
		return ParsedActivity{Type: TypeSearched, Content: title[len("Searched for "):], RawTitle: title}
	case strings.HasPrefix(title, "Visited "):
		return ParsedActivity{Type: TypeVisited, Content: title[len("Visited "):], RawTitle: title}
	case strings.HasPrefix(title, "Viewed "):
		return ParsedActivity{Type: TypeViewed, Content: title[len("Viewed "):], RawTitle: title}
	case title == "1 notification":
		return ParsedActivity{Type: TypeNotification, Content: "", RawTitle: title}
	case noOpContentTitles[title]:
		return ParsedActivity{Type: TypeUnknown, Content: "", RawTitle: title}
	default:
		return ParsedActivity{Type: TypeUnknown, Content: title, RawTitle: title}
	}
}

// ExtractNotificationTopics returns every subtitle name that isn't the
// "Including topics:" header line and isn't empty.
func ExtractNotificationTopics(subtitles []Subtitle) []string {
	var topics []string
	for _, s := range subtitles {
		if s.Name == "" || s.Name == "Including topics:" {
			continue
		}
		topics = append(topics, s.Name)
	}
	return topics
}

// ExtractLocation buckets the first location-info entry's source into
// "home", "work", or "other". Absent locationInfos yields ("", false).
func ExtractLocation(locationInfos []LocationInfo) (string, bool) {
	if len(locationInfos) == 0 {
		return "", false
	}
	source := locationInfos[0].Source
	switch {
	case strings.Contains(source, "Home"):
		return "home", true
	case strings.Contains(source, "Work"):
		return "work", true
	default:
		return "other", true
	}
}

// NormalizeTimestamp normalizes a raw ISO-8601 timestamp, accepting the "Z"
// suffix in place of "+00:00".
func NormalizeTimestamp(raw string) string {
	if strings.HasSuffix(raw, "Z") {
		return strings.TrimSuffix(raw, "Z") + "+00:00"
	}
	return raw
}
