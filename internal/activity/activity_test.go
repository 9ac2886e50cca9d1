package activity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTitleRules(t *testing.T) {
	cases := []struct {
		title   string
		wantTyp ActivityType
		wantContent string
	}{
		{"Searched for golang generics", TypeSearched, "golang generics"},
		{"Visited example.com", TypeVisited, "example.com"},
		{"Viewed a product page", TypeViewed, "a product page"},
		{"1 notification", TypeNotification, ""},
		{"Used Search", TypeUnknown, ""},
		{"Ran internet speed test", TypeUnknown, ""},
		{"Some other random title", TypeUnknown, "Some other random title"},
	}
	for _, c := range cases {
		got := ParseTitle(c.title)
		assert.Equal(t, c.wantTyp, got.Type, c.title)
		assert.Equal(t, c.wantContent, got.Content, c.title)
		assert.Equal(t, c.title, got.RawTitle)
	}
}

func TestExtractNotificationTopics(t *testing.T) {
	subtitles := []Subtitle{
		{Name: "Including topics:"},
		{Name: "Sports"},
		{Name: ""},
		{Name: "Weather"},
	}
	topics := ExtractNotificationTopics(subtitles)
	assert.Equal(t, []string{"Sports", "Weather"}, topics)
}

func TestExtractLocation(t *testing.T) {
	home, ok := ExtractLocation([]LocationInfo{{Source: "Home WiFi"}})
	assert.True(t, ok)
	assert.Equal(t, "home", home)

	work, ok := ExtractLocation([]LocationInfo{{Source: "Work Network"}})
	assert.True(t, ok)
	assert.Equal(t, "work", work)

	other, ok := ExtractLocation([]LocationInfo{{Source: "Coffee Shop"}})
	assert.True(t, ok)
	assert.Equal(t, "other", other)

	_, ok = ExtractLocation(nil)
	assert.False(t, ok)
}

func TestNormalizeTimestamp(t *testing.T) {
	assert.Equal(t, "2024-01-01T10:00:00+00:00", NormalizeTimestamp("2024-01-01T10:00:00Z"))
	assert.Equal(t, "2024-01-01T10:00:00+05:00", NormalizeTimestamp("2024-01-01T10:00:00+05:00"))
}
