package analyzer

import (
	"regexp"
	"strings"
)

var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/|youtube\.com/v/|youtube\.com/shorts/)([^&\n?#]+)`),
	regexp.MustCompile(`youtube\.com/watch\?.*v=([^&\n?#]+)`),
}

var (
	sitcomKeywords = []string{"sitcom", "comedy", "show", "episode", "season", "series"}
	movieKeywords  = []string{"movie", "film", "trailer", "cinema", "theater"}
)

// VideoID returns the YouTube video id in link, or "" if link is not a
// YouTube video URL.
func VideoID(link string) string {
	for _, pattern := range videoIDPatterns {
		if m := pattern.FindStringSubmatch(link); len(m) > 1 && m[1] != "" {
			return m[1]
		}
	}
	return ""
}

// IsYouTube reports whether link points at YouTube
func IsYouTube(link string) bool {
	lower := strings.ToLower(link)
	return strings.Contains(lower, "youtube.com") || strings.Contains(lower, "youtu.be")
}

// youTubeContentType guesses the YouTube flavour of link from keywords in
// the URL. It returns "" for non-YouTube links.
func youTubeContentType(link string) string {
	if !IsYouTube(link) {
		return ""
	}
	lower := strings.ToLower(link)
	for _, kw := range sitcomKeywords {
		if strings.Contains(lower, kw) {
			return "YouTube sitcom"
		}
	}
	for _, kw := range movieKeywords {
		if strings.Contains(lower, kw) {
			return "YouTube movie"
		}
	}
	return "YouTube video"
}
