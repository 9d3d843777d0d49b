// Package classifier labels fetched source pages by how much actionable
// information they carry, without calling a model.
//
// A page is scored on two independent indicators. The aggregator indicator
// (0..3) adds URL-pattern, title-pattern and link-density scores; the
// specificity indicator adds date, time, location and price evidence plus a
// bonus for date-bearing URL slugs. Aggregator evidence wins ties: a listing
// page that mentions a few dates is still a listing page.
package classifier

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type Type string

const (
	TypeSpecificContent Type = "SPECIFIC_CONTENT"
	TypeAggregator      Type = "AGGREGATOR"
	TypeNavigation      Type = "NAVIGATION"
)

const (
	aggregatorThreshold  = 1.5
	specificityThreshold = 1.2
)

type Classification struct {
	Type                       Type     `json:"type"`
	ActionableInformationScore float64  `json:"actionableInformationScore"`
	Confidence                 float64  `json:"confidence"`
	Reasons                    []string `json:"reasons"`
}

var (
	aggregatorURLPatterns = []*regexp.Regexp{
		regexp.MustCompile(`/d/[^/]+`),
		regexp.MustCompile(`[a-z]--[a-z]`),
		regexp.MustCompile(`(?i)/(events?|listings?|things-to-do|whats-on|calendar)/?$`),
		regexp.MustCompile(`(?i)(today|tonight|this-week|this-weekend|upcoming)`),
		regexp.MustCompile(`(?i)/(category|categories|tag|tags|search|directory|list|archive)s?(/|$|\?)`),
		regexp.MustCompile(`(?i)([?&]page=\d+|/page/\d+)`),
		regexp.MustCompile(`(?i)/(all|top|best)-`),
	}

	aggregatorTitlePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^all\b`),
		regexp.MustCompile(`(?i)\bevents in\b`),
		regexp.MustCompile(`(?i)\b(today|tonight|this week|this weekend|upcoming)\b`),
		regexp.MustCompile(`(?i)\b(things to do|what'?s on|calendar|directory|listings?)\b`),
		regexp.MustCompile(`(?i)\b(top|best)\s+\d+\b`),
		regexp.MustCompile(`(?i)\blist of\b`),
		regexp.MustCompile(`(?i)\bpage \d+\b`),
	}

	bareURLPattern  = regexp.MustCompile(`https?://[^\s"'<>)]+`)
	readMorePattern = regexp.MustCompile(`(?i)\b(read more|learn more|see more|view more|view details|more info|continue reading|click here|see all|show more)\b`)

	monthNames = `(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)`

	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b` + monthNames + `\.?\s+\d{1,2}(?:st|nd|rd|th)?(?:,?\s+\d{4})?\b`),
		regexp.MustCompile(`(?i)\b\d{1,2}(?:st|nd|rd|th)?\s+` + monthNames + `\.?(?:,?\s+\d{4})?\b`),
		regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
		regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`),
	}

	timePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b\d{1,2}(?::\d{2})?\s?(?:am|pm)\b`),
		regexp.MustCompile(`\b(?:[01]?\d|2[0-3]):[0-5]\d\b`),
	}

	locationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b\d+\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\s+(?:St|Street|Ave|Avenue|Rd|Road|Blvd|Boulevard|Lane|Ln|Way|Plads|Gade|Vej)\b\.?`),
		regexp.MustCompile(`(?i)\b(?:venue|location|address|where)\s*:`),
		regexp.MustCompile(`\b(?:at|@)\s+(?:the\s+)?[A-Z][\w'&]+(?:\s+[A-Z][\w'&]+)+`),
	}

	pricePatterns = []*regexp.Regexp{
		regexp.MustCompile(`[$€£]\s?\d+(?:[.,]\d{2})?`),
		regexp.MustCompile(`(?i)\b\d+(?:[.,]\d{2})?\s?(?:usd|eur|gbp|dkk|sek|nok|kr)\b`),
		regexp.MustCompile(`(?i)\b(?:free (?:entry|admission)|admission free|tickets? from)\b`),
	}

	slugDatePattern = regexp.MustCompile(`(?i)(?:\b|[-_/])(?:` + monthNames + `[-_]\d{1,2}|\d{4}[-_/]\d{2}[-_/]\d{2}|(?:19|20)\d{2})(?:\b|[-_/])`)

	htmlTagPattern = regexp.MustCompile(`(?i)<(?:html|body|div|p|a|span|ul|li|article|section)\b`)
)

// Classify labels one page. It is a pure function of its inputs.
func Classify(url, title, content string) Classification {
	text, anchors := textAndAnchors(content)

	urlScore, urlHits := patternScore(aggregatorURLPatterns, url, 0.5)
	titleScore, titleHits := patternScore(aggregatorTitlePatterns, title, 0.5)
	linkScore, density := linkDensityScore(text, anchors)
	aggregator := urlScore + titleScore + linkScore

	dateScore, dateHits := evidenceScore(datePatterns, text)
	timeScore, timeHits := evidenceScore(timePatterns, text)
	locationScore, locationHits := evidenceScore(locationPatterns, text)
	priceScore, priceHits := evidenceScore(pricePatterns, text)
	slugBonus := 0.0
	if slugDatePattern.MatchString(url) {
		slugBonus = 0.3
	}
	specificity := dateScore + timeScore + locationScore + priceScore + slugBonus

	var reasons []string
	if urlHits > 0 {
		reasons = append(reasons, fmt.Sprintf("URL matches %d aggregator pattern(s)", urlHits))
	}
	if titleHits > 0 {
		reasons = append(reasons, fmt.Sprintf("title matches %d aggregator pattern(s)", titleHits))
	}
	if linkScore > 0 {
		reasons = append(reasons, fmt.Sprintf("link density %.1f per 1000 chars", density))
	}
	if dateHits+timeHits+locationHits+priceHits > 0 {
		reasons = append(reasons, fmt.Sprintf("specific details: %d date, %d time, %d location, %d price",
			dateHits, timeHits, locationHits, priceHits))
	}
	if slugBonus > 0 {
		reasons = append(reasons, "URL slug carries a date")
	}

	var c Classification
	switch {
	case aggregator > aggregatorThreshold:
		c = Classification{
			Type:                       TypeAggregator,
			ActionableInformationScore: clamp(0.25-0.1*(aggregator-aggregatorThreshold), 0.05, 0.25),
			Confidence:                 clamp(0.6+0.2*(aggregator-aggregatorThreshold), 0, 0.95),
		}
		reasons = append(reasons, fmt.Sprintf("aggregator indicator %.2f > %.1f", aggregator, aggregatorThreshold))
	case specificity > specificityThreshold:
		c = Classification{
			Type:                       TypeSpecificContent,
			ActionableInformationScore: clamp(0.7+0.1*specificity, 0, 0.98),
			Confidence:                 clamp(0.6+0.15*(specificity-specificityThreshold), 0, 0.95),
		}
		reasons = append(reasons, fmt.Sprintf("specificity indicator %.2f > %.1f", specificity, specificityThreshold))
	default:
		c = Classification{
			Type:                       TypeNavigation,
			ActionableInformationScore: clamp(0.45+0.1*specificity-0.1*aggregator, 0.1, 0.6),
			Confidence:                 0.5,
		}
		reasons = append(reasons, fmt.Sprintf("no dominant signal (aggregator %.2f, specificity %.2f)", aggregator, specificity))
	}
	c.Reasons = reasons
	return c
}

// textAndAnchors converts HTML content to text and counts its links. Plain
// text passes through with zero anchors.
func textAndAnchors(content string) (string, int) {
	if !htmlTagPattern.MatchString(content) {
		return content, 0
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return content, 0
	}

	anchors := doc.Find("a[href]").Length()
	doc.Find("script, style, noscript").Remove()
	text := strings.Join(strings.Fields(doc.Text()), " ")
	return text, anchors
}

func patternScore(patterns []*regexp.Regexp, s string, perHit float64) (float64, int) {
	if s == "" {
		return 0, 0
	}
	hits := 0
	for _, p := range patterns {
		if p.MatchString(s) {
			hits++
		}
	}
	return math.Min(1, perHit*float64(hits)), hits
}

// linkDensityScore counts bare URLs, read-more phrases and anchors per 1000
// characters; four per 1000 saturates the score.
func linkDensityScore(text string, anchors int) (float64, float64) {
	n := len(text)
	if n == 0 {
		return 0, 0
	}
	links := len(bareURLPattern.FindAllStringIndex(text, -1)) +
		len(readMorePattern.FindAllStringIndex(text, -1)) +
		anchors
	if links == 0 {
		return 0, 0
	}
	density := float64(links) / (math.Max(float64(n), 200) / 1000)
	return math.Min(1, density/4), density
}

// evidenceScore is 0 without hits, otherwise 0.5 plus 0.1 per extra hit,
// capped at 0.8.
func evidenceScore(patterns []*regexp.Regexp, text string) (float64, int) {
	hits := 0
	for _, p := range patterns {
		hits += len(p.FindAllStringIndex(text, -1))
	}
	if hits == 0 {
		return 0, 0
	}
	return math.Min(0.8, 0.5+0.1*float64(hits-1)), hits
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
