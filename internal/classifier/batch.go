package classifier

// Page is one fetched source as seen by the classifier.
type Page struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type BatchSummary struct {
	Classifications []Classification `json:"classifications"`
	AverageScore    float64          `json:"averageScore"`
	Counts          map[Type]int     `json:"counts"`
	// NeedsExtraction asks the fetch stage for a deeper pass: the batch is
	// mostly aggregator pages and carries little actionable information.
	NeedsExtraction bool `json:"needsExtraction"`
}

const needsExtractionBelow = 0.6

// ClassifyBatch classifies every page in order. An empty batch has an average
// of 0 and never needs extraction.
func ClassifyBatch(pages []Page) BatchSummary {
	s := BatchSummary{
		Classifications: make([]Classification, 0, len(pages)),
		Counts: map[Type]int{
			TypeSpecificContent: 0,
			TypeAggregator:      0,
			TypeNavigation:      0,
		},
	}
	if len(pages) == 0 {
		return s
	}

	var sum float64
	for _, p := range pages {
		c := Classify(p.URL, p.Title, p.Content)
		s.Classifications = append(s.Classifications, c)
		s.Counts[c.Type]++
		sum += c.ActionableInformationScore
	}
	s.AverageScore = clamp(sum/float64(len(pages)), 0, 1)

	aggregators := s.Counts[TypeAggregator]
	others := len(pages) - aggregators
	s.NeedsExtraction = s.AverageScore < needsExtractionBelow && aggregators > others
	return s
}
