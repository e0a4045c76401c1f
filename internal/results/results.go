// Package results computes display-ready aggregates from a slide's raw
// response set. All functions are pure and recompute from scratch on
// every call; since responses are immutable and append-only, this is
// correct by construction and needs no incremental counters.
package results

import (
	"math"
	"sort"
	"strings"

	"github.com/slidecast/slidecast/internal/models"
)

// wordCloudCap limits the word cloud to the most frequent entries.
const wordCloudCap = 30

// OptionCount is one multiple-choice option's tally. Options keep their
// declaration order for display; they are never reordered by count.
type OptionCount struct {
	Index   int    `json:"index"`
	Option  string `json:"option"`
	Count   int    `json:"count"`
	Percent int    `json:"percent"`
}

// MultipleChoiceResult aggregates a multiple_choice slide.
type MultipleChoiceResult struct {
	Options []OptionCount `json:"options"`
	Total   int           `json:"total"`
}

// MultipleChoice tallies selected-index sets per option. Multi-select
// responses count toward each selected option; percentages are
// count/total-responses rounded to the nearest integer. Indices outside
// the declared option list are ignored.
func MultipleChoice(settings models.SlideSettings, responses []models.Response) MultipleChoiceResult {
	result := MultipleChoiceResult{
		Options: make([]OptionCount, len(settings.Options)),
		Total:   len(responses),
	}
	for i, opt := range settings.Options {
		result.Options[i] = OptionCount{Index: i, Option: opt}
	}
	for _, resp := range responses {
		for _, idx := range resp.Answer.Selected {
			if idx >= 0 && idx < len(result.Options) {
				result.Options[idx].Count++
			}
		}
	}
	if result.Total > 0 {
		for i := range result.Options {
			result.Options[i].Percent = roundPercent(result.Options[i].Count, result.Total)
		}
	}
	return result
}

// ValueCount is the tally for one discrete scale value.
type ValueCount struct {
	Value int `json:"value"`
	Count int `json:"count"`
}

// ScaleResult aggregates a scale slide.
type ScaleResult struct {
	Average      float64      `json:"average"`
	Distribution []ValueCount `json:"distribution"`
	Total        int          `json:"total"`
}

// Scale averages numeric answers and counts them per discrete value
// across [min,max]. Missing or zero values default to the scale minimum
// rather than being excluded; values outside the range still contribute
// to the average but not to the distribution.
func Scale(settings models.SlideSettings, responses []models.Response) ScaleResult {
	min, max := settings.ScaleRange()

	result := ScaleResult{
		Distribution: make([]ValueCount, max-min+1),
		Total:        len(responses),
	}
	for i := range result.Distribution {
		result.Distribution[i].Value = min + i
	}

	var sum int
	for _, resp := range responses {
		v := min
		if resp.Answer.Value != nil && *resp.Answer.Value != 0 {
			v = *resp.Answer.Value
		}
		sum += v
		if v >= min && v <= max {
			result.Distribution[v-min].Count++
		}
	}
	if result.Total > 0 {
		result.Average = float64(sum) / float64(result.Total)
	}
	return result
}

// WordCount is one normalized word and its frequency. Scale is
// frequency/max-frequency, used for display sizing.
type WordCount struct {
	Word  string  `json:"word"`
	Count int     `json:"count"`
	Scale float64 `json:"scale"`
}

// WordCloud accumulates word frequencies across all responses' word
// lists. Words are normalized (lowercased, trimmed), sorted by descending
// frequency with an alphabetical tie-break for stable output, and capped
// at the top 30.
func WordCloud(responses []models.Response) []WordCount {
	freq := make(map[string]int)
	for _, resp := range responses {
		for _, word := range resp.Answer.Words {
			normalized := strings.ToLower(strings.TrimSpace(word))
			if normalized != "" {
				freq[normalized]++
			}
		}
	}
	if len(freq) == 0 {
		return nil
	}

	words := make([]WordCount, 0, len(freq))
	for word, count := range freq {
		words = append(words, WordCount{Word: word, Count: count})
	}
	sort.Slice(words, func(i, j int) bool {
		if words[i].Count != words[j].Count {
			return words[i].Count > words[j].Count
		}
		return words[i].Word < words[j].Word
	})
	if len(words) > wordCloudCap {
		words = words[:wordCloudCap]
	}

	maxCount := words[0].Count
	for i := range words {
		words[i].Scale = float64(words[i].Count) / float64(maxCount)
	}
	return words
}

// OpenEnded passes through the non-empty trimmed text answers in
// submission order. No aggregation is performed.
func OpenEnded(responses []models.Response) []string {
	var texts []string
	for _, resp := range responses {
		if text := strings.TrimSpace(resp.Answer.Text); text != "" {
			texts = append(texts, text)
		}
	}
	return texts
}

// ParticipantCount counts distinct participants across the whole
// session's response set, never scoped to one slide.
func ParticipantCount(responses []models.Response) int {
	seen := make(map[string]struct{})
	for _, resp := range responses {
		seen[resp.ParticipantID] = struct{}{}
	}
	return len(seen)
}

// SlideResult is the aggregate for one slide, with exactly the variant
// matching the slide's type populated. Welcome and content slides have
// no aggregate.
type SlideResult struct {
	SlideID        string                `json:"slide_id"`
	Type           models.SlideType      `json:"type"`
	Total          int                   `json:"total"`
	MultipleChoice *MultipleChoiceResult `json:"multiple_choice,omitempty"`
	Scale          *ScaleResult          `json:"scale,omitempty"`
	WordCloud      []WordCount           `json:"word_cloud,omitempty"`
	OpenEnded      []string              `json:"open_ended,omitempty"`
}

// ForSlide dispatches to the aggregator matching the slide's type.
func ForSlide(slide *models.Slide, responses []models.Response) SlideResult {
	result := SlideResult{
		SlideID: slide.ID.String(),
		Type:    slide.Type,
		Total:   len(responses),
	}
	switch slide.Type {
	case models.SlideTypeMultipleChoice:
		mc := MultipleChoice(slide.Settings, responses)
		result.MultipleChoice = &mc
	case models.SlideTypeScale:
		sc := Scale(slide.Settings, responses)
		result.Scale = &sc
	case models.SlideTypeWordCloud:
		result.WordCloud = WordCloud(responses)
	case models.SlideTypeOpenEnded:
		result.OpenEnded = OpenEnded(responses)
	}
	return result
}

func roundPercent(count, total int) int {
	return int(math.Round(float64(count) / float64(total) * 100))
}
