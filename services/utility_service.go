package services

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/surajvsk/ipo-subbrocker/models"
)

var (
	whitespaceRegex = regexp.MustCompile(`\s+`)
	numberRegex     = regexp.MustCompile(`\d+(\.\d+)?`)
)

// UtilityService provides text normalization and table parsing for scraped IPO pages
type UtilityService struct{}

// NewUtilityService creates a new utility service instance
func NewUtilityService() *UtilityService {
	return &UtilityService{}
}

// TableRow is one label/value pair from a detail table
type TableRow struct {
	Label      string
	Value      string
	Confidence float64
}

// NormalizeTextContent collapses whitespace and strips currency prefixes
func (s *UtilityService) NormalizeTextContent(text string) string {
	if text == "" {
		return ""
	}

	text = whitespaceRegex.ReplaceAllString(strings.TrimSpace(text), " ")

	text = strings.ReplaceAll(text, "₹", "")
	text = strings.ReplaceAll(text, "Rs.", "")
	text = strings.ReplaceAll(text, "Rs ", "")

	return strings.TrimSpace(text)
}

// IsNotAvailable checks if a value is a placeholder like "TBA" or "N/A"
func (s *UtilityService) IsNotAvailable(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "", "tba", "to be announced", "tbd", "n/a", "na", "not available",
		"awaited", "coming soon", "yet to be announced", "--", "-", "nil", "null":
		return true
	}
	return false
}

// ParseDecimal extracts the first number from formatted text such as
// "₹1,23,456.50 per share".
func (s *UtilityService) ParseDecimal(text string) (decimal.Decimal, bool) {
	clean := strings.ReplaceAll(s.NormalizeTextContent(text), ",", "")
	match := numberRegex.FindString(clean)
	if match == "" {
		return decimal.Zero, false
	}
	value, err := decimal.NewFromString(match)
	if err != nil {
		return decimal.Zero, false
	}
	return value, true
}

// ParseInteger extracts the first whole number, e.g. "148 Shares" -> 148
func (s *UtilityService) ParseInteger(text string) (int, bool) {
	value, ok := s.ParseDecimal(text)
	if !ok || !value.Equal(value.Truncate(0)) {
		return 0, false
	}
	return int(value.IntPart()), true
}

// ParsePriceBand parses "₹95 to ₹100" or "95-100" into min and max. A single
// price yields a fixed band.
func (s *UtilityService) ParsePriceBand(priceBandText string) (min, max decimal.Decimal, ok bool) {
	cleanText := strings.ReplaceAll(s.NormalizeTextContent(priceBandText), ",", "")
	if cleanText == "" || s.IsNotAvailable(cleanText) {
		return decimal.Zero, decimal.Zero, false
	}

	for _, separator := range []string{" - ", " to ", " ~ ", "-", "~"} {
		if !strings.Contains(cleanText, separator) {
			continue
		}
		parts := strings.SplitN(cleanText, separator, 2)
		low, lowOK := s.ParseDecimal(parts[0])
		high, highOK := s.ParseDecimal(parts[1])
		if lowOK && highOK {
			if low.GreaterThan(high) {
				low, high = high, low
			}
			return low, high, true
		}
	}

	if price, found := s.ParseDecimal(cleanText); found {
		return price, price, true
	}
	return decimal.Zero, decimal.Zero, false
}

// ParseDate parses dates in the formats IPO detail pages use
func (s *UtilityService) ParseDate(dateStr string) *time.Time {
	dateStr = s.NormalizeTextContent(dateStr)
	if s.IsNotAvailable(dateStr) {
		return nil
	}

	formats := []string{
		"Mon, Jan 2, 2006",
		"Monday, January 2, 2006",
		"Jan 2, 2006",
		"January 2, 2006",
		"02 Jan 2006",
		"02-Jan-06",
		"2-Jan-06",
		"2006-01-02",
		"02/01/2006",
		"2/1/2006",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, dateStr); err == nil {
			return &t
		}
	}
	return nil
}

// CalculateIPOStatus derives the catalog status from the issue dates
func (s *UtilityService) CalculateIPOStatus(now time.Time, openDate, closeDate, listingDate *time.Time) models.IPOStatus {
	switch {
	case listingDate != nil && !now.Before(*listingDate):
		return models.IPOStatusListed
	case closeDate != nil && now.After(closeDate.Add(24*time.Hour)):
		return models.IPOStatusClosed
	case openDate != nil && !now.Before(*openDate):
		return models.IPOStatusActive
	}
	return models.IPOStatusUpcoming
}

// ParseHTMLTable reads every two-cell row of a table selection
func (s *UtilityService) ParseHTMLTable(table *goquery.Selection) []TableRow {
	var rows []TableRow

	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, s.cleanCellText(cell.Text()))
		})

		if len(cells) < 2 {
			return
		}

		label := cells[0]
		value := cells[1]
		if label == "" && value == "" {
			return
		}

		rows = append(rows, TableRow{
			Label:      label,
			Value:      value,
			Confidence: s.calculateLabelConfidence(label),
		})
	})

	return rows
}

// FindTableRowByLabel returns the row whose label best matches any target
func (s *UtilityService) FindTableRowByLabel(rows []TableRow, targetLabels []string) (TableRow, bool) {
	var bestMatch TableRow
	bestScore := 0.0

	for _, row := range rows {
		normalizedRowLabel := s.normalizeLabel(row.Label)

		for _, targetLabel := range targetLabels {
			score := s.calculateMatchScore(normalizedRowLabel, s.normalizeLabel(targetLabel)) * row.Confidence
			if score > bestScore {
				bestScore = score
				bestMatch = row
			}
		}
	}

	if bestScore < 0.3 {
		return TableRow{}, false
	}

	logrus.Debugf("Best label match: '%s' with score %.2f", bestMatch.Label, bestScore)
	return bestMatch, true
}

// GetTargetLabelsForField returns the label variants used for an IPO field
func (s *UtilityService) GetTargetLabelsForField(fieldName string) []string {
	labelMap := map[string][]string{
		"price_band": {"price band", "issue price band", "issue price", "price range"},
		"lot_size":   {"lot size", "market lot", "minimum lot", "application lot", "minimum shares"},
		"open_date":  {"ipo open date", "open date", "opening date", "opens on"},
		"close_date": {"ipo close date", "close date", "closing date", "closes on"},
		"listing_date": {
			"listing date", "lists on", "tentative listing", "expected listing",
		},
		"listing_at": {"listing at", "exchange", "listed on"},
		"issue_type": {"issue type", "ipo type"},
	}

	if labels, exists := labelMap[fieldName]; exists {
		return labels
	}
	return []string{fieldName}
}

// normalizeLabel lowercases a label and strips punctuation
func (s *UtilityService) normalizeLabel(label string) string {
	normalized := strings.ToLower(label)

	normalized = strings.NewReplacer(
		":", "", ".", "", ",", "", "(", "", ")", "",
		"-", " ", "_", " ",
	).Replace(normalized)

	return strings.Join(strings.Fields(normalized), " ")
}

// calculateMatchScore calculates similarity score between two normalized labels
func (s *UtilityService) calculateMatchScore(label1, label2 string) float64 {
	if label1 == label2 {
		return 1.0
	}

	if strings.Contains(label1, label2) || strings.Contains(label2, label1) {
		return 0.8
	}

	words1 := strings.Fields(label1)
	words2 := strings.Fields(label2)
	if len(words1) == 0 || len(words2) == 0 {
		return 0.0
	}

	matchingWords := 0
	for _, word1 := range words1 {
		for _, word2 := range words2 {
			if word1 == word2 {
				matchingWords++
				break
			}
		}
	}

	// Jaccard similarity
	totalWords := len(words1) + len(words2) - matchingWords
	score := float64(matchingWords) / float64(totalWords)

	if matchingWords > 0 {
		score = math.Max(score, 0.4)
	}

	return score
}

// calculateLabelConfidence scores how much a cell looks like a field label
func (s *UtilityService) calculateLabelConfidence(label string) float64 {
	if label == "" {
		return 0.0
	}

	confidence := 0.5
	normalizedLabel := s.normalizeLabel(label)

	for _, keyword := range []string{"date", "price", "band", "lot", "shares", "issue", "listing", "open", "close", "exchange"} {
		if strings.Contains(normalizedLabel, keyword) {
			confidence += 0.3
			break
		}
	}

	if strings.Contains(label, ":") {
		confidence += 0.1
	}
	if len(normalizedLabel) < 3 {
		confidence -= 0.2
	}
	if s.IsNotAvailable(label) {
		confidence -= 0.3
	}

	return math.Min(math.Max(confidence, 0.0), 1.0)
}

// cleanCellText collapses whitespace in extracted cell text
func (s *UtilityService) cleanCellText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
