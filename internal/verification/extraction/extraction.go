// Package extraction suggests identity fields from the front of an ID document.
//
// Parsing is best-effort: the heuristics below have no correctness guarantee
// and their output is only a suggestion the vendor must confirm. Nothing
// downstream trusts extracted fields without that confirmation.
package extraction

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode"

	"vendorkyc/internal/verification/models"
	"vendorkyc/internal/verification/ports"
	dErrors "vendorkyc/pkg/domain-errors"
)

// Fields are the structured values suggested to the vendor.
type Fields struct {
	IDNumber     string        `json:"id_number,omitempty"`
	FullName     string        `json:"full_name,omitempty"`
	DateOfBirth  string        `json:"date_of_birth,omitempty"`
	DocumentType models.IDType `json:"document_type,omitempty"`
}

// Extraction is the adapter output. Confidence is 0..1.
type Extraction struct {
	Fields     Fields  `json:"fields"`
	RawText    string  `json:"raw_text"`
	Confidence float64 `json:"confidence"`
}

// Adapter fetches the image and runs text detection.
type Adapter struct {
	store        ports.ObjectStore
	detector     ports.TextDetector
	languageHint string
	logger       *slog.Logger
}

type Option func(*Adapter)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) { a.logger = logger }
}

func WithLanguageHint(hint string) Option {
	return func(a *Adapter) { a.languageHint = hint }
}

func New(store ports.ObjectStore, detector ports.TextDetector, opts ...Option) *Adapter {
	a := &Adapter{store: store, detector: detector, languageHint: "en", logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Extract returns suggested fields for the document front at imageRef. On any
// provider or storage failure it returns an empty Extraction together with a
// provider_unavailable error; callers proceed without a suggestion.
func (a *Adapter) Extract(ctx context.Context, imageRef string) (Extraction, error) {
	img, err := a.store.Fetch(ctx, imageRef)
	if err != nil {
		return Extraction{}, dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "document image unavailable")
	}
	det, err := a.detector.DetectText(ctx, img, a.languageHint)
	if err != nil {
		return Extraction{}, dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "text detection unavailable")
	}
	ext := Parse(det)
	a.logger.DebugContext(ctx, "document fields extracted",
		"lines", len(det.Lines),
		"confidence", ext.Confidence,
		"has_id_number", ext.Fields.IDNumber != "",
	)
	return ext, nil
}

var (
	// AAA-999999999-9 (e.g. national card numbers)
	hyphenatedID = regexp.MustCompile(`\b[A-Z]{3}-\d{9}-\d\b`)
	// ten digit runs (voter ids, older card numbers)
	digitRunID = regexp.MustCompile(`\b\d{10}\b`)
	// passport style: one letter followed by seven or eight digits
	passportID = regexp.MustCompile(`\b[A-Z]\d{7,8}\b`)

	dayFirstDate = regexp.MustCompile(`\b(\d{2})([/.\-])(\d{2})([/.\-])(\d{4})\b`)
	isoDate      = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
)

// headerWords mark document furniture that is never a holder's name.
var headerWords = map[string]struct{}{
	"REPUBLIC": {}, "ECOWAS": {}, "IDENTITY": {}, "CARD": {}, "NATIONAL": {},
	"PASSPORT": {}, "DRIVING": {}, "DRIVER": {}, "LICENCE": {}, "LICENSE": {},
	"VOTER": {}, "VOTERS": {}, "AUTHORITY": {}, "COMMISSION": {}, "SURNAME": {},
	"NAMES": {}, "NAME": {}, "DATE": {}, "BIRTH": {}, "SEX": {}, "NATIONALITY": {},
	"PERSONAL": {}, "ID": {}, "SIGNATURE": {}, "HOLDER": {}, "ELECTORAL": {},
}

// Parse applies the field heuristics to a text detection.
func Parse(det *ports.TextDetection) Extraction {
	if det == nil {
		return Extraction{}
	}
	ext := Extraction{RawText: det.RawText}
	if ext.RawText == "" {
		texts := make([]string, len(det.Lines))
		for i, l := range det.Lines {
			texts[i] = l.Text
		}
		ext.RawText = strings.Join(texts, "\n")
	}

	upper := strings.ToUpper(ext.RawText)
	ext.Fields.IDNumber = findIDNumber(upper)
	ext.Fields.DateOfBirth = findDate(ext.RawText)
	ext.Fields.FullName = findName(det.Lines)
	ext.Fields.DocumentType = documentTypeHint(upper)

	found := 0
	for _, v := range []string{ext.Fields.IDNumber, ext.Fields.DateOfBirth, ext.Fields.FullName} {
		if v != "" {
			found++
		}
	}
	ext.Confidence = float64(found) / 3 * meanConfidence(det.Lines) / 100
	return ext
}

func findIDNumber(upper string) string {
	for _, re := range []*regexp.Regexp{hyphenatedID, digitRunID, passportID} {
		if m := re.FindString(upper); m != "" {
			return m
		}
	}
	return ""
}

// findDate returns the first plausible date as YYYY-MM-DD. Day-first forms
// accept "/", "-" and "." with a consistent delimiter.
func findDate(text string) string {
	type candidate struct {
		pos  int
		date string
	}
	var best *candidate
	consider := func(pos int, d string) {
		if best == nil || pos < best.pos {
			best = &candidate{pos: pos, date: d}
		}
	}
	for _, m := range dayFirstDate.FindAllStringSubmatchIndex(text, -1) {
		g := func(i int) string { return text[m[2*i]:m[2*i+1]] }
		if g(2) != g(4) {
			continue
		}
		if d, ok := validDate(g(5), g(3), g(1)); ok {
			consider(m[0], d)
		}
	}
	for _, m := range isoDate.FindAllStringSubmatchIndex(text, -1) {
		g := func(i int) string { return text[m[2*i]:m[2*i+1]] }
		if d, ok := validDate(g(1), g(2), g(3)); ok {
			consider(m[0], d)
		}
	}
	if best == nil {
		return ""
	}
	return best.date
}

func validDate(year, month, day string) (string, bool) {
	s := year + "-" + month + "-" + day
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return "", false
	}
	return s, true
}

// findName picks the first title-cased or all-caps multi-word line in the top
// third of the document. Lines without positions fall back to index order.
func findName(lines []ports.TextLine) string {
	if len(lines) == 0 {
		return ""
	}
	hasPositions := false
	for _, l := range lines {
		if l.Top > 0 {
			hasPositions = true
			break
		}
	}
	cutoff := (len(lines) + 2) / 3
	for i, l := range lines {
		if hasPositions && l.Top >= 1.0/3 {
			continue
		}
		if !hasPositions && i >= cutoff {
			break
		}
		if looksLikeName(l.Text) {
			return strings.Join(strings.Fields(l.Text), " ")
		}
	}
	return ""
}

func looksLikeName(line string) bool {
	words := strings.Fields(line)
	if len(words) < 2 {
		return false
	}
	for _, w := range words {
		if _, header := headerWords[strings.ToUpper(w)]; header {
			return false
		}
		if !isNameWord(w) {
			return false
		}
	}
	return true
}

// isNameWord accepts "Mensah", "MENSAH", "O'Neil" and "Asante-Boateng".
func isNameWord(w string) bool {
	runes := []rune(w)
	if len(runes) < 2 || !unicode.IsUpper(runes[0]) {
		return false
	}
	allUpper, restLower := true, true
	for _, r := range runes[1:] {
		switch {
		case r == '\'' || r == '-':
		case unicode.IsUpper(r):
			restLower = false
		case unicode.IsLower(r):
			allUpper = false
		default:
			return false
		}
	}
	return allUpper || restLower
}

func documentTypeHint(upper string) models.IDType {
	switch {
	case strings.Contains(upper, "PASSPORT"):
		return models.IDTypePassport
	case strings.Contains(upper, "DRIVING") || strings.Contains(upper, "DRIVER"):
		return models.IDTypeDriverLicense
	case strings.Contains(upper, "VOTER") || strings.Contains(upper, "ELECTORAL"):
		return models.IDTypeVoterID
	case strings.Contains(upper, "ECOWAS") || strings.Contains(upper, "IDENTITY CARD") ||
		strings.Contains(upper, "REPUBLIC OF"):
		return models.IDTypeNationalCard
	}
	return ""
}

func meanConfidence(lines []ports.TextLine) float64 {
	if len(lines) == 0 {
		return 0
	}
	var sum float64
	for _, l := range lines {
		sum += l.Confidence
	}
	return sum / float64(len(lines))
}
