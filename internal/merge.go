package internal

import "strings"

// MergedLot is the display-ready projection of one lot: the phase-1 base plus
// the phase-2 deep record when one matched by lot_number.
type MergedLot struct {
	Lot
	Deep *LotDeepData
}

// MergeLots attaches deep data to the phase-1 lots. Output length and order
// always match avisLots. Deep entries whose lot_number matches no avis lot
// are dropped; use OrphanDeepCount to detect them.
func MergeLots(avisLots []Lot, deepLots []LotDeepData) []MergedLot {
	byNumber := make(map[string]*LotDeepData, len(deepLots))
	for i := range deepLots {
		num := normalizedLotNumber(deepLots[i].LotNumber)
		if num == "" {
			continue
		}
		if _, ok := byNumber[num]; !ok {
			byNumber[num] = &deepLots[i]
		}
	}

	merged := make([]MergedLot, 0, len(avisLots))
	for _, lot := range avisLots {
		out := MergedLot{Lot: lot}
		if num := normalizedLotNumber(lot.LotNumber); num != "" {
			out.Deep = byNumber[num]
		}
		merged = append(merged, out)
	}
	return merged
}

// OrphanDeepCount reports how many deep entries cannot be attached to any
// avis lot, either because their lot_number is absent or it has no
// counterpart.
func OrphanDeepCount(avisLots []Lot, deepLots []LotDeepData) int {
	avisNumbers := make(map[string]struct{}, len(avisLots))
	for _, lot := range avisLots {
		if num := normalizedLotNumber(lot.LotNumber); num != "" {
			avisNumbers[num] = struct{}{}
		}
	}

	orphans := 0
	for i := range deepLots {
		num := normalizedLotNumber(deepLots[i].LotNumber)
		if num == "" {
			orphans++
			continue
		}
		if _, ok := avisNumbers[num]; !ok {
			orphans++
		}
	}
	return orphans
}

func normalizedLotNumber(num *string) string {
	if num == nil {
		return ""
	}
	return strings.TrimSpace(*num)
}

// HasDeepData reports whether phase 2 has produced a result for the tender,
// regardless of whether its lot list is empty.
func HasDeepData(t Tender) bool {
	return t.UniversalMetadata != nil
}

// ShouldAutoAnalyze is the single authority for kicking off phase 2 on a
// freshly loaded tender: only LISTED records without deep data qualify.
func ShouldAutoAnalyze(t Tender) bool {
	return t.Status == StatusListed && t.UniversalMetadata == nil
}

// Fields phase 1 must fill before a record counts as complete.
var requiredAvisFields = []string{
	"reference_tender",
	"subject",
	"submission_deadline",
	"issuing_institution",
}

// MissingAvisFields lists the required phase-1 fields that are still absent
// or blank.
func MissingAvisFields(m *AvisMetadata) []string {
	if m == nil {
		out := make([]string, len(requiredAvisFields))
		copy(out, requiredAvisFields)
		return out
	}

	var missing []string
	for _, field := range requiredAvisFields {
		var present bool
		switch field {
		case "reference_tender":
			present = trackedFilled(m.ReferenceTender)
		case "subject":
			present = trackedFilled(m.Subject)
		case "submission_deadline":
			present = trackedFilled(m.SubmissionDeadline.Date)
		case "issuing_institution":
			present = trackedFilled(m.IssuingInstitution)
		}
		if !present {
			missing = append(missing, field)
		}
	}
	return missing
}

func IsAvisComplete(m *AvisMetadata) bool {
	return len(MissingAvisFields(m)) == 0
}

func trackedFilled(tv TrackedValue[string]) bool {
	return tv.Value != nil && strings.TrimSpace(*tv.Value) != ""
}
