package monitor

import (
	"fmt"
	"io"
	"strings"

	"tenderwatch/internal"
)

// RenderTenderDetail writes the full merged view of one tender: every avis
// field with its provenance, lots with attached deep data and the phase-2
// extras when present. Absent values render as a placeholder, never as an
// error.
func RenderTenderDetail(w io.Writer, t internal.Tender) {
	fmt.Fprintf(w, "tender %s\n", t.ID)
	fmt.Fprintf(w, "status: %s\n", t.Status)
	if t.SourceURL != "" {
		fmt.Fprintf(w, "source: %s\n", t.SourceURL)
	}
	if t.ErrorMessage != nil && *t.ErrorMessage != "" {
		fmt.Fprintf(w, "error: %s\n", *t.ErrorMessage)
	}

	avis := t.AvisMetadata
	fmt.Fprintf(w, "\navis metadata\n")
	if avis == nil {
		fmt.Fprintf(w, "  (none)\n")
	} else {
		field(w, "reference", avis.ReferenceTender)
		field(w, "subject", avis.Subject)
		field(w, "institution", avis.IssuingInstitution)
		field(w, "tender type", avis.TenderType)
		field(w, "execution location", avis.ExecutionLocation)
		field(w, "opening location", avis.FolderOpeningLocation)
		moneyField(w, "estimated value", avis.TotalEstimatedValue)
		fmt.Fprintf(w, "  %-20s %s %s\n", "deadline:", trackedString(avis.SubmissionDeadline.Date), trackedString(avis.SubmissionDeadline.Time))
		if avis.WebsiteExtended != nil {
			field(w, "admin contact", avis.WebsiteExtended.ContactAdministratif)
		}
		if missing := internal.MissingAvisFields(avis); len(missing) > 0 {
			fmt.Fprintf(w, "  incomplete: missing %s\n", strings.Join(missing, ", "))
		}
	}

	var deepLots []internal.LotDeepData
	if t.UniversalMetadata != nil {
		deepLots = t.UniversalMetadata.Lots
	}
	var avisLots []internal.Lot
	if avis != nil {
		avisLots = avis.Lots
	}
	merged := internal.MergeLots(avisLots, deepLots)
	if len(merged) > 0 {
		fmt.Fprintf(w, "\nlots (%d)\n", len(merged))
		for i, lot := range merged {
			renderLot(w, i+1, lot)
		}
	}
	if orphans := internal.OrphanDeepCount(avisLots, deepLots); orphans > 0 {
		fmt.Fprintf(w, "  warning: %d deep lot record(s) match no avis lot\n", orphans)
	}

	if um := t.UniversalMetadata; um != nil {
		fmt.Fprintf(w, "\ndeep data\n")
		field(w, "institution address", um.InstitutionAddress)
		if ac := um.AdditionalConditions; ac != nil {
			listField(w, "qualification", ac.QualificationCriteria)
			listField(w, "required documents", ac.RequiredDocuments)
			field(w, "warranty", ac.WarrantyPeriod)
			field(w, "payment terms", ac.PaymentTerms)
		}
		if c := um.Contact; c != nil {
			fmt.Fprintf(w, "  contact: %s %s %s\n",
				deref(c.Name, notExtracted), deref(c.Phone, ""), deref(c.Email, ""))
		}
	}

	if len(t.Documents) > 0 {
		fmt.Fprintf(w, "\ndocuments (%d)\n", len(t.Documents))
		for _, doc := range t.Documents {
			pages := ""
			if doc.PageCount != nil {
				pages = fmt.Sprintf(" (%d pages)", *doc.PageCount)
			}
			method := ""
			if doc.ExtractionMethod != nil {
				method = " " + string(*doc.ExtractionMethod)
			}
			fmt.Fprintf(w, "  %-8s %s%s%s\n", doc.DocumentType, doc.Filename, pages, method)
		}
	}
}

func renderLot(w io.Writer, n int, lot internal.MergedLot) {
	fmt.Fprintf(w, "  lot %s: %s\n", deref(lot.LotNumber, fmt.Sprintf("#%d", n)), deref(lot.LotSubject, notExtracted))
	if lot.LotEstimatedValue != nil {
		fmt.Fprintf(w, "    estimated value: %s\n", *lot.LotEstimatedValue)
	}
	if lot.CautionProvisoire != nil {
		fmt.Fprintf(w, "    caution provisoire: %s\n", *lot.CautionProvisoire)
	}
	deep := lot.Deep
	if deep == nil {
		return
	}
	if deep.GuaranteePercentage.Present() {
		fmt.Fprintf(w, "    guarantee: %g%%%s\n", *deep.GuaranteePercentage.Value, provenance(deep.GuaranteePercentage.Source, deep.GuaranteePercentage.SourceDate))
	}
	if deep.LotEstimatedValue.Present() {
		fmt.Fprintf(w, "    deep estimated value: %s%s\n", money(*deep.LotEstimatedValue.Value), provenance(deep.LotEstimatedValue.Source, deep.LotEstimatedValue.SourceDate))
	}
	if deep.ExecutionDelay.Present() {
		d := deep.ExecutionDelay.Value
		fmt.Fprintf(w, "    execution delay: %g %s\n", d.Value, d.Unit)
	}
	for _, item := range deep.Items {
		qty := ""
		if item.Quantity != nil {
			qty = fmt.Sprintf(" x%g", *item.Quantity)
		}
		fmt.Fprintf(w, "    - %s%s\n", item.Name, qty)
	}
}

func field(w io.Writer, label string, tv internal.TrackedValue[string]) {
	fmt.Fprintf(w, "  %-20s %s%s\n", label+":", trackedString(tv), provenance(tv.Source, tv.SourceDate))
}

func moneyField(w io.Writer, label string, tv internal.TrackedValue[internal.Money]) {
	value := notExtracted
	if tv.Present() {
		value = money(*tv.Value)
	}
	fmt.Fprintf(w, "  %-20s %s%s\n", label+":", value, provenance(tv.Source, tv.SourceDate))
}

func listField(w io.Writer, label string, values []string) {
	if len(values) == 0 {
		return
	}
	fmt.Fprintf(w, "  %s:\n", label)
	for _, v := range values {
		fmt.Fprintf(w, "    - %s\n", v)
	}
}

func trackedString(tv internal.TrackedValue[string]) string {
	if !tv.Present() {
		return notExtracted
	}
	return *tv.Value
}

// provenance renders the source annotation for an extracted value. Values
// that were never extracted carry no annotation.
func provenance(src internal.Source, date *string) string {
	if src == "" {
		return ""
	}
	if date != nil && *date != "" {
		return fmt.Sprintf(" [%s %s]", src, *date)
	}
	return fmt.Sprintf(" [%s]", src)
}

func money(m internal.Money) string {
	currency := m.Currency
	if currency == "" {
		currency = "MAD"
	}
	return fmt.Sprintf("%.2f %s", m.Amount, currency)
}

func deref(v *string, fallback string) string {
	if v == nil || *v == "" {
		return fallback
	}
	return *v
}
