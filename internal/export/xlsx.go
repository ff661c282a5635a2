// Package export writes tender data to XLSX workbooks.
package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"tenderwatch/internal"
)

// ExportTendersToXLSX writes one workbook with a tender sheet and a lot
// sheet. Lot rows use the merged view, so deep data appears next to its
// phase-1 lot.
func ExportTendersToXLSX(tenders []internal.Tender, outputPath string) error {
	f := excelize.NewFile()
	tenderSheet := f.GetSheetName(0)
	if err := f.SetSheetName(tenderSheet, "Tenders"); err != nil {
		return err
	}
	tenderSheet = "Tenders"
	lotSheet := "Lots"
	if _, err := f.NewSheet(lotSheet); err != nil {
		return err
	}

	tenderHeaders := []string{
		"id", "external_reference", "status", "reference_tender", "subject",
		"issuing_institution", "tender_type", "execution_location",
		"total_estimated_value", "submission_deadline_date", "submission_deadline_time",
		"lot_count", "analyzed", "scraped_at", "source_url", "error_message",
	}
	for i, h := range tenderHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(tenderSheet, cell, h)
	}

	for i, tender := range tenders {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(tenderSheet, cell, value)
		}

		avis := tender.AvisMetadata
		set(1, tender.ID)
		set(2, derefString(tender.ExternalReference))
		set(3, string(tender.Status))
		if avis != nil {
			set(4, tracked(avis.ReferenceTender))
			set(5, tracked(avis.Subject))
			set(6, tracked(avis.IssuingInstitution))
			set(7, tracked(avis.TenderType))
			set(8, tracked(avis.ExecutionLocation))
			set(9, trackedMoney(avis.TotalEstimatedValue))
			set(10, tracked(avis.SubmissionDeadline.Date))
			set(11, tracked(avis.SubmissionDeadline.Time))
			set(12, len(avis.Lots))
		}
		set(13, internal.HasDeepData(tender))
		set(14, derefString(tender.ScrapedAt))
		set(15, tender.SourceURL)
		set(16, derefString(tender.ErrorMessage))
	}

	lotHeaders := []string{
		"tender_id", "reference_tender", "lot_number", "lot_subject",
		"lot_estimated_value", "caution_provisoire",
		"guarantee_percentage", "deep_estimated_value", "execution_delay", "item_count",
	}
	for i, h := range lotHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(lotSheet, cell, h)
	}

	r := 1
	for _, tender := range tenders {
		if tender.AvisMetadata == nil {
			continue
		}
		reference := tracked(tender.AvisMetadata.ReferenceTender)
		var deepLots []internal.LotDeepData
		if tender.UniversalMetadata != nil {
			deepLots = tender.UniversalMetadata.Lots
		}
		for _, lot := range internal.MergeLots(tender.AvisMetadata.Lots, deepLots) {
			r++
			set := func(col int, value any) {
				cell, _ := excelize.CoordinatesToCellName(col, r)
				_ = f.SetCellValue(lotSheet, cell, value)
			}

			set(1, tender.ID)
			set(2, reference)
			set(3, derefString(lot.LotNumber))
			set(4, derefString(lot.LotSubject))
			set(5, derefString(lot.LotEstimatedValue))
			set(6, derefString(lot.CautionProvisoire))
			if deep := lot.Deep; deep != nil {
				set(7, trackedFloat(deep.GuaranteePercentage))
				set(8, trackedMoney(deep.LotEstimatedValue))
				set(9, trackedDelay(deep.ExecutionDelay))
				set(10, len(deep.Items))
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func tracked(tv internal.TrackedValue[string]) string {
	if tv.Value == nil {
		return ""
	}
	return *tv.Value
}

func trackedFloat(tv internal.TrackedValue[float64]) any {
	if tv.Value == nil {
		return ""
	}
	return *tv.Value
}

func trackedMoney(tv internal.TrackedValue[internal.Money]) string {
	if tv.Value == nil {
		return ""
	}
	return FormatMoney(*tv.Value)
}

func trackedDelay(tv internal.TrackedValue[internal.ExecutionDelay]) string {
	if tv.Value == nil {
		return ""
	}
	return fmt.Sprintf("%g %s", tv.Value.Value, tv.Value.Unit)
}

// FormatMoney renders an amount with its currency, defaulting to MAD when
// the extractor left the currency blank.
func FormatMoney(m internal.Money) string {
	currency := m.Currency
	if currency == "" {
		currency = "MAD"
	}
	return fmt.Sprintf("%.2f %s", m.Amount, currency)
}
