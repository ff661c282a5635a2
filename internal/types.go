package internal

type TenderStatus string

const (
	StatusPending  TenderStatus = "PENDING"
	StatusListed   TenderStatus = "LISTED"
	StatusAnalyzed TenderStatus = "ANALYZED"
	StatusError    TenderStatus = "ERROR"
)

type DocumentType string

const (
	DocAvis    DocumentType = "AVIS"
	DocRC      DocumentType = "RC"
	DocCPS     DocumentType = "CPS"
	DocAnnexe  DocumentType = "ANNEXE"
	DocUnknown DocumentType = "UNKNOWN"
)

type ExtractionMethod string

const (
	ExtractionDigital ExtractionMethod = "DIGITAL"
	ExtractionOCR     ExtractionMethod = "OCR"
)

// Source identifies where an extracted value came from. It is a superset of
// DocumentType because phase 1 may extract straight from the tender webpage.
type Source string

const (
	SourceAvis    Source = "AVIS"
	SourceRC      Source = "RC"
	SourceCPS     Source = "CPS"
	SourceAnnexe  Source = "ANNEXE"
	SourceWebsite Source = "WEBSITE"
	SourceUnknown Source = "UNKNOWN"
)

// TrackedValue wraps every extracted leaf field with its provenance. A nil
// Value means "not yet extracted", never an error.
type TrackedValue[T any] struct {
	Value      *T      `json:"value"`
	Source     Source  `json:"source_document,omitempty"`
	SourceDate *string `json:"source_date,omitempty"`
}

func (tv TrackedValue[T]) Present() bool {
	return tv.Value != nil
}

type Money struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency,omitempty"`
}

type Deadline struct {
	Date TrackedValue[string] `json:"date"`
	Time TrackedValue[string] `json:"time"`
}

type Keywords struct {
	FR []string `json:"keywords_fr"`
	EN []string `json:"keywords_eng"`
	AR []string `json:"keywords_ar"`
}

// Lot is a phase-1 lot. Lots are not provenance-tracked; optionality is plain
// pointers. lot_number is the natural key used to attach deep data.
type Lot struct {
	LotNumber         *string `json:"lot_number"`
	LotSubject        *string `json:"lot_subject"`
	LotEstimatedValue *string `json:"lot_estimated_value"`
	CautionProvisoire *string `json:"caution_provisoire"`
}

type WebsiteExtended struct {
	ContactAdministratif TrackedValue[string] `json:"contact_administratif"`
}

// AvisMetadata is the phase-1 extraction result, the authoritative base of
// the merged view.
type AvisMetadata struct {
	ReferenceTender       TrackedValue[string] `json:"reference_tender"`
	TenderType            TrackedValue[string] `json:"tender_type"`
	IssuingInstitution    TrackedValue[string] `json:"issuing_institution"`
	ExecutionLocation     TrackedValue[string] `json:"execution_location"`
	FolderOpeningLocation TrackedValue[string] `json:"folder_opening_location"`
	Subject               TrackedValue[string] `json:"subject"`
	TotalEstimatedValue   TrackedValue[Money]  `json:"total_estimated_value"`
	SubmissionDeadline    Deadline             `json:"submission_deadline"`
	Keywords              Keywords             `json:"keywords"`
	Lots                  []Lot                `json:"lots"`
	WebsiteExtended       *WebsiteExtended     `json:"website_extended,omitempty"`
}

type Item struct {
	Name        string   `json:"name"`
	Quantity    *float64 `json:"quantity"`
	Description *string  `json:"description"`
}

type ExecutionDelay struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

type LotDeepData struct {
	LotNumber           *string                      `json:"lot_number"`
	GuaranteePercentage TrackedValue[float64]        `json:"guarantee_percentage"`
	LotEstimatedValue   TrackedValue[Money]          `json:"lot_estimated_value"`
	ExecutionDelay      TrackedValue[ExecutionDelay] `json:"execution_delay"`
	Items               []Item                       `json:"items"`
}

type AdditionalConditions struct {
	QualificationCriteria []string             `json:"qualification_criteria"`
	RequiredDocuments     []string             `json:"required_documents"`
	WarrantyPeriod        TrackedValue[string] `json:"warranty_period"`
	PaymentTerms          TrackedValue[string] `json:"payment_terms"`
}

type Contact struct {
	Name    *string `json:"name"`
	Phone   *string `json:"phone"`
	Email   *string `json:"email"`
	Address *string `json:"address"`
}

// UniversalMetadata is the phase-2 result. It is strictly complementary to
// AvisMetadata and never repeats phase-1 fields.
type UniversalMetadata struct {
	InstitutionAddress   TrackedValue[string]  `json:"institution_address"`
	Lots                 []LotDeepData         `json:"lots"`
	AdditionalConditions *AdditionalConditions `json:"additional_conditions,omitempty"`
	Contact              *Contact              `json:"contact,omitempty"`
}

// Document describes one file extracted from the tender bundle, read-only on
// the client side.
type Document struct {
	ID               string            `json:"id"`
	TenderID         string            `json:"tender_id,omitempty"`
	DocumentType     DocumentType      `json:"document_type"`
	Filename         string            `json:"filename"`
	PageCount        *int              `json:"page_count"`
	ExtractionMethod *ExtractionMethod `json:"extraction_method"`
	FileSizeBytes    *int64            `json:"file_size_bytes"`
	ExtractedAt      *string           `json:"extracted_at,omitempty"`
}

type Tender struct {
	ID                string             `json:"id"`
	ExternalReference *string            `json:"external_reference"`
	SourceURL         string             `json:"source_url"`
	Status            TenderStatus       `json:"status"`
	ScrapedAt         *string            `json:"scraped_at"`
	DownloadDate      *string            `json:"download_date"`
	AvisMetadata      *AvisMetadata      `json:"avis_metadata"`
	UniversalMetadata *UniversalMetadata `json:"universal_metadata"`
	ErrorMessage      *string            `json:"error_message"`
	CreatedAt         *string            `json:"created_at"`
	UpdatedAt         *string            `json:"updated_at"`
	Documents         []Document         `json:"documents,omitempty"`
}

type TenderPage struct {
	Items      []Tender `json:"items"`
	Total      int      `json:"total"`
	Page       int      `json:"page"`
	PerPage    int      `json:"per_page"`
	TotalPages int      `json:"total_pages"`
}

func (p TenderPage) HasPrev() bool {
	return p.Page > 1
}

func (p TenderPage) HasNext() bool {
	return p.TotalPages > 0 && p.Page < p.TotalPages
}

type LogLevel string

const (
	LevelInfo    LogLevel = "info"
	LevelSuccess LogLevel = "success"
	LevelWarning LogLevel = "warning"
	LevelError   LogLevel = "error"
)

// LogEntry matches the shape the scraper reports in its status payload.
type LogEntry struct {
	Timestamp string   `json:"timestamp"`
	Level     LogLevel `json:"level"`
	Message   string   `json:"message"`
}

type ScraperStats struct {
	TotalFound int `json:"total_found"`
	Downloaded int `json:"downloaded"`
	Failed     int `json:"failed"`
	Extracted  int `json:"extracted"`
}

type ScraperStatus struct {
	IsRunning      bool          `json:"is_running"`
	CurrentPhase   string        `json:"current_phase"`
	TotalTenders   int           `json:"total_tenders"`
	Downloaded     int           `json:"downloaded"`
	Failed         int           `json:"failed"`
	ElapsedSeconds float64       `json:"elapsed_seconds"`
	LastRun        *string       `json:"last_run"`
	Logs           []LogEntry    `json:"logs,omitempty"`
	Stats          *ScraperStats `json:"stats,omitempty"`
}

type ScraperRun struct {
	JobID     string `json:"job_id"`
	DateRange string `json:"date_range"`
}

type StopResult struct {
	Stopped bool   `json:"stopped"`
	Message string `json:"message,omitempty"`
}

type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

type Citation struct {
	Document string  `json:"document"`
	Section  *string `json:"section,omitempty"`
	Page     *int    `json:"page,omitempty"`
}

type Answer struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
	Language  *string    `json:"language_detected,omitempty"`
}
