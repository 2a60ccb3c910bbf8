package types

import "time"

type Strategy string

const (
	Lattice Strategy = "lattice"
	Stream  Strategy = "stream"
)

type Stage string

const (
	StageUnopened        Stage = "unopened"
	StageOpened          Stage = "opened"
	StagePagesReconciled Stage = "pages_reconciled"
	StageTablesExtracted Stage = "tables_extracted"
	StageChunked         Stage = "chunked"
	StageComplete        Stage = "complete"
)

// Warning codes attached to a ParseResult.
const (
	WarnOCRUnavailable   = "ocr_unavailable"
	WarnOCRTimeout       = "ocr_timeout"
	WarnOCRFailed        = "ocr_failed"
	WarnTextLayerFailed  = "text_layer_failed"
	WarnMetadataFailed   = "metadata_unavailable"
	WarnTableUnavailable = "table_backend_unavailable"
	WarnTableFailed      = "table_backend_failed"
)

// ParseOptions are the per-call knobs. Zero values mean "use the pipeline default"
// for the numeric fields.
type ParseOptions struct {
	ChunkSize     int    `json:"chunkSize" yaml:"chunk_size"`
	ChunkOverlap  int    `json:"chunkOverlap" yaml:"chunk_overlap"`
	UseOCR        bool   `json:"useOcr" yaml:"use_ocr"`
	ForceOCR      bool   `json:"forceOcr" yaml:"force_ocr"`
	ExtractTables bool   `json:"extractTables" yaml:"extract_tables"`
	TableFlavour  string `json:"tableFlavour" yaml:"table_flavour"`
	MetadataOnly  bool   `json:"metadataOnly" yaml:"metadata_only"`
	// Pages restricts processing to these 1-based pages. Empty means all.
	Pages []int `json:"pages,omitempty" yaml:"pages"`
}

type ParseRequest struct {
	PresignedURL string       `json:"presignedUrl"`
	Options      ParseOptions `json:"options"`
}

type Metadata struct {
	Title        string     `json:"title,omitempty"`
	Author       string     `json:"author,omitempty"`
	Subject      string     `json:"subject,omitempty"`
	Keywords     string     `json:"keywords,omitempty"`
	Creator      string     `json:"creator,omitempty"`
	Producer     string     `json:"producer,omitempty"`
	CreationDate *time.Time `json:"creation_date,omitempty"`
	ModDate      *time.Time `json:"mod_date,omitempty"`
	PageCount    int        `json:"page_count"`
	Encrypted    bool       `json:"encrypted,omitempty"`
}

type Warning struct {
	Code    string `json:"code"`
	Page    int    `json:"page,omitempty"` // 0 for document-level warnings
	Message string `json:"message"`
}

type Page struct {
	Index        int       `json:"index"`
	EmbeddedText string    `json:"embedded_text"`
	OCRText      *string   `json:"ocr_text,omitempty"`
	ResolvedText string    `json:"resolved_text"`
	OCRUsed      bool      `json:"ocr_used"`
	Quality      float64   `json:"quality"`
	Warnings     []Warning `json:"warnings,omitempty"`
}

type Chunk struct {
	Index   int    `json:"index"`
	Offset  int    `json:"offset"`
	Length  int    `json:"length"`
	Content string `json:"content"`
}

type TableCandidate struct {
	Strategy   Strategy
	Page       int
	Rows       [][]string
	Confidence float64
}

type Table struct {
	ID         string     `json:"id"`
	Page       int        `json:"page"`
	Strategy   Strategy   `json:"strategy"`
	Rows       [][]string `json:"rows"`
	Confidence float64    `json:"confidence"`
}

type ParseResult struct {
	Text      string         `json:"text"`
	Chunks    []Chunk        `json:"chunks"`
	NumChunks int            `json:"num_chunks"`
	Metadata  Metadata       `json:"metadata"`
	Pages     []Page         `json:"pages,omitempty"`
	OCRUsed   []bool         `json:"ocr_used,omitempty"`
	OCRText   *string        `json:"ocr_text,omitempty"`
	OCRChunks []Chunk        `json:"ocr_chunks,omitempty"`
	OCRByPage map[int]string `json:"ocr_by_page,omitempty"`
	Tables    []Table        `json:"tables,omitempty"`
	NumTables *int           `json:"num_tables,omitempty"`
	Warnings  []Warning      `json:"warnings,omitempty"`
	Stage     Stage          `json:"stage"`
}

type PreviewResult struct {
	Success        bool    `json:"success"`
	NeedsOCR       bool    `json:"needsOcr"`
	TotalPages     int     `json:"totalPages"`
	TextLayerPages int     `json:"textLayerPages"`
	OCRPages       []int   `json:"ocrPages,omitempty"`
	Error          *string `json:"error,omitempty"`
}

// ── Image extraction types ───────────────────────────────────────────────────

type ImageExtractionResult struct {
	Success bool    `json:"success"`
	Text    string  `json:"text"`
	Engine  string  `json:"engine,omitempty"`
	Error   *string `json:"error,omitempty"`
}
