package constants

// PageMethod records how the text of a page was obtained.
type PageMethod string

const (
	PageDigital PageMethod = "digital" // embedded text layer
	PageOCR     PageMethod = "ocr"     // rendered and recognized
	PageEmpty   PageMethod = "empty"   // nothing recoverable; kept for page accounting
)

// DocumentStatus is the outcome of processing one input document.
type DocumentStatus string

// Stable values (these exact strings go to the ledger and the summary sheet).
const (
	DocumentOK           DocumentStatus = "ok"           // every chunk answered
	DocumentPartial      DocumentStatus = "partial"      // some chunks failed
	DocumentFailed       DocumentStatus = "failed"       // could not be opened
	DocumentDeduplicated DocumentStatus = "deduplicated" // byte-identical to an earlier file
	DocumentCancelled    DocumentStatus = "cancelled"    // run stopped before completion
)

// RunStatus is the terminal state of a whole run.
type RunStatus string

const (
	RunRunning   RunStatus = "RUNNING"
	RunCompleted RunStatus = "COMPLETED"
	RunCancelled RunStatus = "CANCELLED"
	RunFailed    RunStatus = "FAILED"
)
