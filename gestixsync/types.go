package gestixsync

import "encoding/json"

// Wire shapes for the Gestix order endpoints. Numbers arrive as
// json.Number because some Gestix installations quote them.

type gestixOrderHeader struct {
	InvoiceNumber int    `json:"invoice_number"`
	DocNumber     string `json:"doc_number"`
	ClientName    string `json:"client_name"`
	ClientCode    string `json:"client_code"`
	GroupCode     string `json:"group_code"`
	CreatedAt     string `json:"created_at"`
	Description   string `json:"description"`
	Priority      string `json:"priority"`
	Notes         string `json:"notes"`
}

type gestixOrderLine struct {
	GroupCode    string          `json:"group_code"`
	ArticleCode  string          `json:"article_code"`
	StockCode    string          `json:"stock_code"`
	Name         string          `json:"name"`
	Variant      string          `json:"variant"`
	Unit         string          `json:"unit"`
	Description  string          `json:"description"`
	Observations string          `json:"observations"`
	Quantity     json.Number     `json:"quantity"`
	Total        json.Number     `json:"total"`
	SubLines     []gestixSubLine `json:"sub_lines"`
}

type gestixSubLine struct {
	Copies   json.Number `json:"copies"`
	Measure  json.Number `json:"measure"`
	FileLink string      `json:"file_link"`
	Notes    string      `json:"notes"`
}

type gestixClientRecord struct {
	ID   int    `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// rawOrder pairs one header with its detail lines for the rest of the
// cycle. Degraded orders (detail fetch failed) carry a single
// header-derived line.
type rawOrder struct {
	Header gestixOrderHeader
	Lines  []gestixOrderLine
}

// SyncResult is what the trigger API and the scheduler both get back.
// Busy rejections are reported here, never as an error.
type SyncResult struct {
	Success bool   `json:"success"`
	Count   int    `json:"count"`
	Message string `json:"message,omitempty"`
}

type TriggerSyncRequest struct {
	Trigger string `json:"trigger" validate:"omitempty,oneof=manual retry timer"`
}

type SyncStatusResponse struct {
	Running   bool        `json:"running"`
	Watermark int         `json:"watermark"`
	LastRunAt *string     `json:"lastRunAt"`
	LastRun   *SyncResult `json:"lastRun"`
}

const (
	SyncTriggeredManual = "manual"
	SyncTriggeredTimer  = "timer"
	SyncTriggeredRetry  = "retry"
)
