package audit

import "time"

// TimelineFilters menampung filter dasar untuk audit timeline.
type TimelineFilters struct {
	From         time.Time
	To           time.Time
	Actor        string
	TenantID     string
	ResourceType string
	Action       string
	Result       string
	Page         int
	PageSize     int
}

// TimelineRow mewakili satu keputusan akses yang tercatat.
type TimelineRow struct {
	At           time.Time `json:"at"`
	UserID       string    `json:"user_id"`
	TenantID     string    `json:"tenant_id"`
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id"`
	Action       string    `json:"action"`
	Result       string    `json:"result"`
	UserAgent    string    `json:"user_agent"`
	Reason       string    `json:"reason,omitempty"`
}

// PagingInfo menyimpan metadata pagination sederhana.
type PagingInfo struct {
	Page     int  `json:"page"`
	HasNext  bool `json:"hasNext"`
	PageSize int  `json:"pageSize"`
	PrevPage int  `json:"prevPage,omitempty"`
	NextPage int  `json:"nextPage,omitempty"`
}

// Result membungkus hasil timeline dengan informasi paging.
type Result struct {
	Rows   []TimelineRow `json:"rows"`
	Paging PagingInfo    `json:"paging"`
}
