package scans

type StartScanPayload struct {
	Path string `json:"path" mod:"trim"`
}

type StartScanResponse struct {
	Accepted bool   `json:"accepted"`
	Path     string `json:"path"`
}

type DeduplicateResponse struct {
	MergedCount int `json:"merged_count"`
}
