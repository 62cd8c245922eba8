package handler

// ImportRequest starts an import from a typed access key or decoded QR text.
type ImportRequest struct {
	AccessKey   string `json:"access_key"`
	ScannedText string `json:"scanned_text"`
}
