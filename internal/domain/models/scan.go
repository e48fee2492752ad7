package models

import (
	"time"
)

// Metadata holds the indicators extracted from a scanned message
type Metadata struct {
	Text         string   `json:"text"`
	CleanedText  string   `json:"cleaned_text"`
	PhoneNumbers []string `json:"phone_numbers"`
	Emails       []string `json:"emails"`
	URLs         []string `json:"urls"`
}

// ScanRecord is the persisted unit of work for one classified message
type ScanRecord struct {
	ID string `json:"scan_id"`
	Metadata
	Prediction *ClassificationResult `json:"prediction,omitempty"`
	CreatedAt  time.Time             `json:"created_at"`
}

// Label is the binary verdict of the phishing classifier
type Label int

const (
	LabelBenign   Label = 0
	LabelPhishing Label = 1
)

// Name returns the human-readable label name
func (l Label) Name() string {
	if l == LabelPhishing {
		return "phishing"
	}
	return "benign"
}

// ClassificationResult is the normalized classifier output for a message
type ClassificationResult struct {
	Label       Label   `json:"label"`
	LabelName   string  `json:"label_name"`
	Probability float64 `json:"probability"`
}

// IsPhishing reports whether the message was labelled as phishing
func (c *ClassificationResult) IsPhishing() bool {
	return c != nil && c.Label == LabelPhishing
}

// ScanImageResponse is returned after an image has been scanned and persisted
type ScanImageResponse struct {
	ScanID     string                `json:"scan_id"`
	Prediction *ClassificationResult `json:"prediction"`
}
