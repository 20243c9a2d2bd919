package domain

type ContentType string

const (
	TypeStructuredTable   ContentType = "structured_table"
	TypeOrderText         ContentType = "order_text"
	TypeGenericText       ContentType = "generic_text"
	TypeEmpty             ContentType = "empty"
	TypeDocument          ContentType = "document"
	TypeImage             ContentType = "image"
	TypeSpreadsheet       ContentType = "spreadsheet"
	TypeUnknownAttachment ContentType = "unknown_attachment"
	TypeEcommerceURL      ContentType = "ecommerce_url"
	TypeFileURL           ContentType = "file_url"
	TypeWebURL            ContentType = "web_url"
	TypeURL               ContentType = "url"
)

// Descriptor origin values.
const (
	OriginAttachment = "attachment"
	OriginURL        = "url"
	OriginBody       = "body"
)

// Target processor tags. They select which input builder feeds the
// extraction chain.
const (
	ProcessorText        = "text"
	ProcessorDocument    = "document"
	ProcessorVision      = "vision"
	ProcessorSpreadsheet = "spreadsheet"
	ProcessorURL         = "url"
	ProcessorNone        = "none"
)

type Descriptor struct {
	Type       ContentType `json:"type"`
	Confidence float64     `json:"confidence"`
	Processor  string      `json:"processor"`
	Origin     string      `json:"origin"`
}

// Classification is derived deterministically from an IngestedItem and is
// never persisted on its own. Primary drives queue priority and processing.
type Classification struct {
	Descriptors []Descriptor `json:"descriptors"`
	Primary     *Descriptor  `json:"primary,omitempty"`
}

type InputKind string

const (
	InputText  InputKind = "text"
	InputImage InputKind = "image"
)

// ExtractionInput is what the provider chain receives for one item: either
// plain text or one image with its media type.
type ExtractionInput struct {
	Kind           InputKind
	Text           string
	Image          []byte
	ImageMediaType string
}
