package storage

import (
	"encoding/json"
	"fmt"
)

// ContentTypeJSON is the content type of metadata documents.
const ContentTypeJSON = "application/json"

// Passport carries the product attributes recorded in a passport NFT.
type Passport struct {
	SerialNumber    string `json:"serial_number" validate:"required,max=64"`
	ProductionDate  string `json:"production_date" validate:"required,max=32"`
	DeviceModel     string `json:"device_model" validate:"required,max=64"`
	WarrantyPeriod  string `json:"warranty_period" validate:"max=32"`
	CountryOfOrigin string `json:"country_of_origin" validate:"max=64"`
	ManufacturerID  string `json:"manufacturer_id" validate:"max=64"`
	Image           string `json:"image" validate:"omitempty,url"`
	ImageType       string `json:"image_type" validate:"omitempty,max=32"`
}

// Attribute is one trait of an NFT metadata document.
type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// File references a file attached to an NFT.
type File struct {
	Type string `json:"type"`
	URI  string `json:"uri"`
}

// Properties lists files and the category of an NFT.
type Properties struct {
	Files    []File `json:"files"`
	Category string `json:"category"`
}

// Document is an off-chain NFT metadata document.
type Document struct {
	Name        string      `json:"name"`
	Symbol      string      `json:"symbol"`
	Description string      `json:"description"`
	Image       string      `json:"image"`
	Attributes  []Attribute `json:"attributes"`
	Properties  Properties  `json:"properties"`
}

// NewPassportDocument builds the metadata document for a product passport.
func NewPassportDocument(name, symbol string, p Passport) Document {
	imageType := p.ImageType
	if imageType == "" {
		imageType = "image/png"
	}

	files := []File{}
	if p.Image != "" {
		files = append(files, File{Type: imageType, URI: p.Image})
	}

	description := fmt.Sprintf("Serial Number: %s, Production Date: %s, Warranty Period: %s",
		p.SerialNumber, p.ProductionDate, p.WarrantyPeriod)

	return Document{
		Name:        name,
		Symbol:      symbol,
		Description: description,
		Image:       p.Image,
		Attributes: []Attribute{
			{TraitType: "Serial Number", Value: p.SerialNumber},
			{TraitType: "Production Date", Value: p.ProductionDate},
			{TraitType: "Device Model", Value: p.DeviceModel},
			{TraitType: "Warranty Period", Value: p.WarrantyPeriod},
			{TraitType: "Country of Origin", Value: p.CountryOfOrigin},
			{TraitType: "Manufacturer ID", Value: p.ManufacturerID},
		},
		Properties: Properties{
			Files:    files,
			Category: "NFT",
		},
	}
}

// Marshal encodes the document as JSON.
func (d Document) Marshal() ([]byte, error) {
	return json.Marshal(d)
}
