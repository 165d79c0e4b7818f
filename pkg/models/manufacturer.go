// Package models defines the persistent shapes shared by the request store,
// deferred manufacturer store, packer, batch station and orchestrator.
package models

import "time"

// Manufacturer is the finalized, queryable record for one manufacturer
// domain (eTLD+1). Fields are populated as the orchestrator materializes
// each extraction field from completed batch responses.
type Manufacturer struct {
	ETLD1      string    `json:"etld1"`
	SourceText string    `json:"source_text"`

	IsManufacturer *bool `json:"is_manufacturer,omitempty"`

	Addresses     []string `json:"addresses,omitempty"`
	BusinessDesc  []string `json:"business_desc,omitempty"`

	Certificates []string `json:"certificates,omitempty"`
	Industries   []string `json:"industries,omitempty"`
	Processes    []string `json:"processes,omitempty"`
	Materials    []string `json:"materials,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Field names used as the `field` segment of a custom ID and as keys into
// DeferredManufacturer.Fields.
const (
	FieldIsManufacturer = "is_manufacturer"
	FieldAddresses      = "addresses"
	FieldBusinessDesc    = "business_desc"
	FieldCertificates    = "certificates"
	FieldIndustries      = "industries"
	FieldProcesses       = "processes"
	FieldMaterials       = "materials"
)

// BinaryFields classify to a single true/false value from the first chunk.
var BinaryFields = map[string]bool{
	FieldIsManufacturer: true,
}

// BasicFields extract a scalar/short-list value from the first chunk.
var BasicFields = map[string]bool{
	FieldAddresses:   true,
	FieldBusinessDesc: true,
}

// ConceptFields run the two-phase llm_search + mapping pipeline over the
// full chunk set, resolved against the ontology catalog.
var ConceptFields = map[string]bool{
	FieldCertificates: true,
	FieldIndustries:   true,
	FieldProcesses:    true,
	FieldMaterials:    true,
}
