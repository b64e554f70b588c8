package models

import (
	"errors"
	"fmt"
	"strings"
)

// TargetFieldSpec describes one slot of the destination schema.
type TargetFieldSpec struct {
	Name        string   `json:"name" yaml:"name"`
	Type        DataType `json:"type" yaml:"type"`
	Required    bool     `json:"required" yaml:"required"`
	Description string   `json:"description" yaml:"description"`
}

// Registry is the fixed, ordered set of target fields. It is built once
// and never mutated afterwards.
type Registry struct {
	fields []TargetFieldSpec
	index  map[string]int
}

// NewRegistry validates specs and builds a lookup by lower-cased name.
func NewRegistry(specs []TargetFieldSpec) (*Registry, error) {
	if len(specs) == 0 {
		return nil, errors.New("target schema has no fields")
	}
	r := &Registry{
		fields: make([]TargetFieldSpec, 0, len(specs)),
		index:  make(map[string]int, len(specs)),
	}
	for _, spec := range specs {
		name := strings.TrimSpace(spec.Name)
		if name == "" {
			return nil, errors.New("target field with empty name")
		}
		if !spec.Type.Valid() {
			return nil, fmt.Errorf("target field %s: unknown type %q", name, spec.Type)
		}
		key := strings.ToLower(name)
		if _, dup := r.index[key]; dup {
			return nil, fmt.Errorf("duplicate target field %s", name)
		}
		spec.Name = name
		r.index[key] = len(r.fields)
		r.fields = append(r.fields, spec)
	}
	return r, nil
}

// Fields returns a copy of the specs in declaration order.
func (r *Registry) Fields() []TargetFieldSpec {
	out := make([]TargetFieldSpec, len(r.fields))
	copy(out, r.fields)
	return out
}

// Lookup finds a target field by case-insensitive name.
func (r *Registry) Lookup(name string) (TargetFieldSpec, bool) {
	i, ok := r.index[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return TargetFieldSpec{}, false
	}
	return r.fields[i], true
}

// Has reports whether the registry defines name.
func (r *Registry) Has(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// Len is the number of target fields.
func (r *Registry) Len() int { return len(r.fields) }

// DefaultProductSchema is the product import schema used when no schema file is given.
func DefaultProductSchema() []TargetFieldSpec {
	return []TargetFieldSpec{
		{Name: "name", Type: TypeString, Required: true, Description: "Product display name"},
		{Name: "sku", Type: TypeString, Required: true, Description: "Stock keeping unit, unique per product variant"},
		{Name: "description", Type: TypeString, Description: "Long product description, may contain HTML"},
		{Name: "price", Type: TypeNumber, Required: true, Description: "Selling price in the store currency"},
		{Name: "compare_at_price", Type: TypeNumber, Description: "Original price shown struck through when on sale"},
		{Name: "quantity", Type: TypeNumber, Description: "Units in stock"},
		{Name: "category", Type: TypeString, Description: "Category name or path"},
		{Name: "brand", Type: TypeString, Description: "Brand or manufacturer"},
		{Name: "barcode", Type: TypeString, Description: "EAN, UPC or GTIN barcode"},
		{Name: "weight", Type: TypeNumber, Description: "Shipping weight"},
		{Name: "image_url", Type: TypeString, Description: "URL of the main product image"},
		{Name: "status", Type: TypeBoolean, Description: "Whether the product is active and visible"},
		{Name: "created_at", Type: TypeDate, Description: "Date the product was first listed"},
	}
}

// MustDefaultRegistry builds the default registry. The default schema is static,
// so a failure here is a programming error.
func MustDefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultProductSchema())
	if err != nil {
		panic(err)
	}
	return r
}
