package catalog

// Package catalog provides the products file used to validate client-claimed
// prices server-side.

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Catalog struct {
	Shop     ShopInfo  `yaml:"shop"`
	Products []Product `yaml:"products"`
}

type ShopInfo struct {
	Name     string `yaml:"name"`
	Currency string `yaml:"currency"`
}

type Product struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	PriceCents int64  `yaml:"price_cents"`
	Active     bool   `yaml:"active"`
}

func (c *Catalog) product(id string) *Product {
	for i := range c.Products {
		if c.Products[i].ID == id {
			return &c.Products[i]
		}
	}
	return nil
}

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(content []byte) (*Catalog, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(content, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &catalog, nil
}

// Load reads the catalog file. An empty path means the shop runs without a
// catalog and only line-item arithmetic checks apply.
func (p *Parser) Load(path string) (*Catalog, error) {
	if path == "" {
		return nil, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return p.Parse(content)
}
