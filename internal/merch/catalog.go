// Package merch describes the merchandise images artwork can be previewed on.
package merch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownProduct is returned by Lookup for keys not in the catalog.
var ErrUnknownProduct = errors.New("unknown product")

// DefaultAspect is width/height of the bundled product photos.
const DefaultAspect = 3.0 / 4.0

// Product is a merchandise background.
type Product struct {
	Key    string  `yaml:"key" json:"key"`
	Label  string  `yaml:"label" json:"label"`
	Src    string  `yaml:"src" json:"src"`
	Aspect float64 `yaml:"aspect,omitempty" json:"aspect,omitempty"`
}

// Catalog is an ordered list of products. The first product is the default.
type Catalog struct {
	Products []Product `yaml:"products"`
}

// Default returns the bundled catalog with images under assetDir.
func Default(assetDir string) *Catalog {
	products := []Product{
		{Key: "white-shirt-woman", Label: "T-shirt (Woman)"},
		{Key: "white-shirt-man", Label: "T-shirt (Man)"},
		{Key: "white-mug", Label: "Mug"},
	}
	for i := range products {
		products[i].Src = filepath.Join(assetDir, products[i].Key+".png")
		products[i].Aspect = DefaultAspect
	}
	return &Catalog{Products: products}
}

// Parse decodes a YAML catalog. Relative sources are resolved against
// assetDir and a missing aspect defaults to DefaultAspect.
func Parse(data []byte, assetDir string) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	for i := range c.Products {
		p := &c.Products[i]
		if p.Aspect == 0 {
			p.Aspect = DefaultAspect
		}
		if p.Label == "" {
			p.Label = p.Key
		}
		if p.Src != "" && !isURL(p.Src) && !filepath.IsAbs(p.Src) && assetDir != "" {
			p.Src = filepath.Join(assetDir, p.Src)
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load reads a YAML catalog file.
func Load(path, assetDir string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data, assetDir)
}

// Marshal encodes the catalog as YAML.
func (c *Catalog) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate checks that the catalog is usable.
func (c *Catalog) Validate() error {
	if len(c.Products) == 0 {
		return fmt.Errorf("catalog has no products")
	}
	seen := make(map[string]bool, len(c.Products))
	for i, p := range c.Products {
		if strings.TrimSpace(p.Key) == "" {
			return fmt.Errorf("product %d: missing key", i)
		}
		if seen[p.Key] {
			return fmt.Errorf("product %q: duplicate key", p.Key)
		}
		seen[p.Key] = true
		if p.Src == "" {
			return fmt.Errorf("product %q: missing src", p.Key)
		}
		if p.Aspect <= 0 {
			return fmt.Errorf("product %q: aspect must be positive, got %v", p.Key, p.Aspect)
		}
	}
	return nil
}

// Lookup returns the product with the given key.
func (c *Catalog) Lookup(key string) (Product, error) {
	for _, p := range c.Products {
		if p.Key == key {
			return p, nil
		}
	}
	return Product{}, fmt.Errorf("%w: %q", ErrUnknownProduct, key)
}

// Find returns the product with the given key, or the first product when
// there is none.
func (c *Catalog) Find(key string) Product {
	if p, err := c.Lookup(key); err == nil {
		return p
	}
	if len(c.Products) == 0 {
		return Product{}
	}
	return c.Products[0]
}

// Keys returns product keys in catalog order.
func (c *Catalog) Keys() []string {
	keys := make([]string, len(c.Products))
	for i, p := range c.Products {
		keys[i] = p.Key
	}
	return keys
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
