package enums

import (
	"fmt"
	"strings"
)

// ProductCategory is one of the fixed catalog categories.
type ProductCategory string

const (
	ProductCategoryElectronics ProductCategory = "electronics"
	ProductCategoryClothing    ProductCategory = "clothing"
	ProductCategoryFood        ProductCategory = "food"
	ProductCategoryBooks       ProductCategory = "books"
)

var productCategories = map[ProductCategory]struct{}{
	ProductCategoryElectronics: {},
	ProductCategoryClothing:    {},
	ProductCategoryFood:        {},
	ProductCategoryBooks:       {},
}

func (c ProductCategory) IsValid() bool {
	_, ok := productCategories[c]
	return ok
}

// ParseProductCategory accepts any casing and surrounding whitespace.
func ParseProductCategory(value string) (ProductCategory, error) {
	c := ProductCategory(strings.ToLower(strings.TrimSpace(value)))
	if !c.IsValid() {
		return "", fmt.Errorf("invalid product category %q", value)
	}
	return c, nil
}
