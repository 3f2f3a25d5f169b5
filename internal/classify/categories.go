// ABOUTME: Embedded business category taxonomy loaded from TOML
// ABOUTME: Provides the known-category set used to filter classifier output

package classify

import (
	_ "embed"
	"fmt"

	"github.com/BurntSushi/toml"
)

//go:embed categories.toml
var categoriesTOML []byte

type taxonomy struct {
	Categories []string `toml:"categories"`
}

// Categories returns the full category taxonomy in declaration order.
func Categories() ([]string, error) {
	var tax taxonomy
	if err := toml.Unmarshal(categoriesTOML, &tax); err != nil {
		return nil, fmt.Errorf("parsing category taxonomy: %w", err)
	}
	if len(tax.Categories) == 0 {
		return nil, fmt.Errorf("category taxonomy is empty")
	}
	return tax.Categories, nil
}
