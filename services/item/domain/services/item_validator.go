// Package services contains stateless domain services for the item bounded
// context. They enforce business rules that operate purely on domain types.
package services

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/ghuser/itemflow/services/item/domain/models"
)

// ValidateName enforces character-level rules for ItemName beyond the
// length bounds checked by the constructor:
//   - no leading or trailing whitespace
//   - not only whitespace
//   - no control characters (Unicode category Cc)
//   - no markup characters ('<', '>')
func ValidateName(name models.ItemName) error {
	s := name.String()

	if s != strings.TrimSpace(s) {
		return fmt.Errorf("item name must not have leading or trailing whitespace")
	}
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("item name must not be only whitespace")
	}
	if err := checkCharacters(s); err != nil {
		return fmt.Errorf("item name %w", err)
	}
	return nil
}

// ValidateDescription enforces character-level rules for ItemDescription.
// An empty description is valid.
func ValidateDescription(desc models.ItemDescription) error {
	if desc.IsEmpty() {
		return nil
	}
	if err := checkCharacters(desc.String()); err != nil {
		return fmt.Errorf("item description %w", err)
	}
	return nil
}

func checkCharacters(s string) error {
	for _, r := range s {
		if unicode.IsControl(r) {
			return fmt.Errorf("must not contain control characters")
		}
		if r == '<' || r == '>' {
			return fmt.Errorf("must not contain markup characters")
		}
	}
	return nil
}

// ValidateItemForCreation performs cross-field validation on a constructed
// Item aggregate before it is persisted.
func ValidateItemForCreation(item *models.Item) error {
	if item == nil {
		return fmt.Errorf("item cannot be nil")
	}
	if item.ID == uuid.Nil {
		return fmt.Errorf("id must be set")
	}
	if err := ValidateName(item.Name); err != nil {
		return fmt.Errorf("invalid name: %w", err)
	}
	if err := ValidateDescription(item.Description); err != nil {
		return fmt.Errorf("invalid description: %w", err)
	}
	return nil
}
