package services

import (
	"testing"

	"github.com/google/uuid"

	"github.com/ghuser/itemflow/services/item/domain/models"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   models.ItemName
		wantErr bool
	}{
		{"valid name", "Valid Item Name", false},
		{"valid name with special chars", "Item-Name_123!@#", false},
		{"valid single space between words", "item name", false},
		{"leading whitespace", " Name", true},
		{"trailing whitespace", "Name ", true},
		{"leading and trailing whitespace", " Name ", true},
		{"only whitespace", "   ", true},
		{"tab character (control)", "Name\tName", true},
		{"newline character (control)", "Name\nName", true},
		{"null byte (control)", "Name\x00", true},
		{"DEL character", "Name\x7F", true},
		{"less-than markup", "Name<script", true},
		{"greater-than markup", "Name>", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateName(%q) error = %v, wantErr = %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateDescription(t *testing.T) {
	tests := []struct {
		name    string
		input   models.ItemDescription
		wantErr bool
	}{
		{"empty is valid", "", false},
		{"plain text", "a useful description", false},
		{"control character", "line1\nline2", true},
		{"markup character", "<b>bold</b>", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDescription(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateDescription(%q) error = %v, wantErr = %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateItemForCreation(t *testing.T) {
	t.Run("nil item returns error", func(t *testing.T) {
		if err := ValidateItemForCreation(nil); err == nil {
			t.Fatal("expected error for nil item")
		}
	})

	t.Run("valid item returns nil", func(t *testing.T) {
		item := models.NewItem("Valid Item", "")
		if err := ValidateItemForCreation(item); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("zero ID returns error", func(t *testing.T) {
		item := models.NewItem("Valid Item", "")
		item.ID = uuid.Nil
		if err := ValidateItemForCreation(item); err == nil {
			t.Fatal("expected error for zero ID")
		}
	})

	t.Run("invalid name propagates error", func(t *testing.T) {
		item := models.NewItem(" leading space", "")
		if err := ValidateItemForCreation(item); err == nil {
			t.Fatal("expected error for invalid name")
		}
	})

	t.Run("invalid description propagates error", func(t *testing.T) {
		item := models.NewItem("Valid Item", "bad\x00description")
		if err := ValidateItemForCreation(item); err == nil {
			t.Fatal("expected error for invalid description")
		}
	})
}
