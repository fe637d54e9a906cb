package domain

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountOwnershipCascades(t *testing.T) {
	// Removing a user removes their accounts, and removing an account
	// removes its cached emails. Both cascades are enforced in the schema.
	tests := []struct {
		field      string
		foreignKey string
	}{
		{field: "User", foreignKey: "foreignKey:UserID"},
		{field: "Emails", foreignKey: "foreignKey:EmailAccountID"},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			f, ok := reflect.TypeOf(EmailAccount{}).FieldByName(tt.field)
			require.True(t, ok, "field %s not found", tt.field)
			tag := f.Tag.Get("gorm")
			assert.Contains(t, tag, tt.foreignKey)
			assert.Contains(t, tag, "constraint:OnDelete:CASCADE")
		})
	}
}
