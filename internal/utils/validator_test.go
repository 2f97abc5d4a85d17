// internal/utils/validator_test.go
package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type amountPayload struct {
	Amount string `validate:"required,positive_amount"`
}

func TestValidatePositiveAmount(t *testing.T) {
	valid := []string{"1", "0.01", "1200", "999999.99", "1000.5"}
	for _, v := range valid {
		assert.NoError(t, ValidateStruct(&amountPayload{Amount: v}), v)
	}

	invalid := []string{"0", "-1", "abc", "", "10.999", "1,200"}
	for _, v := range invalid {
		assert.Error(t, ValidateStruct(&amountPayload{Amount: v}), v)
	}
}

type usernamePayload struct {
	Username string `validate:"required,username"`
}

func TestValidateUsername(t *testing.T) {
	assert.NoError(t, ValidateStruct(&usernamePayload{Username: "craft_seller_42"}))
	assert.Error(t, ValidateStruct(&usernamePayload{Username: "ab"}))
	assert.Error(t, ValidateStruct(&usernamePayload{Username: "has space"}))
	assert.Error(t, ValidateStruct(&usernamePayload{Username: "emoji😀"}))
}

func TestGetValidationErrors(t *testing.T) {
	err := ValidateStruct(&amountPayload{Amount: "-5"})
	errs := GetValidationErrors(err)

	assert.Len(t, errs, 1)
	assert.Equal(t, "amount", errs[0].Field)
	assert.Equal(t, "positive_amount", errs[0].Tag)
	assert.NotEmpty(t, errs[0].Message)
}
