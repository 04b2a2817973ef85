package domain

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateCar checks the record invariants: non-empty name and brand,
// non-negative purchase price.
func ValidateCar(c Car) error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid car: %w", err)
	}
	return nil
}

// ValidateWishlistItem checks that the item has a name and a non-negative
// expected price.
func ValidateWishlistItem(item WishlistItem) error {
	if err := validate.Struct(item); err != nil {
		return fmt.Errorf("invalid wishlist item: %w", err)
	}
	return nil
}

// ValidateSettings checks the currency code against the supported set.
func ValidateSettings(s Settings) error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

// ValidateGitCredentials requires the owner/repo/token trio in full.
func ValidateGitCredentials(c GitCredentials) error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid git credentials: %w", err)
	}
	return nil
}

// ValidateFirebaseCredentials checks presence and field formats (API key
// prefix, auth domain suffix) before any network call is made.
func ValidateFirebaseCredentials(c FirebaseCredentials) error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid firebase credentials: %w", err)
	}
	return nil
}
