package services

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/relay-crm/core/internal/storage"
)

// TestProperty_SensitiveInfoEncryption checks that user passwords are only
// ever stored hashed and that the hash verifies the original value.
func TestProperty_SensitiveInfoEncryption(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	validPasswordGen := gen.SliceOfN(10, gen.AlphaChar()).Map(func(chars []rune) string {
		return string(chars)
	})

	wrongPasswordGen := gen.SliceOfN(8, gen.AlphaChar()).Map(func(chars []rune) string {
		return string(chars) + "wrong"
	})

	properties.Property("password_never_stored_as_plaintext", prop.ForAll(
		func(password string) bool {
			hashed, err := HashPassword(password)
			if err != nil {
				return false
			}
			if hashed == password {
				return false
			}
			// bcrypt hashes carry the $2 version prefix.
			return strings.HasPrefix(hashed, "$2")
		},
		validPasswordGen,
	))

	properties.Property("hashed_password_can_be_verified", prop.ForAll(
		func(password string) bool {
			hashed, err := HashPassword(password)
			if err != nil {
				return false
			}
			return ComparePassword(hashed, password)
		},
		validPasswordGen,
	))

	properties.Property("wrong_password_should_not_verify", prop.ForAll(
		func(password, wrongPassword string) bool {
			if password == wrongPassword {
				wrongPassword = wrongPassword + "X"
			}
			hashed, err := HashPassword(password)
			if err != nil {
				return false
			}
			return !ComparePassword(hashed, wrongPassword)
		},
		validPasswordGen,
		wrongPasswordGen,
	))

	properties.TestingRun(t)
}

// TestProperty_UserCreationEncryptsPassword checks the full service path.
func TestProperty_UserCreationEncryptsPassword(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	validPasswordGen := gen.SliceOfN(10, gen.AlphaChar()).Map(func(chars []rune) string {
		return string(chars)
	})

	validUsernameGen := gen.SliceOfN(8, gen.AlphaLowerChar()).Map(func(chars []rune) string {
		return string(chars)
	})

	properties.Property("user_creation_encrypts_password", prop.ForAll(
		func(username, password string) bool {
			db, cleanup := setupTestDB(t)
			defer cleanup()

			userService := NewUserService(db, storage.NewStore(t.TempDir()))

			createdUser, err := userService.CreateUser(username, password, "Test User")
			if err != nil {
				// Username collision or other creation error, skip
				return true
			}

			if createdUser.PasswordHash == password {
				return false
			}
			if !strings.HasPrefix(createdUser.PasswordHash, "$2") {
				return false
			}

			verifiedUser, err := userService.VerifyPassword(username, password)
			if err != nil {
				return false
			}
			return verifiedUser.ID == createdUser.ID
		},
		validUsernameGen,
		validPasswordGen,
	))

	properties.TestingRun(t)
}

// TestProperty_PasswordChangeEncryption checks that a password change
// invalidates the old credential and keeps the new one hashed.
func TestProperty_PasswordChangeEncryption(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	validPasswordGen := gen.SliceOfN(10, gen.AlphaChar()).Map(func(chars []rune) string {
		return string(chars)
	})

	validUsernameGen := gen.SliceOfN(8, gen.AlphaLowerChar()).Map(func(chars []rune) string {
		return string(chars)
	})

	properties.Property("password_change_maintains_encryption", prop.ForAll(
		func(username, oldPassword, newPassword string) bool {
			if oldPassword == newPassword {
				newPassword = newPassword + "X"
			}

			db, cleanup := setupTestDB(t)
			defer cleanup()

			userService := NewUserService(db, storage.NewStore(t.TempDir()))

			createdUser, err := userService.CreateUser(username, oldPassword, "Test User")
			if err != nil {
				return true
			}

			if err := userService.ChangePassword(createdUser.ID, oldPassword, newPassword); err != nil {
				return false
			}

			updatedUser, err := userService.GetUserByID(createdUser.ID)
			if err != nil {
				return false
			}
			if updatedUser.PasswordHash == newPassword {
				return false
			}
			if !strings.HasPrefix(updatedUser.PasswordHash, "$2") {
				return false
			}

			// Old credential is dead, new one works.
			if _, err := userService.VerifyPassword(username, oldPassword); err == nil {
				return false
			}
			if _, err := userService.VerifyPassword(username, newPassword); err != nil {
				return false
			}
			return true
		},
		validUsernameGen,
		validPasswordGen,
		validPasswordGen,
	))

	properties.TestingRun(t)
}
