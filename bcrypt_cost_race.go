//go:build race

package auth

import "golang.org/x/crypto/bcrypt"

// race builds are slow enough that cost 12 times out the store tests
func passwordHashCost() int {
	return bcrypt.DefaultCost
}
