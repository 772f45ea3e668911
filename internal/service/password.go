package service

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/sethvargo/go-password/password"
	"golang.org/x/crypto/bcrypt"
)

const (
	upperChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerChars  = "abcdefghijklmnopqrstuvwxyz"
	digitChars  = "0123456789"
	symbolChars = "!@#$%^&*()_+-=[]{}|;:,.<>?"

	minPasswordLength   = 20
	maxPasswordLength   = 25
	passwordDigits      = 3
	passwordSymbols     = 3
	maxPasswordAttempts = 10
)

var ErrHashingFailed = errors.New("failed to hash password")

var passwordGenerator = mustPasswordGenerator()

func mustPasswordGenerator() *password.Generator {
	g, err := password.NewGenerator(&password.GeneratorInput{
		LowerLetters: lowerChars,
		UpperLetters: upperChars,
		Digits:       digitChars,
		Symbols:      symbolChars,
	})
	if err != nil {
		panic(fmt.Sprintf("password generator: %v", err))
	}
	return g
}

// GeneratePassword returns a random password of 20 to 25 characters holding
// at least one upper case letter, lower case letter, digit and symbol.
func GeneratePassword() (string, error) {
	extra, err := randIndex(maxPasswordLength - minPasswordLength + 1)
	if err != nil {
		return "", err
	}
	length := minPasswordLength + extra

	// Letters are drawn from both cases at once, so retry the rare draw
	// that misses one of them.
	for attempt := 0; attempt < maxPasswordAttempts; attempt++ {
		p, err := passwordGenerator.Generate(length, passwordDigits, passwordSymbols, false, true)
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		if strings.ContainsAny(p, upperChars) && strings.ContainsAny(p, lowerChars) {
			return p, nil
		}
	}
	return "", errors.New("generate password: letter classes not satisfied")
}

func randIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("read random: %w", err)
	}
	return int(v.Int64()), nil
}

// PasswordStorage converts issued passwords to their stored form and checks
// login attempts against it.
type PasswordStorage interface {
	Seal(password string) (string, error)
	Match(stored, given string) bool
}

// NewPasswordStorage returns the storage for mode "plain" or "bcrypt".
// Plain storage keeps the issued password as-is, which is the product's
// documented behavior.
func NewPasswordStorage(mode string) (PasswordStorage, error) {
	switch mode {
	case "", "plain":
		return plainPasswords{}, nil
	case "bcrypt":
		return bcryptPasswords{cost: bcrypt.DefaultCost}, nil
	default:
		return nil, fmt.Errorf("unknown password storage %q", mode)
	}
}

type plainPasswords struct{}

func (plainPasswords) Seal(password string) (string, error) { return password, nil }

func (plainPasswords) Match(stored, given string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1
}

type bcryptPasswords struct {
	cost int
}

func (b bcryptPasswords) Seal(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", ErrHashingFailed
	}
	return string(hashed), nil
}

func (bcryptPasswords) Match(stored, given string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(given)) == nil
}
