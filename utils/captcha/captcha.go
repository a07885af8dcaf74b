package captcha

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/enigmarium/backend/utils/crypto"
)

var (
	// ErrUnavailable means the signing key has not been initialized yet
	ErrUnavailable = errors.New("captcha engine not available")
	// ErrMalformed means the payload could not be decoded or parsed
	ErrMalformed = errors.New("malformed captcha payload")
	// ErrUnknownAlgorithm means the configured hash algorithm is unsupported
	ErrUnknownAlgorithm = errors.New("unknown captcha algorithm")
)

const (
	// ChallengeWindow is how long a challenge stays verifiable
	ChallengeWindow = 1 * time.Minute
	// NumberMin and NumberMax bound the random challenge number [min, max)
	NumberMin = 1000
	NumberMax = 100000

	keyLength  = 32
	saltRandom = 8 // random bytes in a generated salt
)

// Challenge is a self-contained proof-of-receipt puzzle. The server keeps no
// per-challenge state: anyone presenting a valid, unexpired, correctly
// signed payload proves they obtained it from this server within the window.
type Challenge struct {
	Algorithm string `json:"algorithm"`
	Challenge string `json:"challenge"`
	Salt      string `json:"salt"`
	Signature string `json:"signature"`
}

// Payload is the base64-encoded JSON envelope a client submits for
// verification: the challenge fields plus the number it solved for.
type Payload struct {
	Algorithm string `json:"algorithm"`
	Challenge string `json:"challenge"`
	Salt      string `json:"salt"`
	Signature string `json:"signature"`
	Number    int    `json:"number"`
}

// Engine generates and verifies challenges with a process-wide symmetric
// key. The key is generated once at startup and never mutated afterwards.
type Engine struct {
	algorithm string
	key       []byte
}

// NewEngine generates the signing key and returns a ready engine. Key
// generation failure is a hard startup error, not a per-request condition.
func NewEngine(algorithm string) (*Engine, error) {
	if _, err := hasherFor(algorithm); err != nil {
		return nil, err
	}

	key, err := crypto.RandomKey(keyLength)
	if err != nil {
		return nil, err
	}

	return &Engine{algorithm: algorithm, key: key}, nil
}

// Create builds a challenge. An empty salt gets a fresh one embedding an
// expiry one minute ahead; a zero number gets a random one in
// [NumberMin, NumberMax).
func (e *Engine) Create(salt string, number int) (*Challenge, error) {
	if e == nil || len(e.key) == 0 {
		return nil, ErrUnavailable
	}

	newHash, err := hasherFor(e.algorithm)
	if err != nil {
		return nil, err
	}

	if salt == "" {
		salt, err = newSalt()
		if err != nil {
			return nil, err
		}
	}
	if number == 0 {
		number, err = randomNumber()
		if err != nil {
			return nil, err
		}
	}

	h := newHash()
	h.Write([]byte(salt + strconv.Itoa(number)))
	challenge := hex.EncodeToString(h.Sum(nil))

	mac := hmac.New(newHash, e.key)
	mac.Write([]byte(challenge))
	signature := hex.EncodeToString(mac.Sum(nil))

	return &Challenge{
		Algorithm: e.algorithm,
		Challenge: challenge,
		Salt:      salt,
		Signature: signature,
	}, nil
}

// Verify checks a base64-encoded JSON payload. It returns ErrMalformed when
// the envelope cannot be decoded, false when the embedded expiry has passed
// or any field differs from the recomputed challenge, and true otherwise.
func (e *Engine) Verify(encoded string) (bool, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return false, ErrMalformed
	}

	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return false, ErrMalformed
	}

	expiry, err := saltExpiry(payload.Salt)
	if err != nil {
		return false, ErrMalformed
	}
	if time.Now().After(expiry) {
		return false, nil
	}

	expected, err := e.Create(payload.Salt, payload.Number)
	if err != nil {
		return false, err
	}

	if payload.Algorithm != expected.Algorithm ||
		payload.Challenge != expected.Challenge ||
		payload.Salt != expected.Salt ||
		!hmac.Equal([]byte(payload.Signature), []byte(expected.Signature)) {
		return false, nil
	}

	return true, nil
}

// newSalt builds "<unixExpiry>.<randomhex>" so the expiry travels inside the
// challenge instead of living in server state
func newSalt() (string, error) {
	random, err := crypto.RandomHex(saltRandom)
	if err != nil {
		return "", err
	}
	expiry := time.Now().Add(ChallengeWindow).Unix()
	return fmt.Sprintf("%d.%s", expiry, random), nil
}

// saltExpiry extracts the expiry timestamp embedded in a salt
func saltExpiry(salt string) (time.Time, error) {
	parts := strings.SplitN(salt, ".", 2)
	if len(parts) != 2 {
		return time.Time{}, ErrMalformed
	}
	unix, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}, ErrMalformed
	}
	return time.Unix(unix, 0), nil
}

func randomNumber() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(NumberMax-NumberMin))
	if err != nil {
		return 0, err
	}
	return NumberMin + int(n.Int64()), nil
}

func hasherFor(algorithm string) (func() hash.Hash, error) {
	switch algorithm {
	case "sha256":
		return sha256.New, nil
	case "sha512":
		return sha512.New, nil
	default:
		return nil, ErrUnknownAlgorithm
	}
}
