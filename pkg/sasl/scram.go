package sasl

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"hash"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// Scram is the SCRAM-SHA-256 / SCRAM-SHA-512 SASL mechanism family
// (RFC 5802), the mechanism this module offers as the default
// "callback" backend behind sasl = {callback, "scram256"/"scram512",
// opts}: it is not a wire special case like PLAIN, but a full
// challenge/response exchange over SASLAuthenticate.
type Scram struct {
	User, Pass string
	// SHA512 selects SCRAM-SHA-512; otherwise SCRAM-SHA-256 is used.
	SHA512 bool
}

func (s Scram) Name() string {
	if s.SHA512 {
		return "SCRAM-SHA-512"
	}
	return "SCRAM-SHA-256"
}

func (s Scram) newHash() func() hash.Hash {
	if s.SHA512 {
		return sha512.New
	}
	return sha256.New
}

func (s Scram) Authenticate(_ context.Context, _ string) (Session, []byte, error) {
	nonce, err := randNonce()
	if err != nil {
		return nil, nil, err
	}
	sess := &scramSession{
		mechanism: s,
		user:      saslPrep(s.User),
		pass:      s.Pass,
		nonce:     nonce,
	}
	sess.clientFirstBare = fmt.Sprintf("n=%s,r=%s", sess.user, sess.nonce)
	return sess, []byte("n,," + sess.clientFirstBare), nil
}

type scramSession struct {
	mechanism       Scram
	user, pass      string
	nonce           string
	clientFirstBare string
	step            int

	expectedServerSignature []byte
}

func (s *scramSession) Challenge(challenge []byte) (bool, []byte, error) {
	s.step++
	switch s.step {
	case 1:
		return s.clientFinal(challenge)
	case 2:
		return true, nil, s.verifyServerFinal(challenge)
	default:
		return true, nil, fmt.Errorf("sasl: unexpected scram round %d", s.step)
	}
}

func (s *scramSession) clientFinal(serverFirst []byte) (bool, []byte, error) {
	fields := parseScram(string(serverFirst))
	serverNonce := fields["r"]
	saltB64 := fields["s"]
	itersStr := fields["i"]
	if serverNonce == "" || saltB64 == "" || itersStr == "" {
		return false, nil, fmt.Errorf("sasl: malformed scram server-first message")
	}
	if !strings.HasPrefix(serverNonce, s.nonce) {
		return false, nil, fmt.Errorf("sasl: scram server nonce does not extend client nonce")
	}
	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		return false, nil, fmt.Errorf("sasl: bad scram salt: %w", err)
	}
	iters, err := strconv.Atoi(itersStr)
	if err != nil || iters <= 0 {
		return false, nil, fmt.Errorf("sasl: bad scram iteration count")
	}

	h := s.mechanism.newHash()
	saltedPassword := pbkdf2.Key([]byte(s.pass), salt, iters, h().Size(), h)
	clientKey := hmacOf(h, saltedPassword, []byte("Client Key"))
	storedKey := hashOf(h, clientKey)

	clientFinalNoProof := "c=biws,r=" + serverNonce
	authMessage := s.clientFirstBare + "," + string(serverFirst) + "," + clientFinalNoProof

	clientSignature := hmacOf(h, storedKey, []byte(authMessage))
	clientProof := xorBytes(clientKey, clientSignature)

	serverKey := hmacOf(h, saltedPassword, []byte("Server Key"))
	s.expectedServerSignature = hmacOf(h, serverKey, []byte(authMessage))

	final := clientFinalNoProof + ",p=" + base64.StdEncoding.EncodeToString(clientProof)
	return false, []byte(final), nil
}

func (s *scramSession) verifyServerFinal(serverFinal []byte) error {
	fields := parseScram(string(serverFinal))
	if e, ok := fields["e"]; ok {
		return fmt.Errorf("sasl: scram server rejected authentication: %s", e)
	}
	gotB64, ok := fields["v"]
	if !ok {
		return fmt.Errorf("sasl: malformed scram server-final message")
	}
	got, err := base64.StdEncoding.DecodeString(gotB64)
	if err != nil {
		return fmt.Errorf("sasl: bad scram server signature: %w", err)
	}
	if !hmac.Equal(got, s.expectedServerSignature) {
		return fmt.Errorf("sasl: scram server signature mismatch")
	}
	return nil
}

func hmacOf(h func() hash.Hash, key, data []byte) []byte {
	mac := hmac.New(h, key)
	mac.Write(data)
	return mac.Sum(nil)
}

func hashOf(h func() hash.Hash, data []byte) []byte {
	sum := h()
	sum.Write(data)
	return sum.Sum(nil)
}

func xorBytes(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range out {
		out[i] = a[i] ^ b[i]
	}
	return out
}

func parseScram(s string) map[string]string {
	fields := map[string]string{}
	for _, part := range strings.Split(s, ",") {
		if eq := strings.IndexByte(part, '='); eq > 0 {
			fields[part[:eq]] = part[eq+1:]
		}
	}
	return fields
}

// saslPrep applies the minimal escaping RFC 5802 requires of the
// username field (',' and '=' are reserved in the comma-separated
// attribute-value syntax).
func saslPrep(user string) string {
	user = strings.ReplaceAll(user, "=", "=3D")
	user = strings.ReplaceAll(user, ",", "=2C")
	return user
}

func randNonce() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawStdEncoding.EncodeToString(buf), nil
}
