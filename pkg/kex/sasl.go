package kex

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"hash"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// saslMechanismName returns the wire name Kafka expects in
// SASLHandshakeRequest.Mechanism, mirroring the teacher's
// brokerCxn.sasl/mechanism.Name() usage.
func saslMechanismName(m SASLMechanism) string {
	switch m {
	case SASLPlain:
		return "PLAIN"
	case SASLScramSHA256:
		return "SCRAM-SHA-256"
	case SASLScramSHA512:
		return "SCRAM-SHA-512"
	default:
		return ""
	}
}

// saslPlainAuthBytes builds the PLAIN mechanism's SASLAuthenticateRequest
// payload: authzid \0 authcid \0 passwd.
func saslPlainAuthBytes(user, pass string) []byte {
	return []byte("\x00" + user + "\x00" + pass)
}

func scramHash(m SASLMechanism) func() hash.Hash {
	if m == SASLScramSHA512 {
		return sha512.New
	}
	return sha256.New
}

// scramNonce generates the client nonce for a SCRAM client-first-message.
func scramNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawStdEncoding.EncodeToString(buf), nil
}

// scramClientFirstMessage is the gs2-header-prefixed first message sent as
// the initial SASLAuthenticateRequest payload (RFC 5802 client-first-message,
// no channel binding).
func scramClientFirstMessage(user, nonce string) (full, bare string) {
	bare = fmt.Sprintf("n=%s,r=%s", user, nonce)
	return "n,," + bare, bare
}

// parseScramServerFirst extracts nonce, salt and iteration count from a
// server-first-message ("r=...,s=...,i=...").
func parseScramServerFirst(msg []byte) (nonce string, salt []byte, iterations int, err error) {
	for _, field := range strings.Split(string(msg), ",") {
		if len(field) < 2 || field[1] != '=' {
			continue
		}
		switch field[0] {
		case 'r':
			nonce = field[2:]
		case 's':
			salt, err = base64.StdEncoding.DecodeString(field[2:])
			if err != nil {
				return "", nil, 0, err
			}
		case 'i':
			if _, serr := fmt.Sscanf(field[2:], "%d", &iterations); serr != nil {
				return "", nil, 0, serr
			}
		}
	}
	if nonce == "" || salt == nil || iterations == 0 {
		return "", nil, 0, ErrSASLHandshake
	}
	return nonce, salt, iterations, nil
}

// scramClientKey derives the SCRAM client key from the salted password,
// grounded on the teacher's go.mod dependency on golang.org/x/crypto (the
// teacher wires it for SASL; this is where it gets exercised in this
// module).
func scramClientKey(mechanism SASLMechanism, pass, salt []byte, iterations int) []byte {
	newHash := scramHash(mechanism)
	keyLen := newHash().Size()
	saltedPassword := pbkdf2.Key(pass, salt, iterations, keyLen, newHash)

	mac := hmac.New(newHash, saltedPassword)
	mac.Write([]byte("Client Key"))
	return mac.Sum(nil)
}

func scramHMAC(mechanism SASLMechanism, key, msg []byte) []byte {
	mac := hmac.New(scramHash(mechanism), key)
	mac.Write(msg)
	return mac.Sum(nil)
}

func scramHashBytes(mechanism SASLMechanism, b []byte) []byte {
	h := scramHash(mechanism)()
	h.Write(b)
	return h.Sum(nil)
}

func scramXOR(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// scramClientFinalMessage computes the client-final-message ("c=...,r=...,
// p=...") per RFC 5802 §3, given the client-first-message-bare, the
// server-first-message, and the derived client key.
func scramClientFinalMessage(mechanism SASLMechanism, clientKey []byte, clientFirstBare, serverFirst string, serverNonce string) string {
	storedKey := scramHashBytes(mechanism, clientKey)
	withoutProof := "c=biws,r=" + serverNonce
	authMessage := clientFirstBare + "," + serverFirst + "," + withoutProof
	clientSignature := scramHMAC(mechanism, storedKey, []byte(authMessage))
	clientProof := scramXOR(clientKey, clientSignature)
	return withoutProof + ",p=" + base64.StdEncoding.EncodeToString(clientProof)
}
