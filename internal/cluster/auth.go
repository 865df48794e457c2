package cluster

import (
	"crypto/hmac"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"os"
	"strings"

	"distributed-cache/internal/cache"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/sha3"
)

// AuthHeader is the metadata header carrying the peer token on every
// inter-replica call.
const AuthHeader = "internal-auth"

// Token validity in microseconds.
const tokenValidityMicros = 1_000_000

// Recommended shared secret length for HMAC-SHA3-256.
const secretLen = 136

// PeerAuthenticator mints and verifies the short-lived bearer tokens that
// prove a caller is another replica of the same cluster.
//
// The scope of this protection is keeping other workloads in the network
// away from the peer RPC surface without relying on network isolation. It
// does not protect against replays within the validity window and makes no
// claim about message origin.
//
// Tokens are b64url(time || HMAC-SHA3-256(secret, time)) where time is the
// mint wall clock in big-endian microseconds.
type PeerAuthenticator struct {
	secret []byte
	log    *logrus.Entry
}

// NewPeerAuthenticator loads the base64-encoded shared secret from
// secretPath. When the file is unreadable or malformed an ephemeral random
// secret is substituted, which is only acceptable for tests: replicas with
// different secrets cannot exchange state.
func NewPeerAuthenticator(secretPath string) *PeerAuthenticator {
	log := logrus.WithField("component", "peer-auth")
	return &PeerAuthenticator{
		secret: loadSecret(secretPath, log),
		log:    log,
	}
}

func loadSecret(secretPath string, log *logrus.Entry) []byte {
	content, err := os.ReadFile(secretPath)
	if err == nil {
		secret, decodeErr := base64.StdEncoding.DecodeString(strings.TrimSpace(string(content)))
		if decodeErr == nil {
			log.Debugf("Peer auth secret is %d bytes long.", len(secret))
			return secret
		}
		log.Warnf("Failed to parse '%s': %v", secretPath, decodeErr)
	} else {
		log.Warnf("Failed to parse '%s': %v", secretPath, err)
	}
	log.Info("An ephemeral secret will be generated due to previous error. This is only acceptable for testing.")
	secret := make([]byte, secretLen)
	if _, err := rand.Read(secret); err != nil {
		// crypto/rand never fails on supported platforms.
		panic(err)
	}
	return secret
}

// CreateToken mints a fresh peer authentication token.
func (a *PeerAuthenticator) CreateToken() string {
	timeBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(timeBytes, cache.NowMicros())
	return base64.RawURLEncoding.EncodeToString(append(timeBytes, a.mac(timeBytes)...))
}

// IsTokenValid verifies the MAC in constant time and checks that the token
// was minted within the validity window.
func (a *PeerAuthenticator) IsTokenValid(token string) bool {
	timeAndMAC, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(timeAndMAC) < 8+sha3.New256().Size() {
		return false
	}
	if !hmac.Equal(a.mac(timeAndMAC[0:8]), timeAndMAC[8:]) {
		return false
	}
	tsMicros := binary.BigEndian.Uint64(timeAndMAC[0:8])
	return tsMicros > cache.NowMicros()-tokenValidityMicros
}

func (a *PeerAuthenticator) mac(message []byte) []byte {
	m := hmac.New(sha3.New256, a.secret)
	m.Write(message)
	return m.Sum(nil)
}
