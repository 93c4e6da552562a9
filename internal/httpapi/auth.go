package httpapi

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/sha3"
)

// Claims is the JWT payload issued to an authenticated admin session.
type Claims struct {
	Subject string `json:"sub"`
	jwt.RegisteredClaims
}

// AuthConfig bundles the three auth mechanisms §6/§10.4 name: a static
// bearer-token set (service-to-service callers), JWT sessions (admin UI
// logins), and wallet nonce-challenge/signature (an owner proving control of
// a wallet without ever handing over a private key).
type AuthConfig struct {
	BearerTokens []string
	JWTSecret    []byte
	JWTExpiry    time.Duration
}

type authenticator struct {
	bearerTokens map[string]struct{}
	jwtSecret    []byte
	jwtExpiry    time.Duration

	nonceMu sync.Mutex
	nonces  map[string]nonceEntry // wallet address -> pending challenge
}

type nonceEntry struct {
	value     string
	expiresAt time.Time
}

const nonceTTL = 5 * time.Minute

func newAuthenticator(cfg AuthConfig) *authenticator {
	set := make(map[string]struct{}, len(cfg.BearerTokens))
	for _, t := range cfg.BearerTokens {
		if t != "" {
			set[t] = struct{}{}
		}
	}
	expiry := cfg.JWTExpiry
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &authenticator{
		bearerTokens: set,
		jwtSecret:    cfg.JWTSecret,
		jwtExpiry:    expiry,
		nonces:       make(map[string]nonceEntry),
	}
}

// IssueNonce generates a fresh challenge for wallet, to be signed and posted
// back to a /auth/wallet/verify-style endpoint.
func (a *authenticator) IssueNonce(wallet string) string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	nonce := hex.EncodeToString(buf)
	a.nonceMu.Lock()
	a.nonces[wallet] = nonceEntry{value: nonce, expiresAt: time.Now().Add(nonceTTL)}
	a.nonceMu.Unlock()
	return nonce
}

// VerifyWalletSignature checks sig (base64) over the outstanding nonce for
// wallet, against pubKey (raw ed25519 public key bytes), then consumes the
// nonce so it cannot be replayed.
func (a *authenticator) VerifyWalletSignature(wallet string, pubKey ed25519.PublicKey, sigB64 string) (string, error) {
	a.nonceMu.Lock()
	entry, ok := a.nonces[wallet]
	if ok {
		delete(a.nonces, wallet)
	}
	a.nonceMu.Unlock()

	if !ok {
		return "", fmt.Errorf("httpapi: no outstanding challenge for wallet")
	}
	if time.Now().After(entry.expiresAt) {
		return "", fmt.Errorf("httpapi: challenge expired")
	}
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return "", fmt.Errorf("httpapi: malformed signature encoding")
	}
	if !ed25519.Verify(pubKey, []byte(entry.value), sig) {
		return "", fmt.Errorf("httpapi: signature does not verify")
	}
	return a.issueJWT(wallet)
}

func (a *authenticator) issueJWT(subject string) (string, error) {
	if len(a.jwtSecret) < 32 {
		return "", fmt.Errorf("httpapi: JWT secret must be at least 32 bytes")
	}
	claims := &Claims{
		Subject: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(a.jwtExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "flywheel",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtSecret)
}

func (a *authenticator) validateJWT(raw string) (string, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return a.jwtSecret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("httpapi: invalid token")
	}
	return claims.Subject, nil
}

// Middleware accepts an X-API-Key bearer token from the static set, or a
// Bearer JWT, and rejects everything else. On success it sets the resolved
// subject on the request header for downstream handlers, matching the
// teacher's own header-propagation idiom.
func (a *authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key := r.Header.Get("X-API-Key"); key != "" {
			if a.acceptBearer(key) {
				r.Header.Set("X-Auth-Subject", "service:"+shortHash(key))
				next.ServeHTTP(w, r)
				return
			}
		}

		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			writeUnauthorized(w, "missing or malformed authorization header")
			return
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")

		if a.acceptBearer(token) {
			r.Header.Set("X-Auth-Subject", "service:"+shortHash(token))
			next.ServeHTTP(w, r)
			return
		}

		subject, err := a.validateJWT(token)
		if err != nil {
			writeUnauthorized(w, "invalid token")
			return
		}
		r.Header.Set("X-Auth-Subject", subject)
		next.ServeHTTP(w, r)
	})
}

func (a *authenticator) acceptBearer(token string) bool {
	for known := range a.bearerTokens {
		if subtle.ConstantTimeCompare([]byte(known), []byte(token)) == 1 {
			return true
		}
	}
	return false
}

// shortHash returns a short, irreversible identifier for a bearer token
// suitable for audit logs, never the token material itself.
func shortHash(s string) string {
	sum := sha3.Sum256([]byte(s))
	return hex.EncodeToString(sum[:4])
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
