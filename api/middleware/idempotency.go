package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront/api/responses"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront/pkg/redis"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	replayedHeader       = "Idempotent-Replayed"

	idempotencyTTL         = 24 * time.Hour
	checkoutIdempotencyTTL = 7 * 24 * time.Hour
)

type idempotencyRule struct {
	ttl time.Duration
	// required rejects requests without a key instead of passing them through.
	required bool
}

// idempotencyRules is keyed by "METHOD /path".
var idempotencyRules = map[string]idempotencyRule{
	http.MethodPost + " /api/v1/cart":      {ttl: idempotencyTTL},
	http.MethodPost + " /api/v1/basket":    {ttl: idempotencyTTL},
	http.MethodPost + " /api/v1/addresses": {ttl: idempotencyTTL},
	http.MethodPost + " /api/v1/checkout":  {ttl: checkoutIdempotencyTTL, required: true},
}

// ruleFor matches on the request path rather than the chi pattern, which is
// incomplete while a mounted subrouter's middleware runs.
func ruleFor(method, path string) (idempotencyRule, bool) {
	path = strings.TrimSuffix(path, "/")
	if path == "" {
		path = "/"
	}
	rule, ok := idempotencyRules[method+" "+path]
	return rule, ok
}

// storedResponse is what a replay writes back. Body is base64 in JSON.
type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
	Fingerprint string `json:"fingerprint"`
}

func (s storedResponse) replay(w http.ResponseWriter) {
	if s.ContentType != "" {
		w.Header().Set("Content-Type", s.ContentType)
	}
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(s.Status)
	_, _ = w.Write(s.Body)
}

// Idempotency replays the stored response when a mutating request is sent
// again with the same Idempotency-Key. Checkout requires the header; the
// other covered routes only dedupe when the client sends one. checkoutTTL
// overrides the retention of checkout records when positive. A nil store
// disables the middleware.
func Idempotency(store pkgredis.IdempotencyStore, checkoutTTL time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		g := &idempotencyGuard{store: store, checkoutTTL: checkoutTTL, logg: logg, next: next}
		return http.HandlerFunc(g.serve)
	}
}

type idempotencyGuard struct {
	store       pkgredis.IdempotencyStore
	checkoutTTL time.Duration
	logg        *logger.Logger
	next        http.Handler
}

func (g *idempotencyGuard) serve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rule, ok := ruleFor(r.Method, r.URL.Path)
	if !ok {
		g.next.ServeHTTP(w, r)
		return
	}

	clientKey := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	switch {
	case clientKey == "" && rule.required:
		responses.WriteError(ctx, g.logg, w, pkgerrors.New(pkgerrors.CodeValidation, IdempotencyKeyHeader+" header required"))
		return
	case clientKey == "":
		g.next.ServeHTTP(w, r)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		responses.WriteError(ctx, g.logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable request body"))
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	sum := fingerprint(body)
	key := g.store.IdempotencyKey(SubjectFromContext(ctx)+"|"+r.Method+"|"+r.URL.Path, clientKey)

	stored, found, err := g.lookup(ctx, key)
	if err != nil {
		responses.WriteError(ctx, g.logg, w, err)
		return
	}
	if found {
		if stored.Fingerprint != sum {
			responses.WriteError(ctx, g.logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
			return
		}
		stored.replay(w)
		return
	}

	capture := &bodyRecorder{statusRecorder: statusRecorder{ResponseWriter: w}}
	g.next.ServeHTTP(capture, r)

	status := capture.status
	if status == 0 {
		status = http.StatusOK
	}
	// Server failures stay unrecorded so the same key can retry.
	if status >= http.StatusInternalServerError {
		return
	}

	ttl := rule.ttl
	if rule.required && g.checkoutTTL > 0 {
		ttl = g.checkoutTTL
	}
	g.save(ctx, key, storedResponse{
		Status:      status,
		ContentType: capture.Header().Get("Content-Type"),
		Body:        capture.body.Bytes(),
		Fingerprint: sum,
	}, ttl)
}

func (g *idempotencyGuard) lookup(ctx context.Context, key string) (storedResponse, bool, error) {
	raw, err := g.store.Get(ctx, key)
	if errors.Is(err, redis.Nil) || (err == nil && raw == "") {
		return storedResponse{}, false, nil
	}
	if err != nil {
		return storedResponse{}, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	}
	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return storedResponse{}, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode idempotency record")
	}
	return stored, true, nil
}

// save uses SetNX so a concurrent duplicate never overwrites the first answer.
func (g *idempotencyGuard) save(ctx context.Context, key string, stored storedResponse, ttl time.Duration) {
	payload, err := json.Marshal(stored)
	if err == nil {
		_, err = g.store.SetNX(ctx, key, string(payload), ttl)
	}
	if err != nil && g.logg != nil {
		g.logg.Error(ctx, "persist idempotency record", err)
	}
}

func fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

type bodyRecorder struct {
	statusRecorder
	body bytes.Buffer
}

func (b *bodyRecorder) Write(p []byte) (int, error) {
	b.body.Write(p)
	return b.statusRecorder.Write(p)
}
