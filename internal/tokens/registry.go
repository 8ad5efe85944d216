// Package tokens implements the token registry spec.md §4.3 describes: a
// single JSON object, `_system/tokens.json`, holding hashed bearer tokens
// with scoped permissions. Every mutation goes through the registry lock
// (internal/locks) and rewrites the whole blob; validation reads without
// locking and tolerates a stale snapshot.
package tokens

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/chrlesur/live-memory/internal/locks"
	"github.com/chrlesur/live-memory/internal/objectstore"
	"github.com/chrlesur/live-memory/pkg/logger"
)

// RegistryKey is the object holding the whole token list.
const RegistryKey = "_system/tokens.json"

// AllPermissions is the permission vocabulary spec.md §4.3 allows.
var AllPermissions = []string{"read", "write", "admin"}

// cleartextPrefix and cleartextRandomChars define the token format:
// "lm_" + 43 URL-safe random characters.
const (
	cleartextPrefix      = "lm_"
	cleartextRandomChars = 43
)

// Record is one entry in the registry. Hash is the persisted identity;
// cleartext is returned to the caller exactly once, at creation time, and
// never stored.
type Record struct {
	Hash        string     `json:"hash"`
	Name        string     `json:"name"`
	Permissions []string   `json:"permissions"`
	SpaceIDs    []string   `json:"space_ids"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Revoked     bool       `json:"revoked"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
}

// displayHashLen is how much of the hash list() exposes; the full hash
// (and the cleartext) are never returned by anything but create().
const displayHashLen = 20

// DisplayHash truncates r.Hash for listing responses.
func (r Record) DisplayHash() string {
	if len(r.Hash) <= displayHashLen {
		return r.Hash
	}
	return r.Hash[:displayHashLen]
}

// HasPermission reports whether r grants perm.
func (r Record) HasPermission(perm string) bool {
	for _, p := range r.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// AllowsSpace reports whether r's scope includes spaceID. An empty
// SpaceIDs list means "all spaces".
func (r Record) AllowsSpace(spaceID string) bool {
	if len(r.SpaceIDs) == 0 {
		return true
	}
	for _, s := range r.SpaceIDs {
		if s == spaceID {
			return true
		}
	}
	return false
}

func (r Record) expired(now time.Time) bool {
	return r.ExpiresAt != nil && r.ExpiresAt.Before(now)
}

type registryDoc struct {
	Tokens []Record `json:"tokens"`
}

// Registry is the token store, backed by one JSON object in objectstore.
type Registry struct {
	store objectstore.Store
	locks *locks.Manager
}

// NewRegistry builds a Registry over store, coordinated by mgr's
// token-registry lock.
func NewRegistry(store objectstore.Store, mgr *locks.Manager) *Registry {
	return &Registry{store: store, locks: mgr}
}

func (r *Registry) load(ctx context.Context) (registryDoc, error) {
	var doc registryDoc
	ok, err := r.store.GetJSON(ctx, RegistryKey, &doc)
	if err != nil {
		return registryDoc{}, fmt.Errorf("tokens: load registry: %w", err)
	}
	if !ok {
		return registryDoc{Tokens: []Record{}}, nil
	}
	return doc, nil
}

func (r *Registry) save(ctx context.Context, doc registryDoc) error {
	if err := r.store.PutJSON(ctx, RegistryKey, doc); err != nil {
		return fmt.Errorf("tokens: save registry: %w", err)
	}
	return nil
}

func generateCleartext() (string, error) {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
	buf := make([]byte, cleartextRandomChars)
	raw := make([]byte, cleartextRandomChars)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("tokens: generating random bytes: %w", err)
	}
	for i, b := range raw {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return cleartextPrefix + string(buf), nil
}

// HashCleartext returns the sha256:<hex> literal stored for a cleartext
// token. Deliberately a fast, unsalted hash rather than a password-hashing
// KDF (see DESIGN.md) — the cleartext already carries 43 characters of
// CSPRNG entropy, so brute-forcing the hash is not the threat model; the
// registry needs O(1) exact-match lookup by hash.
func HashCleartext(cleartext string) string {
	sum := sha256.Sum256([]byte(cleartext))
	return "sha256:" + hex.EncodeToString(sum[:])
}

func splitCSV(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func validatePermissions(perms []string) error {
	for _, p := range perms {
		found := false
		for _, allowed := range AllPermissions {
			if p == allowed {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("tokens: invalid permission %q", p)
		}
	}
	return nil
}

// Create generates a new token, appends its record to the registry under
// the registry lock, and returns the record plus the cleartext (the only
// time the cleartext is ever surfaced).
func (r *Registry) Create(ctx context.Context, name, permissionsCSV, spaceIDsCSV string, ttlDays int) (Record, string, error) {
	permissions := splitCSV(permissionsCSV)
	if err := validatePermissions(permissions); err != nil {
		return Record{}, "", err
	}
	spaceIDs := splitCSV(spaceIDsCSV)

	cleartext, err := generateCleartext()
	if err != nil {
		return Record{}, "", err
	}
	hash := HashCleartext(cleartext)

	rec := Record{
		Hash:        hash,
		Name:        name,
		Permissions: permissions,
		SpaceIDs:    spaceIDs,
		CreatedAt:   time.Now().UTC(),
	}
	if ttlDays > 0 {
		exp := rec.CreatedAt.Add(time.Duration(ttlDays) * 24 * time.Hour)
		rec.ExpiresAt = &exp
	}

	r.locks.LockTokenRegistry()
	defer r.locks.UnlockTokenRegistry()

	doc, err := r.load(ctx)
	if err != nil {
		return Record{}, "", err
	}
	doc.Tokens = append(doc.Tokens, rec)
	if err := r.save(ctx, doc); err != nil {
		return Record{}, "", err
	}

	logger.FromContext(ctx).Info("token created", "name", name, "hash", rec.DisplayHash())
	return rec, cleartext, nil
}

// List returns every record. Hashes are truncated for display; cleartext
// is never stored so there is nothing to leak here.
func (r *Registry) List(ctx context.Context) ([]Record, error) {
	doc, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Tokens, nil
}

func findByHashOrPrefix(tokens []Record, hashOrPrefix string) int {
	for i, t := range tokens {
		if t.Hash == hashOrPrefix || strings.HasPrefix(t.Hash, hashOrPrefix) {
			return i
		}
	}
	return -1
}

// Revoke marks the first record whose hash matches or is prefixed by
// hashOrPrefix as revoked.
func (r *Registry) Revoke(ctx context.Context, hashOrPrefix string) (bool, error) {
	r.locks.LockTokenRegistry()
	defer r.locks.UnlockTokenRegistry()

	doc, err := r.load(ctx)
	if err != nil {
		return false, err
	}
	idx := findByHashOrPrefix(doc.Tokens, hashOrPrefix)
	if idx < 0 {
		return false, nil
	}
	doc.Tokens[idx].Revoked = true
	if err := r.save(ctx, doc); err != nil {
		return false, err
	}
	logger.FromContext(ctx).Info("token revoked", "hash", doc.Tokens[idx].DisplayHash())
	return true, nil
}

// Update partially updates the first matching record's permissions and/or
// space scope. A nil slice leaves the corresponding field untouched.
func (r *Registry) Update(ctx context.Context, hashOrPrefix string, permissions, spaceIDs []string) (Record, bool, error) {
	if permissions != nil {
		if err := validatePermissions(permissions); err != nil {
			return Record{}, false, err
		}
	}

	r.locks.LockTokenRegistry()
	defer r.locks.UnlockTokenRegistry()

	doc, err := r.load(ctx)
	if err != nil {
		return Record{}, false, err
	}
	idx := findByHashOrPrefix(doc.Tokens, hashOrPrefix)
	if idx < 0 {
		return Record{}, false, nil
	}
	if permissions != nil {
		doc.Tokens[idx].Permissions = permissions
	}
	if spaceIDs != nil {
		doc.Tokens[idx].SpaceIDs = spaceIDs
	}
	if err := r.save(ctx, doc); err != nil {
		return Record{}, false, err
	}
	logger.FromContext(ctx).Info("token updated", "hash", doc.Tokens[idx].DisplayHash())
	return doc.Tokens[idx], true, nil
}

// Validate recomputes the hash for cleartext, scans the registry, rejects
// revoked or expired records, and best-effort stamps LastUsedAt — a failed
// stamp attempt is logged and swallowed, never returned as an error
// (spec.md §9: do not introduce locking that would serialize every
// validation).
func (r *Registry) Validate(ctx context.Context, cleartext string) (Record, bool, error) {
	hash := HashCleartext(cleartext)
	doc, err := r.load(ctx)
	if err != nil {
		return Record{}, false, err
	}
	idx := -1
	for i, t := range doc.Tokens {
		if t.Hash == hash {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Record{}, false, nil
	}
	rec := doc.Tokens[idx]
	if rec.Revoked || rec.expired(time.Now().UTC()) {
		return Record{}, false, nil
	}

	r.stampLastUsed(ctx, hash)
	return rec, true, nil
}

// stampLastUsed best-effort updates last_used_at. Deliberately unguarded by
// the registry lock: validation must never block on a write lock another
// validation or an admin token operation holds, so a concurrent update can
// be lost here. Failures are logged, not propagated.
func (r *Registry) stampLastUsed(ctx context.Context, hash string) {
	doc, err := r.load(ctx)
	if err != nil {
		logger.FromContext(ctx).Warn("token last_used_at stamp failed", "error", err)
		return
	}
	for i, t := range doc.Tokens {
		if t.Hash == hash {
			now := time.Now().UTC()
			doc.Tokens[i].LastUsedAt = &now
			if err := r.save(ctx, doc); err != nil {
				logger.FromContext(ctx).Warn("token last_used_at stamp failed", "error", err)
			}
			return
		}
	}
}
