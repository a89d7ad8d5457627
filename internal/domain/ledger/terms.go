package ledger

import (
	"slices"
	"sync"

	"github.com/rpggio/gradcredits/internal/domain/credit"
)

// Occupancy answers whether any entry references a term.
type Occupancy interface {
	HasTerm(term string) bool
}

// TermRegistry is the set of terms entries may reference. It is seeded with
// the canonical terms, which can never be removed. Term format is not checked
// here; callers validate at their boundary.
type TermRegistry struct {
	mu    sync.RWMutex
	terms map[string]struct{}
}

// NewTermRegistry returns a registry holding the canonical terms.
func NewTermRegistry() *TermRegistry {
	r := &TermRegistry{terms: make(map[string]struct{}, len(credit.CanonicalTerms))}
	for _, t := range credit.CanonicalTerms {
		r.terms[t] = struct{}{}
	}
	return r
}

// Add inserts term. It returns false if the term is already present.
func (r *TermRegistry) Add(term string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.terms[term]; ok {
		return false
	}
	r.terms[term] = struct{}{}
	return true
}

// Remove deletes term unless it is canonical or referenced by occupancy.
func (r *TermRegistry) Remove(term string, occupancy Occupancy) bool {
	return r.RemoveChecked(term, occupancy) == nil
}

// RemoveChecked is Remove with the rejection reason.
func (r *TermRegistry) RemoveChecked(term string, occupancy Occupancy) error {
	if credit.IsCanonicalTerm(term) {
		return ErrCanonicalTerm
	}
	if occupancy != nil && occupancy.HasTerm(term) {
		return ErrTermInUse
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.terms[term]; !ok {
		return ErrTermNotFound
	}
	delete(r.terms, term)
	return nil
}

// Contains reports whether term is registered.
func (r *TermRegistry) Contains(term string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.terms[term]
	return ok
}

// List returns the terms ordered by (year, half).
func (r *TermRegistry) List() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.terms))
	for t := range r.terms {
		out = append(out, t)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, credit.CompareTerms)
	return out
}

// Replace resets the registry to the canonical terms plus terms.
func (r *TermRegistry) Replace(terms []string) {
	next := make(map[string]struct{}, len(credit.CanonicalTerms)+len(terms))
	for _, t := range credit.CanonicalTerms {
		next[t] = struct{}{}
	}
	for _, t := range terms {
		if t != "" {
			next[t] = struct{}{}
		}
	}

	r.mu.Lock()
	r.terms = next
	r.mu.Unlock()
}
