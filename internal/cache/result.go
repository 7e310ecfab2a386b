// Package cache stores directive results in two tiers: bounded in-memory
// LRUs and an optional persistent store.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/staleness"
	"github.com/starford/ansuz/internal/value"
)

// ErrInvalidResult is returned for a result holding both or neither of a
// value and an error.
var ErrInvalidResult = errors.New("cache: result must hold exactly one of value or error")

// Result is a cached directive outcome.
type Result struct {
	Value       value.Value
	Err         *apperr.Error
	Fingerprint staleness.Fingerprint
	CachedAt    time.Time
}

// Validate checks the value/error invariant.
func (r *Result) Validate() error {
	if r == nil || (r.Value == nil) == (r.Err == nil) {
		return ErrInvalidResult
	}
	return nil
}

// Clone returns a deep copy of r.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	c := &Result{CachedAt: r.CachedAt, Fingerprint: r.Fingerprint}
	if r.Value != nil {
		c.Value = value.Clone(r.Value)
	}
	c.Err = r.Err.Clone()
	c.Fingerprint.Deps = r.Fingerprint.Deps.Clone()
	c.Fingerprint.Content = maps.Clone(r.Fingerprint.Content)
	c.Fingerprint.Missing = append([]string(nil), r.Fingerprint.Missing...)
	return c
}

// Entry is the persisted form of a Result.
type Entry struct {
	Result *value.Wire  `json:"result,omitempty"`
	Error  *apperr.Wire `json:"error,omitempty"`
	staleness.Fingerprint
	CachedAt time.Time `json:"cached_at"`
}

// EncodeEntry serializes r for the persistent tier.
func EncodeEntry(r *Result) ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	e := Entry{Fingerprint: r.Fingerprint, CachedAt: r.CachedAt}
	if r.Value != nil {
		w, err := value.Encode(r.Value)
		if err != nil {
			return nil, fmt.Errorf("cache: encode value: %w", err)
		}
		e.Result = &w
	} else {
		w := r.Err.Encode()
		e.Error = &w
	}
	return json.Marshal(e)
}

// DecodeEntry parses data written by EncodeEntry.
func DecodeEntry(data []byte) (*Result, error) {
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("cache: decode entry: %w", err)
	}
	r := &Result{Fingerprint: e.Fingerprint, CachedAt: e.CachedAt}
	if e.Result != nil {
		v, err := value.Decode(*e.Result)
		if err != nil {
			return nil, fmt.Errorf("cache: decode value: %w", err)
		}
		r.Value = v
	}
	if e.Error != nil {
		r.Err = apperr.Decode(*e.Error)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}
