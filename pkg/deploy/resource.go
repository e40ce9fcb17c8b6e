package deploy

import (
	"maps"
	"net/http"
	"time"
)

// Well-known link relations.
const (
	RelSelf     = "Self"
	RelPageNext = "Page.Next"
	RelPagePrev = "Page.Previous"
	RelPageAll  = "Page.All"
)

// Conditional request headers.
const (
	IfMatchHeader           = "If-Match"
	IfUnmodifiedSinceHeader = "If-Unmodified-Since"
)

// Links maps relation names to URI templates (RFC 6570).
type Links map[string]string

// Href returns the template registered for rel.
func (l Links) Href(rel string) (string, bool) {
	href, ok := l[rel]

	return href, ok && href != ""
}

// Clone returns a copy of the link set.
func (l Links) Clone() Links {
	return maps.Clone(l)
}

// Entity is the capability a type needs to be served by a repository: it
// exposes its identifier and the links it carries.
type Entity interface {
	GetID() string
	GetLinks() Links
}

// Resource holds the fields common to every server resource. Concrete types
// embed it.
type Resource struct {
	ID             string     `json:"Id,omitempty"             yaml:"Id,omitempty"`
	LastModifiedOn *time.Time `json:"LastModifiedOn,omitempty" yaml:"LastModifiedOn,omitempty"`
	LastModifiedBy string     `json:"LastModifiedBy,omitempty" yaml:"LastModifiedBy,omitempty"`
	Links          Links      `json:"Links,omitempty"          yaml:"Links,omitempty"`

	// ETag is the entity tag of the response the resource was decoded from.
	ETag string `json:"-" yaml:"-"`
}

// GetID returns the resource identifier.
func (r Resource) GetID() string {
	return r.ID
}

// GetLinks returns the resource's own link set.
func (r Resource) GetLinks() Links {
	return r.Links
}

// SelfLink returns the Self link, if the resource has one.
func (r Resource) SelfLink() (string, bool) {
	return r.Links.Href(RelSelf)
}

// Preconditions returns the conditional headers sent when the resource is
// modified. A response ETag is sent as If-Match; without one the
// modification time is sent as If-Unmodified-Since. A resource with neither
// is modified unconditionally.
func (r Resource) Preconditions() map[string]string {
	switch {
	case r.ETag != "":
		return map[string]string{IfMatchHeader: r.ETag}
	case r.LastModifiedOn != nil:
		return map[string]string{IfUnmodifiedSinceHeader: r.LastModifiedOn.UTC().Format(http.TimeFormat)}
	default:
		return nil
	}
}

// SetETag records the response entity tag.
func (r *Resource) SetETag(etag string) {
	r.ETag = etag
}

// Preconditioner is implemented by resources that carry optimistic
// concurrency state.
type Preconditioner interface {
	Preconditions() map[string]string
}

// ETagSetter is implemented by resources that record response entity tags.
type ETagSetter interface {
	SetETag(etag string)
}

// Result is the outcome for one slot of a batch lookup.
type Result[T any] struct {
	Identifier string
	Resource   *T
	Err        error
}

// Kind returns the outcome kind of the slot.
func (r Result[T]) Kind() OutcomeKind {
	return KindOf(r.Err)
}

// OK reports whether the slot resolved successfully.
func (r Result[T]) OK() bool {
	return r.Err == nil && r.Resource != nil
}
