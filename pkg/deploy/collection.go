package deploy

// ResourceCollection is one page of a collection listing.
type ResourceCollection[T any] struct {
	ItemType       string `json:"ItemType,omitempty"`
	TotalResults   int    `json:"TotalResults"`
	ItemsPerPage   int    `json:"ItemsPerPage"`
	NumberOfPages  int    `json:"NumberOfPages,omitempty"`
	LastPageNumber int    `json:"LastPageNumber,omitempty"`
	Items          []T    `json:"Items"`
	Links          Links  `json:"Links,omitempty"`
}

// NextLink returns the link to the following page, if any.
func (c *ResourceCollection[T]) NextLink() (string, bool) {
	if c == nil {
		return "", false
	}

	return c.Links.Href(RelPageNext)
}

// HasNext reports whether another page follows this one.
func (c *ResourceCollection[T]) HasNext() bool {
	_, ok := c.NextLink()

	return ok
}
