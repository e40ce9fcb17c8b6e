package deploy

import "strconv"

// QueryParams expresses the common listing options. Parameters the
// collection template does not advertise are dropped during expansion.
type QueryParams struct {
	Skip        int
	Take        int
	PartialName string
	Name        string
	IDs         []string
	// Extra holds any other template variables, by name.
	Extra map[string]string
}

// NewQueryParams creates empty query parameters.
func NewQueryParams() *QueryParams {
	return &QueryParams{Extra: make(map[string]string)}
}

// WithSkip sets the number of items to skip.
func (q *QueryParams) WithSkip(skip int) *QueryParams {
	q.Skip = skip

	return q
}

// WithTake sets the page size.
func (q *QueryParams) WithTake(take int) *QueryParams {
	q.Take = take

	return q
}

// WithPartialName filters by a name fragment.
func (q *QueryParams) WithPartialName(name string) *QueryParams {
	q.PartialName = name

	return q
}

// WithName filters by exact name where the server supports it.
func (q *QueryParams) WithName(name string) *QueryParams {
	q.Name = name

	return q
}

// WithIDs restricts the listing to the given identifiers.
func (q *QueryParams) WithIDs(ids ...string) *QueryParams {
	q.IDs = append(q.IDs, ids...)

	return q
}

// WithParam sets an arbitrary template variable.
func (q *QueryParams) WithParam(name, value string) *QueryParams {
	if q.Extra == nil {
		q.Extra = make(map[string]string)
	}

	q.Extra[name] = value

	return q
}

// ToParameters converts the query into URI template variables.
func (q *QueryParams) ToParameters() map[string]interface{} {
	params := make(map[string]interface{})
	if q == nil {
		return params
	}

	for name, value := range q.Extra {
		params[name] = value
	}

	if q.Skip > 0 {
		params["skip"] = strconv.Itoa(q.Skip)
	}

	if q.Take > 0 {
		params["take"] = strconv.Itoa(q.Take)
	}

	if q.PartialName != "" {
		params["partialName"] = q.PartialName
	}

	if q.Name != "" {
		params["name"] = q.Name
	}

	if len(q.IDs) > 0 {
		ids := make([]interface{}, 0, len(q.IDs))
		for _, id := range q.IDs {
			ids = append(ids, id)
		}

		params["ids"] = ids
	}

	return params
}
