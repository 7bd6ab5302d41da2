package recognition

// ResultList is the response body of an identification request.
type ResultList []Match

// Match is one recognised code and the resources it resolved to.
type Match struct {
	Results []Entity `json:"results"`
	Meta    Meta     `json:"meta"`
	User    *User    `json:"user,omitempty"`
}

// Meta describes the decoded code itself.
type Meta struct {
	Method         string `json:"method,omitempty"`
	Type           string `json:"type,omitempty"`
	Value          string `json:"value,omitempty"`
	GTIN           string `json:"gtin,omitempty"`
	Serial         string `json:"serial,omitempty"`
	PayloadVersion int    `json:"payloadVersion,omitempty"`
	PayloadSubType *int   `json:"payloadSubType,omitempty"`
}

// Entity is a resource the code is associated with.
type Entity struct {
	Thng    *Resource `json:"thng,omitempty"`
	Product *Resource `json:"product,omitempty"`
}

// Resource is the subset of a thng or product the scanner reports.
type Resource struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// User is an application user, typically anonymous.
type User struct {
	ID     string `json:"id"`
	APIKey string `json:"apiKey"`
}

// Matches counts entries that identified something: resolved resources or
// at least a decoded value.
func (l ResultList) Matches() int {
	n := 0
	for _, m := range l {
		if len(m.Results) > 0 || m.Meta.Value != "" {
			n++
		}
	}
	return n
}

// Found reports whether any entry matched.
func (l ResultList) Found() bool {
	return l.Matches() > 0
}

// FirstValue returns the decoded value of the first matching entry.
func (l ResultList) FirstValue() string {
	for _, m := range l {
		if m.Meta.Value != "" {
			return m.Meta.Value
		}
	}
	return ""
}

// MetaOnly builds the response the service would give for a value with no
// associated resources.
func MetaOnly(method, typ, value string) ResultList {
	return ResultList{{
		Results: []Entity{},
		Meta:    Meta{Method: method, Type: typ, Value: value},
	}}
}

// WithUser returns a copy of l with u attached to every entry.
func (l ResultList) WithUser(u User) ResultList {
	out := make(ResultList, len(l))
	for i, m := range l {
		user := u
		m.User = &user
		out[i] = m
	}
	return out
}
