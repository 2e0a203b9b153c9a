package models

// PolicyBlock explains why a requested key was refused by write policy and,
// when one exists, which route should be used instead.
type PolicyBlock struct {
	Key            string `json:"key"`
	Reason         string `json:"reason"`
	PreferredRoute string `json:"preferred_route,omitempty"`
}
