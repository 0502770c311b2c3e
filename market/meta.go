package market

// Meta carries per-symbol classification used by risk bucket caps.
// Either field may be empty; symbols without metadata simply fall
// outside any configured bucket.
type Meta struct {
	Sector string `json:"sector,omitempty" yaml:"sector,omitempty"`
	Region string `json:"region,omitempty" yaml:"region,omitempty"`
}
