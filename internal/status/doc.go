// Package status defines the canonical task status vocabulary consumed by the
// rest of the application and the normalizer that maps the backend's drifting
// raw status payloads onto it.
//
// The normalizer is alias-table driven: new backend field names or status
// tokens are added to the tables in normalizer.go rather than branching on a
// backend version anywhere else in the code.
package status
