// Package file provides the TOML-backed ConfigStore.
//
// Keys are dotted paths ("retrieval.top_k") that map onto TOML tables on
// disk. Environment variables named KBASE_ plus the upper-cased key with
// dots replaced by underscores (KBASE_RETRIEVAL_TOP_K) override file values
// without being persisted.
package file
