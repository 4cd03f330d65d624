// Copyright 2025 Strata ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package datasets downloads and unpacks dataset and checkpoint archives.
//
// Example:
//
//	fetcher := datasets.NewFetcher(nil)
//	entry, _ := datasets.DefaultCatalog().Get("imagenette2")
//	_, err := fetcher.DownloadAndExtract(ctx, entry.URL, entry.SHA256, "./data")
package datasets

import (
	"net/http"

	"github.com/strata-ml/strata/internal/datasets"
)

// ErrDigestMismatch indicates a downloaded file does not match its
// expected SHA-256 digest even after a fresh download.
var ErrDigestMismatch = datasets.ErrDigestMismatch

// Fetcher downloads and extracts dataset archives into a local directory.
type Fetcher = datasets.Fetcher

// NewFetcher returns a Fetcher using the given HTTP client.
// A nil client means http.DefaultClient.
func NewFetcher(client *http.Client) *Fetcher {
	return datasets.NewFetcher(client)
}

// Entry describes one downloadable dataset.
type Entry = datasets.Entry

// Catalog is a named collection of dataset entries.
type Catalog = datasets.Catalog

// DefaultCatalog returns the catalog of datasets known to the library.
func DefaultCatalog() *Catalog {
	return datasets.DefaultCatalog()
}

// LoadCatalog reads a catalog from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	return datasets.LoadCatalog(path)
}
