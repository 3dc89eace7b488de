// Package models defines the records and transfer types shared by the migration engine.
//
// The package contains three groups of types:
//
// 1. Persisted records, one row each in the migration state store
//   - [PlaylistRecord] : per source playlist, keyed by its source id
//   - [TrackRecord] : per (source playlist, source track) pair
//   - [TokenRecord] : per service credential (oauth or captured session headers)
//
// 2. Catalog transfer objects
//   - [Playlist] : playlist metadata from either catalog
//   - [Track] : a source track with the fields used to build a search query
//   - [Candidate] : a target item with the fields the scorer needs
//
// 3. [Credentials], a sealed variant of [Bearer] and [HeaderBundle]
package models
