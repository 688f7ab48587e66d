// Package models defines domain entities and persistence interfaces for the playlist acquisition pipeline.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): Lightweight structs representing catalog data
//   - [Track] : Song metadata from either catalog, with ISRC for cross-catalog matching
//   - [PlaylistDTO] : Playlist metadata from catalog A
//
// 2. Persistent Entities: Registry-backed models
//   - [Playlist] : An ingested catalog-A playlist
//   - [CanonicalTrack] : One deduplicated track with its resolution, acquisition, lyrics, and embedding state
//   - [PlaylistTrackLink] : A playlist's membership of a track, with its position and link path
//
// [TrackStatistics] holds counts of tracks by pipeline state.
// The persistent entities implement the [Model] interface (ID, timestamps, validation); IDs are assigned by the repositories.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
