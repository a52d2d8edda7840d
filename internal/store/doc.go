// Package store defines the persistence boundaries used by the pipeline: a
// whole-document key/value store for businesses and analyses, and an object
// store for conversation logs. Implementations live under internal/storage;
// this package must not import database drivers or concrete clients.
package store
