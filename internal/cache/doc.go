// Package cache provides a small generic LRU cache.
//
// The filter chain keeps compiled pass artifacts in a Cache keyed by a digest
// of everything that affects compilation, so a hot reload recompiles only
// the passes whose inputs changed.
//
//	c := cache.New[Key, *Artifacts](64)
//	v := c.GetOrCreate(key, func() (*Artifacts, error) { ... })
//
// Cache is safe for concurrent use and must not be copied after creation.
package cache
