// Package redis provides the optional Redis integration of the registry.
//
// Client owns the connection pool. Cache[T] is a JSON read-through cache
// keyed under a prefix; the registry uses it for tool-by-slug lookups and
// for the invocable catalog, and drops entries on every write.
//
//	client, err := redis.New(&cfg.Redis, log)
//	tools, err := redis.NewCache[app.ToolView](client, "tool", cfg.Redis.CacheTTL)
//	v, err := tools.GetOrSetFallback(ctx, "slug:calculator", load)
//
// Cache read failures fall back to the loader, so Redis being down degrades
// latency, not availability.
package redis
