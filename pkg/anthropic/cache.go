package anthropic

// BuildCachedSystemBlocks constructs system content blocks with a cache
// breakpoint. The field agents of one document share the same instructions
// and document text, so the first agent call warms the cache for the rest.
func BuildCachedSystemBlocks(text string) []SystemBlock {
	return []SystemBlock{
		{
			Text: text,
			CacheControl: &CacheControl{
				TTL: "5m",
			},
		},
	}
}
