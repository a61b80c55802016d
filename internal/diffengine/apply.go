package diffengine

// Apply locates patch.Search within doc and returns doc with that range
// replaced by patch.Replace.
//
// Two matchers are tried in order: [LocateExact] first, falling back to
// [LocateNormalized] when no byte-identical occurrence exists. Returns
// [ErrNotFound] if neither matcher locates the search text.
func Apply(doc string, patch Patch) (string, error) {
	if m, ok := LocateExact(doc, patch.Search); ok {
		return splice(doc, m, patch.Replace), nil
	}
	if m, ok := LocateNormalized(doc, patch.Search); ok {
		return splice(doc, m, patch.Replace), nil
	}
	return "", ErrNotFound
}

func splice(doc string, m MatchResult, replacement string) string {
	out := make([]byte, 0, len(doc)+len(replacement))
	out = append(out, doc[:m.Start]...)
	out = append(out, replacement...)
	out = append(out, doc[m.End:]...)
	return string(out)
}
