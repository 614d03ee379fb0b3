// Package rewrite resolves symbolic attachment references inside canonical
// payload documents. A reference looks like "attachment://shot.png" and
// points at a file part uploaded in the same request.
package rewrite

import "strings"

// Scheme is the symbolic attachment reference prefix. The scheme check is
// case-insensitive; the name after it is matched case-sensitively first.
const Scheme = "attachment://"

// Attachments walks the known attachment-bearing paths of doc —
// embeds[*].image.url, embeds[*].thumbnail.url, and the top-level
// screenshot_url — and substitutes relocated references for symbolic ones.
//
// The transform is idempotent: rewritten values no longer carry the
// attachment:// scheme, so a second pass leaves them untouched. References
// with no matching relocated file are preserved verbatim for diagnostic
// visibility. Only the listed paths are visited; no generic deep traversal.
func Attachments(doc map[string]any, refs map[string]string, baseURL string) map[string]any {
	if doc == nil {
		return doc
	}

	if v, ok := doc["screenshot_url"].(string); ok {
		doc["screenshot_url"] = resolve(v, refs, baseURL)
	}

	embeds, ok := doc["embeds"].([]any)
	if !ok {
		return doc
	}
	for _, item := range embeds {
		embed, ok := item.(map[string]any)
		if !ok {
			continue
		}
		for _, field := range [2]string{"image", "thumbnail"} {
			sub, ok := embed[field].(map[string]any)
			if !ok {
				continue
			}
			if v, ok := sub["url"].(string); ok {
				sub["url"] = resolve(v, refs, baseURL)
			}
		}
	}

	return doc
}

// resolve maps one candidate value. Non-matching values pass through
// unchanged.
func resolve(value string, refs map[string]string, baseURL string) string {
	if len(value) < len(Scheme) || !strings.EqualFold(value[:len(Scheme)], Scheme) {
		return value
	}

	name := value[len(Scheme):]
	ref, ok := refs[name]
	if !ok {
		ref, ok = refs[strings.ToLower(name)]
	}
	if !ok {
		// Broken reference: keep the symbolic form rather than erasing it.
		return value
	}

	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	return strings.TrimSuffix(baseURL, "/") + "/uploads/" + ref
}
