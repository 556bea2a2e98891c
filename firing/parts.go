package firing

import "slices"

// partsCache remembers the most recently introduced 2-digit parts so a
// repeat can be sent as a single letter, 'a' being the oldest entry.
type partsCache struct {
	parts []string
}

// encode returns the back-reference letter for a cached part. An uncached
// part is added and returned as is.
func (c *partsCache) encode(part string) string {
	if i := slices.Index(c.parts, part); i >= 0 {
		return string(rune('a' + i))
	}
	c.push(part)
	return part
}

func (c *partsCache) push(part string) {
	c.parts = append(c.parts, part)
	if len(c.parts) > MaxParts {
		c.parts = c.parts[1:]
	}
}

// lookup resolves a back-reference letter
func (c *partsCache) lookup(letter byte) (string, bool) {
	i := int(letter) - 'a'
	if i < 0 || i >= len(c.parts) {
		return "", false
	}
	return c.parts[i], true
}
