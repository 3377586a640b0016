package cache

import "fmt"

// Key joins a prefix and id into a colon-delimited cache key.
func Key(prefix, id string) string {
	return fmt.Sprintf("%s:%s", prefix, id)
}

// KeyWithParams appends each parameter to the prefix as a colon-delimited
// segment. Parameters are formatted with %v, so keep them to scalars.
func KeyWithParams(prefix string, params ...interface{}) string {
	key := prefix
	for _, p := range params {
		key = fmt.Sprintf("%s:%v", key, p)
	}
	return key
}

// Pattern builds a glob matching every key under the prefix.
func Pattern(prefix string) string {
	return prefix + "*"
}
